package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/chord/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the config file at configPath, creating it from the template when absent.
func (r *Runner) loadConfig(configPath string) *shared.Config {
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			return shared.DefaultConfig()
		}
		r.logger.Info("config file created", "path", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// SetupConfig writes the bundled config template to the config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%w: %s already exists", shared.ErrInvalidArgument, configPath)
	}

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Set credentials.spotify.client_id and client_secret before running: chord auth spotify\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.config = r.loadConfig(cmd.String("config"))

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.database(ctx); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	return nil
}

// SetupStatus prints every known migration and when it was applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.open(ctx, false)
	if err != nil {
		return err
	}

	statuses, err := shared.MigrationStatuses(db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	r.writePlainHeader("Migrations: " + r.config.Database.Path)
	for _, s := range statuses {
		if s.AppliedAt == nil {
			r.writePlain("  %04d %-32s pending\n", s.Version, s.Name)
			continue
		}
		r.writePlain("  %04d %-32s applied %s\n", s.Version, s.Name, s.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.open(ctx, false)
	if err != nil {
		return err
	}

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	r.writePlain("✓ Rolled back the latest migration\n")
	return nil
}
