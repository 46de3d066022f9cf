package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/formatter"
	"github.com/desertthunder/chord/internal/services"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(defaultConfigPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(defaultConfigPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warnf("failed to load config, using defaults %v", err)
		}
	}

	opts := RunnerOpts{
		Config:     config,
		ConfigPath: defaultConfigPath,
		Logger:     logger,
		Palette:    formatter.DefaultPalette,
	}

	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			svc.SetRateLimit(config.Spotify.RequestsPerSecond, config.Spotify.Burst)
			svc.SetTokenRefreshCallback(func(*oauth2.Token) {
				logger.Debug("spotify access token refreshed")
			})
			opts.Histories = svc
			opts.OAuth = svc
		} else {
			logger.Warn("spotify service unavailable", "error", err)
		}
	}

	runner := NewRunner(opts)
	defer runner.Close()

	app := &cli.Command{
		Name:    "chord",
		Usage:   "Daily music-taste matching",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.Close()
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
