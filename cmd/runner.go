package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/formatter"
	"github.com/desertthunder/chord/internal/matching"
	"github.com/desertthunder/chord/internal/repositories"
	"github.com/desertthunder/chord/internal/services"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/desertthunder/chord/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	histories  services.HistoryFactory
	oauth      services.OAuthService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *formatter.Palette
	db         *sql.DB
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Histories  services.HistoryFactory // listening-history provider, usually the Spotify service
	OAuth      services.OAuthService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Palette    *formatter.Palette
	DB         *sql.DB // opened from config when nil
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		histories:  opts.Histories,
		oauth:      opts.OAuth,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    opts.Palette,
		db:         opts.DB,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, usersCommand, syncCommand, matchCommand,
		revealCommand, blockCommand, reportCommand, messageCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens the configured database on first use and brings its schema up to date.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	return r.open(ctx, true)
}

func (r *Runner) open(ctx context.Context, migrate bool) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !shared.IsMemoryDatabase(r.config.Database.Path) {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}
	if migrate {
		if err := shared.RunMigrationsContext(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	r.db = db
	return db, nil
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) location() (*time.Location, error) {
	return r.config.Matching.Location()
}

func (r *Runner) lifecycle(db *sql.DB) (*matching.Lifecycle, error) {
	loc, err := r.location()
	if err != nil {
		return nil, err
	}

	l := matching.NewLifecycle(matching.Stores{
		Matches:  repositories.NewMatchRepository(db),
		Users:    repositories.NewUserRepository(db),
		Messages: repositories.NewMessageRepository(db),
		Reports:  repositories.NewReportRepository(db),
	}, r.logger)
	l.SetLocation(loc)
	l.SetPseudonymPrefix(r.config.Matching.PseudonymPrefix)
	l.SetClock(r.now)
	return l, nil
}

func (r *Runner) matcher(db *sql.DB, workers int) (*tasks.Matcher, error) {
	loc, err := r.location()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = r.config.Matching.Workers
	}

	m := tasks.NewMatcher(
		repositories.NewUserRepository(db),
		repositories.NewCandidateRepository(db),
		repositories.NewMatchRepository(db),
		r.logger,
		tasks.MatcherOptions{
			MaxDistanceKm: r.config.Matching.MaxDistanceKm,
			Workers:       workers,
			UserTimeout:   r.config.Matching.Timeout(),
			Location:      loc,
		},
	)
	m.SetClock(r.now)
	return m, nil
}

func (r *Runner) syncer(db *sql.DB) (*tasks.ProfileSyncer, error) {
	if r.histories == nil {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	s := tasks.NewProfileSyncer(
		repositories.NewTokenRepository(db),
		repositories.NewUserRepository(db),
		r.histories,
		r.logger,
	)
	s.SetClock(r.now)
	return s, nil
}

// printProgress writes progress messages until the channel is closed, then signals done.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	for u := range progress {
		r.writePlain("→ %s\n", u.Message)
	}
	close(done)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
