package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule is midnight IST expressed in UTC.
const DefaultSchedule = "30 18 * * *"

// Scheduler triggers the daily matching run on a cron schedule. Schedules are
// evaluated in UTC unless the expression carries a CRON_TZ prefix; the match date
// itself comes from the matcher's location.
type Scheduler struct {
	cron    *cron.Cron
	matcher *Matcher
	logger  *log.Logger
	entry   cron.EntryID
	results chan *RunResult
}

// NewScheduler registers the daily run under schedule. An empty schedule uses
// [DefaultSchedule].
func NewScheduler(matcher *Matcher, schedule string, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	s := &Scheduler{
		matcher: matcher,
		logger:  shared.WithLogger(logger, "component", "scheduler"),
		results: make(chan *RunResult, 1),
	}
	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := s.cron.AddFunc(schedule, func() { s.Trigger(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", shared.ErrInvalidConfig, schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "next_run", s.Next())
}

// Stop stops the scheduler and waits for a running batch to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for matching run to stop", shared.ErrTimeout)
	}
}

// Next reports when the daily run fires next. It is zero until [Scheduler.Start].
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Results delivers the summary of each run without blocking the scheduler; a
// summary nobody reads is dropped.
func (s *Scheduler) Results() <-chan *RunResult {
	return s.results
}

// Trigger runs one matching batch immediately.
func (s *Scheduler) Trigger(ctx context.Context) (*RunResult, error) {
	result, err := s.matcher.Run(ctx, nil)
	if err != nil {
		s.logger.Error("scheduled matching run failed", "error", err)
		return result, err
	}

	select {
	case s.results <- result:
	default:
	}
	return result, nil
}

// cronLogger adapts a charm logger to [cron.Logger].
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
