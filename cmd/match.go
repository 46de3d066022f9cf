package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/chord/internal/formatter"
	"github.com/desertthunder/chord/internal/matching"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/desertthunder/chord/internal/tasks"
	"github.com/urfave/cli/v3"
)

// runOutput is the JSON shape of a matching run.
type runOutput struct {
	*tasks.RunResult
	MatchIDs []string `json:"match_ids"`
}

// MatchRun runs the daily matching batch once.
func (r *Runner) MatchRun(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	m, err := r.matcher(db, cmd.Int("workers"))
	if err != nil {
		return err
	}

	date := cmd.String("date")
	if date == "" {
		date = m.Today()
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	if cmd.Bool("json") {
		go drain(progress, done)
	} else {
		go r.printProgress(progress, done)
	}

	result, err := m.RunFor(ctx, date, progress)
	close(progress)
	<-done
	if err != nil && result == nil {
		return err
	}

	if cmd.Bool("json") {
		out := runOutput{RunResult: result, MatchIDs: make([]string, 0, len(result.Matches))}
		for _, m := range result.Matches {
			out.MatchIDs = append(out.MatchIDs, m.ID())
		}
		if werr := r.writeJSON(out, cmd.Bool("pretty")); werr != nil {
			return werr
		}
		return err
	}

	r.writePlain("\n%s", formatter.RunSummary(result, r.palette))
	return err
}

func drain(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	for range progress {
	}
	close(done)
}

// MatchToday prints the caller's match for the current day.
func (r *Runner) MatchToday(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.StringArg("user")
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	view, err := l.Today(ctx, userID)
	if errors.Is(err, shared.ErrNoMatchToday) {
		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"match": nil}, cmd.Bool("pretty"))
		}
		return r.writePlain("No match today. Check back tomorrow.\n")
	}
	if err != nil {
		return err
	}

	return r.writeView(view, cmd)
}

// MatchShow prints one match as seen by the given party.
func (r *Runner) MatchShow(ctx context.Context, cmd *cli.Command) error {
	matchID, err := requireMatchArg(cmd)
	if err != nil {
		return err
	}

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	view, err := l.Get(ctx, matchID, cmd.String("user"))
	if err != nil {
		return err
	}
	return r.writeView(view, cmd)
}

func (r *Runner) writeView(view *matching.MatchView, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.MatchCard(view, r.palette))
}

// MatchHistory lists a user's active matches, newest first.
func (r *Runner) MatchHistory(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.StringArg("user")
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	views, err := l.History(ctx, userID, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("csv") {
		path, err := formatter.WriteHistoryCSV(views, userID, cmd.String("output"))
		if err != nil {
			return err
		}
		r.logger.Infof("history exported to %v", path)
		return r.writePlain("✓ %d matches written to %s\n", len(views), path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	_, err = r.output.Write(formatter.HistoryToText(views))
	return err
}

// MatchSchedule runs the matching batch on its cron schedule until interrupted.
func (r *Runner) MatchSchedule(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := r.newScheduler(ctx, cmd.String("schedule"))
	if err != nil {
		return err
	}

	scheduler.Start()
	r.writePlain("→ Matching scheduled, next run at %s (Ctrl+C to stop)\n", scheduler.Next().Format("2006-01-02 15:04 MST"))

	for {
		select {
		case result := <-scheduler.Results():
			r.writePlain("\n%s", formatter.RunSummary(result, r.palette))
			r.writePlain("→ Next run at %s\n", scheduler.Next().Format("2006-01-02 15:04 MST"))
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), r.config.Matching.Timeout())
			defer cancel()
			return scheduler.Stop(stopCtx)
		}
	}
}

func (r *Runner) newScheduler(ctx context.Context, schedule string) (*tasks.Scheduler, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}

	m, err := r.matcher(db, 0)
	if err != nil {
		return nil, err
	}

	if schedule == "" {
		schedule = r.config.Matching.Schedule
	}
	return tasks.NewScheduler(m, schedule, r.logger)
}

// RevealRequest asks the other party to reveal identities.
func (r *Runner) RevealRequest(ctx context.Context, cmd *cli.Command) error {
	return r.mutate(ctx, cmd, (*matching.Lifecycle).RequestReveal, "✓ Reveal requested. Waiting for the other person to accept.\n")
}

// RevealAccept accepts a pending reveal request.
func (r *Runner) RevealAccept(ctx context.Context, cmd *cli.Command) error {
	return r.mutate(ctx, cmd, (*matching.Lifecycle).AcceptReveal, "✓ Identities revealed. Run `chord match show <match> --user <you>` to see who it is.\n")
}

// Block ends a match and excludes the pair from future matching.
func (r *Runner) Block(ctx context.Context, cmd *cli.Command) error {
	return r.mutate(ctx, cmd, (*matching.Lifecycle).Block, "✓ Blocked. You will not be matched with this person again.\n")
}

type matchOp func(l *matching.Lifecycle, ctx context.Context, matchID, userID string) (*models.Match, error)

func (r *Runner) mutate(ctx context.Context, cmd *cli.Command, op matchOp, done string) error {
	matchID, err := requireMatchArg(cmd)
	if err != nil {
		return err
	}

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	m, err := op(l, ctx, matchID, cmd.String("user"))
	if err != nil {
		return err
	}
	r.logger.Debug("match updated", "match", m.ID(), "state", m.State())
	return r.writePlain("%s", done)
}

// Report records a complaint about the other party of a match.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	matchID, err := requireMatchArg(cmd)
	if err != nil {
		return err
	}

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	report, err := l.Report(ctx, matchID, cmd.String("user"), cmd.String("reason"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Report filed (%s). Thank you.\n", report.Reason)
}

// MessageSend appends a message to a match's chat.
func (r *Runner) MessageSend(ctx context.Context, cmd *cli.Command) error {
	matchID, err := requireMatchArg(cmd)
	if err != nil {
		return err
	}

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	msg, err := l.SendMessage(ctx, matchID, cmd.String("user"), cmd.StringArg("content"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Sent at %s\n", msg.CreatedAt.Format("15:04"))
}

// MessageList prints a match's chat oldest first and marks the other party's messages read.
func (r *Runner) MessageList(ctx context.Context, cmd *cli.Command) error {
	matchID, err := requireMatchArg(cmd)
	if err != nil {
		return err
	}
	userID := cmd.String("user")

	l, err := r.openLifecycle(ctx)
	if err != nil {
		return err
	}

	messages, err := l.Messages(ctx, matchID, userID, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if _, err := l.MarkRead(ctx, matchID, userID); err != nil {
		r.logger.Warn("failed to mark messages read", "match", matchID, "error", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(messages, cmd.Bool("pretty"))
	}
	if len(messages) == 0 {
		return r.writePlain("No messages yet.\n")
	}
	_, err = r.output.Write(formatter.MessagesToText(messages, userID))
	return err
}

func (r *Runner) openLifecycle(ctx context.Context) (*matching.Lifecycle, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return r.lifecycle(db)
}

func requireMatchArg(cmd *cli.Command) (string, error) {
	matchID := cmd.StringArg("match")
	if matchID == "" {
		return "", fmt.Errorf("%w: match ID is required", shared.ErrMissingArgument)
	}
	return matchID, nil
}
