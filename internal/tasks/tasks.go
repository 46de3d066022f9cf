package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/scoring"
	"github.com/desertthunder/chord/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers     = 4
	DefaultUserTimeout = 30 * time.Second
)

// UserSource lists the users taking part in a run.
type UserSource interface {
	Eligible(ctx context.Context) ([]*models.User, error)
}

// CandidateSource returns scored-ready candidates for one user.
type CandidateSource interface {
	Candidates(ctx context.Context, q models.CandidateQuery) ([]models.Candidate, error)
}

// MatchCommitter checks and commits daily matches. CreateIfAbsent must fail with
// [shared.ErrAlreadyMatched] when either participant already has a match on the date.
type MatchCommitter interface {
	HasMatchOn(ctx context.Context, userID, date string) (bool, error)
	CreateIfAbsent(ctx context.Context, match *models.Match) error
}

// MatcherOptions tunes a [Matcher]. Zero values fall back to defaults.
type MatcherOptions struct {
	MaxDistanceKm float64
	Workers       int
	UserTimeout   time.Duration
	Location      *time.Location
}

// RunResult summarizes one daily matching run.
type RunResult struct {
	Date           string          `json:"date"`
	UsersProcessed int             `json:"users_processed"`
	MatchesCreated int             `json:"matches_created"`
	UsersSkipped   int             `json:"users_skipped"` // already matched before their turn
	NoCandidates   int             `json:"no_candidates"`
	Conflicts      int             `json:"conflicts"` // lost the commit race
	Failures       int             `json:"failures"`
	Matches        []*models.Match `json:"-"`
	Duration       time.Duration   `json:"duration_ns"`
}

// Matcher pairs every eligible user with at most one partner per calendar day.
//
// Users are processed by a bounded worker pool. Uniqueness is enforced by the
// committer's conditional insert, so losing a race is an ordinary outcome.
type Matcher struct {
	users      UserSource
	candidates CandidateSource
	matches    MatchCommitter
	logger     *log.Logger
	opts       MatcherOptions
	now        func() time.Time
}

// NewMatcher creates a [Matcher].
func NewMatcher(users UserSource, candidates CandidateSource, matches MatchCommitter, logger *log.Logger, opts MatcherOptions) *Matcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.MaxDistanceKm <= 0 {
		opts.MaxDistanceKm = scoring.DefaultMaxDistanceKm
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.UserTimeout <= 0 {
		opts.UserTimeout = DefaultUserTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Matcher{
		users:      users,
		candidates: candidates,
		matches:    matches,
		logger:     shared.WithLogger(logger, "component", "matcher"),
		opts:       opts,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (m *Matcher) SetClock(now func() time.Time) {
	m.now = now
}

// Today is the calendar date a run started now would match for.
func (m *Matcher) Today() string {
	return shared.DateOf(m.now(), m.opts.Location)
}

// Run matches users for the current calendar day.
func (m *Matcher) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	return m.RunFor(ctx, m.Today(), progress)
}

// RunFor matches users for date. Per-user failures are logged and counted but never
// abort the run; only a failure to list users or a cancelled context does.
func (m *Matcher) RunFor(ctx context.Context, date string, progress chan<- ProgressUpdate) (*RunResult, error) {
	if _, err := time.Parse(shared.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q", shared.ErrInvalidArgument, date)
	}

	start := time.Now()
	result := &RunResult{Date: date}

	sendProgress(progress, loadingUsersUpdate(date))
	users, err := m.users.Eligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	total := len(users)
	sendProgress(progress, loadedUsersUpdate(total))

	var (
		mu   sync.Mutex
		step int
	)
	record := func(userID string, outcome Outcome, match *models.Match) {
		mu.Lock()
		defer mu.Unlock()

		step++
		result.UsersProcessed++
		switch outcome {
		case Matched:
			result.MatchesCreated++
			result.Matches = append(result.Matches, match)
		case AlreadyMatched:
			result.UsersSkipped++
		case NoCandidates:
			result.NoCandidates++
		case LostRace:
			result.Conflicts++
		case Failed:
			result.Failures++
		}
		sendProgress(progress, userOutcomeUpdate(step, total, userID, outcome, match))
	}

	var g errgroup.Group
	g.SetLimit(m.opts.Workers)

	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, match, err := m.matchUser(ctx, user, date)
			if err != nil {
				m.logger.Error("matching failed", "user_id", user.ID(), "date", date, "error", err)
			}
			record(user.ID(), outcome, match)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	m.logger.Info("matching run finished",
		"date", date,
		"users", result.UsersProcessed,
		"matches", result.MatchesCreated,
		"skipped", result.UsersSkipped,
		"no_candidates", result.NoCandidates,
		"conflicts", result.Conflicts,
		"failures", result.Failures,
		"duration", result.Duration)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Matcher) matchUser(ctx context.Context, user *models.User, date string) (Outcome, *models.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.UserTimeout)
	defer cancel()

	if user.Location == nil || user.Profile == nil {
		return Failed, nil, fmt.Errorf("%w: user has no location or profile", shared.ErrValidation)
	}

	matched, err := m.matches.HasMatchOn(ctx, user.ID(), date)
	if err != nil {
		return Failed, nil, err
	}
	if matched {
		return AlreadyMatched, nil, nil
	}

	candidates, err := m.candidates.Candidates(ctx, models.CandidateQuery{
		UserID:        user.ID(),
		Embedding:     user.Profile.Embedding,
		Location:      *user.Location,
		MaxDistanceKm: m.opts.MaxDistanceKm,
		Date:          date,
	})
	if err != nil {
		return Failed, nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	best, ok := scoring.Best(candidates, m.opts.MaxDistanceKm)
	if !ok {
		m.logger.Debug("no candidates", "user_id", user.ID(), "date", date)
		return NoCandidates, nil, nil
	}

	match := models.NewMatch(user.ID(), best.UserID, date, best.Score, best.MusicSimilarity, best.DistanceKm)
	if err := m.matches.CreateIfAbsent(ctx, match); err != nil {
		if errors.Is(err, shared.ErrAlreadyMatched) {
			m.logger.Debug("lost commit race", "user_id", user.ID(), "candidate_id", best.UserID, "date", date)
			return LostRace, nil, nil
		}
		return Failed, nil, fmt.Errorf("failed to commit match: %w", err)
	}

	m.logger.Info("match created",
		"match_id", match.ID(), "user_id", user.ID(), "partner_id", best.UserID,
		"score", best.Score, "date", date)
	return Matched, match, nil
}
