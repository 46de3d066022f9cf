package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
)

// DefaultHistoryLimit is used when History is called without a positive limit.
const DefaultHistoryLimit = 30

// MatchStore is the persistence the lifecycle needs for matches.
type MatchStore interface {
	Get(ctx context.Context, id string) (*models.Match, error)
	ActiveForUserOn(ctx context.Context, userID, date string) (*models.Match, error)
	History(ctx context.Context, userID string, limit int) ([]*models.Match, error)
	CompareAndSwap(ctx context.Context, match *models.Match) error
	Block(ctx context.Context, match *models.Match, blockerID string) error
}

// UserStore loads user records for the counterpart view.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// MessageStore is the append and ordered-read chat store.
type MessageStore interface {
	Append(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, matchID string, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, matchID, readerID string) (int64, error)
}

// ReportStore records reports.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
}

// Stores groups the lifecycle's collaborators.
type Stores struct {
	Matches  MatchStore
	Users    UserStore
	Messages MessageStore
	Reports  ReportStore
}

// Lifecycle runs the operations a party can perform on a match.
//
// A caller who is not a party gets [shared.ErrMatchNotFound] from read operations,
// so match IDs do not leak, and [shared.ErrNotAParty] from mutations.
type Lifecycle struct {
	stores          Stores
	logger          *log.Logger
	now             func() time.Time
	location        *time.Location
	pseudonymPrefix string
}

// NewLifecycle creates a [Lifecycle] with UTC calendar days and the default pseudonym prefix.
func NewLifecycle(stores Stores, logger *log.Logger) *Lifecycle {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Lifecycle{
		stores:          stores,
		logger:          shared.WithLogger(logger, "component", "lifecycle"),
		now:             time.Now,
		location:        time.UTC,
		pseudonymPrefix: DefaultPseudonymPrefix,
	}
}

// SetLocation sets the time zone that defines "today".
func (l *Lifecycle) SetLocation(loc *time.Location) {
	if loc != nil {
		l.location = loc
	}
}

// SetPseudonymPrefix sets the prefix of pseudonymous IDs.
func (l *Lifecycle) SetPseudonymPrefix(prefix string) {
	if prefix != "" {
		l.pseudonymPrefix = prefix
	}
}

// SetClock replaces the time source.
func (l *Lifecycle) SetClock(now func() time.Time) {
	l.now = now
}

// Today returns the caller's active match for the current calendar day.
func (l *Lifecycle) Today(ctx context.Context, userID string) (*MatchView, error) {
	date := shared.DateOf(l.now(), l.location)

	m, err := l.stores.Matches.ActiveForUserOn(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	caller, err := l.stores.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	other, err := l.stores.Users.Get(ctx, m.Other(userID))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	view := newView(m, userID, other, l.pseudonymPrefix)
	if other != nil {
		first, second := caller.Profile, other.Profile
		if m.User1ID != userID {
			first, second = second, first
		}
		view.SharedArtists = SharedArtists(first, second)
		view.SharedGenres = SharedGenres(first, second)
	}
	return &view, nil
}

// Get returns one match as seen by the caller.
func (l *Lifecycle) Get(ctx context.Context, matchID, userID string) (*MatchView, error) {
	m, err := l.load(ctx, matchID, userID, shared.ErrMatchNotFound)
	if err != nil {
		return nil, err
	}

	other, err := l.otherIfRevealed(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	view := newView(m, userID, other, l.pseudonymPrefix)
	return &view, nil
}

// History lists the caller's active matches, newest first.
func (l *Lifecycle) History(ctx context.Context, userID string, limit int) ([]MatchView, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	matches, err := l.stores.Matches.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		other, err := l.otherIfRevealed(ctx, m, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, newView(m, userID, other, l.pseudonymPrefix))
	}
	return views, nil
}

// RequestReveal asks the other party to reveal identities.
func (l *Lifecycle) RequestReveal(ctx context.Context, matchID, userID string) (*models.Match, error) {
	return l.transition(ctx, matchID, userID, RequestReveal)
}

// AcceptReveal accepts the other party's pending reveal request.
func (l *Lifecycle) AcceptReveal(ctx context.Context, matchID, userID string) (*models.Match, error) {
	return l.transition(ctx, matchID, userID, AcceptReveal)
}

// Block deactivates the match and permanently excludes the pair from matching.
func (l *Lifecycle) Block(ctx context.Context, matchID, userID string) (*models.Match, error) {
	m, err := l.load(ctx, matchID, userID, shared.ErrNotAParty)
	if err != nil {
		return nil, err
	}

	if _, err := Transition(*m, userID, Block, l.now()); err != nil {
		return nil, err
	}

	if err := l.stores.Matches.Block(ctx, m, userID); err != nil {
		return nil, err
	}

	l.logger.Info("match blocked", "match_id", m.ID(), "user_id", userID)
	return m, nil
}

// Report files a report against the other party. The match state is unchanged.
func (l *Lifecycle) Report(ctx context.Context, matchID, userID, reason string) (*models.Report, error) {
	m, err := l.load(ctx, matchID, userID, shared.ErrNotAParty)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID: userID,
		ReportedID: m.Other(userID),
		MatchID:    m.ID(),
		Reason:     strings.TrimSpace(reason),
	}
	if err := l.stores.Reports.Create(ctx, report); err != nil {
		return nil, err
	}

	l.logger.Info("match reported", "match_id", m.ID(), "user_id", userID, "reason", report.Reason)
	return report, nil
}

// SendMessage appends a message from the caller. Content is trimmed and must not be empty.
func (l *Lifecycle) SendMessage(ctx context.Context, matchID, userID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.ErrEmptyMessage
	}

	m, err := l.load(ctx, matchID, userID, shared.ErrNotAParty)
	if err != nil {
		return nil, err
	}
	if err := CanMessage(*m, userID); err != nil {
		return nil, err
	}

	msg := &models.Message{MatchID: m.ID(), SenderID: userID, Content: content}
	if err := l.stores.Messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages lists the most recent messages of a match, oldest first. A blocked match's
// chat is closed to reads as well as writes.
func (l *Lifecycle) Messages(ctx context.Context, matchID, userID string, limit int) ([]models.Message, error) {
	m, err := l.load(ctx, matchID, userID, shared.ErrMatchNotFound)
	if err != nil {
		return nil, err
	}
	if err := CanMessage(*m, userID); err != nil {
		return nil, err
	}
	return l.stores.Messages.List(ctx, m.ID(), limit)
}

// MarkRead marks the other party's messages as read by the caller.
func (l *Lifecycle) MarkRead(ctx context.Context, matchID, userID string) (int64, error) {
	m, err := l.load(ctx, matchID, userID, shared.ErrNotAParty)
	if err != nil {
		return 0, err
	}
	return l.stores.Messages.MarkRead(ctx, m.ID(), userID)
}

func (l *Lifecycle) transition(ctx context.Context, matchID, userID string, action Action) (*models.Match, error) {
	m, err := l.load(ctx, matchID, userID, shared.ErrNotAParty)
	if err != nil {
		return nil, err
	}

	next, err := Transition(*m, userID, action, l.now())
	if err != nil {
		return nil, err
	}

	if err := l.stores.Matches.CompareAndSwap(ctx, &next); err != nil {
		return nil, err
	}

	l.logger.Info("match transitioned",
		"match_id", next.ID(), "user_id", userID, "action", action, "from", m.State(), "to", next.State())
	return &next, nil
}

// load fetches the match and rejects callers who are not a party with notParty.
func (l *Lifecycle) load(ctx context.Context, matchID, userID string, notParty error) (*models.Match, error) {
	if matchID == "" || userID == "" {
		return nil, fmt.Errorf("%w: match and user are required", shared.ErrMissingArgument)
	}

	m, err := l.stores.Matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.IsParty(userID) {
		if errors.Is(notParty, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", notParty, matchID)
		}
		return nil, notParty
	}
	return m, nil
}

func (l *Lifecycle) otherIfRevealed(ctx context.Context, m *models.Match, userID string) (*models.User, error) {
	if !m.Revealed {
		return nil, nil
	}
	other, err := l.stores.Users.Get(ctx, m.Other(userID))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return other, err
}
