package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/chord/internal/shared"
)

// MatchState is the reveal/lifecycle state of a match, derived from its stored fields.
type MatchState int

const (
	ActiveHidden  MatchState = iota // initial: chatting under pseudonyms
	RevealPending                   // one party asked to reveal
	Revealed                        // both parties consented; terminal, positive
	Blocked                         // deactivated by a block; terminal, negative
)

func (s MatchState) String() string {
	switch s {
	case ActiveHidden:
		return "ACTIVE_HIDDEN"
	case RevealPending:
		return "REVEAL_PENDING"
	case Revealed:
		return "REVEALED"
	case Blocked:
		return "BLOCKED"
	default:
		return ""
	}
}

// Match is a daily pairing of two users.
//
// User1ID is the user the batch was processing and User2ID the chosen candidate; the
// pair is otherwise unordered. Version increments on every state change and guards
// compare-and-set updates.
type Match struct {
	entity
	User1ID           string
	User2ID           string
	Date              string // calendar day, [shared.DateLayout]
	Score             float64
	MusicSimilarity   float64
	DistanceKm        float64
	Active            bool
	RevealRequestedBy string
	RevealRequestedAt *time.Time
	Revealed          bool
	Version           int
}

// NewMatch creates an active, unrevealed match for the given day.
func NewMatch(user1, user2, date string, score, similarity, distanceKm float64) *Match {
	return &Match{
		entity:          newEntity(),
		User1ID:         user1,
		User2ID:         user2,
		Date:            date,
		Score:           score,
		MusicSimilarity: similarity,
		DistanceKm:      distanceKm,
		Active:          true,
	}
}

// State derives the lifecycle state. A block wins over every other field.
func (m *Match) State() MatchState {
	switch {
	case !m.Active:
		return Blocked
	case m.Revealed:
		return Revealed
	case m.RevealRequestedBy != "":
		return RevealPending
	default:
		return ActiveHidden
	}
}

// IsParty reports whether userID is one of the two matched users.
func (m *Match) IsParty(userID string) bool {
	return userID != "" && (userID == m.User1ID || userID == m.User2ID)
}

// Other returns the counterpart of userID, or "" if userID is not a party.
func (m *Match) Other(userID string) string {
	switch userID {
	case m.User1ID:
		return m.User2ID
	case m.User2ID:
		return m.User1ID
	default:
		return ""
	}
}

// PairKey is the order-independent key of the matched pair.
func (m *Match) PairKey() string {
	return PairKey(m.User1ID, m.User2ID)
}

// PairKey joins two user ids in sorted order.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Validate checks the pair, the date and the numeric ranges.
func (m *Match) Validate() error {
	if m.User1ID == "" || m.User2ID == "" {
		return fmt.Errorf("%w: match requires two users", shared.ErrValidation)
	}
	if m.User1ID == m.User2ID {
		return fmt.Errorf("%w: a user cannot be matched with themselves", shared.ErrValidation)
	}
	if _, err := time.Parse(shared.DateLayout, m.Date); err != nil {
		return fmt.Errorf("%w: invalid match date %q", shared.ErrValidation, m.Date)
	}
	if m.MusicSimilarity < 0 || m.MusicSimilarity > 1 {
		return fmt.Errorf("%w: music similarity out of range: %v", shared.ErrValidation, m.MusicSimilarity)
	}
	if m.DistanceKm < 0 {
		return fmt.Errorf("%w: negative distance: %v", shared.ErrValidation, m.DistanceKm)
	}
	if m.RevealRequestedBy != "" && !m.IsParty(m.RevealRequestedBy) {
		return fmt.Errorf("%w: reveal requested by a non-party", shared.ErrValidation)
	}
	if m.Revealed && m.RevealRequestedBy == "" {
		return fmt.Errorf("%w: revealed without a request", shared.ErrValidation)
	}
	return nil
}
