// package matching governs a match after creation: the two-party reveal protocol,
// blocking, reporting and chat access.
package matching

import (
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
)

// Action is a state-changing request made by one party of a match.
type Action int

const (
	RequestReveal Action = iota
	AcceptReveal
	Block
)

func (a Action) String() string {
	switch a {
	case RequestReveal:
		return "request_reveal"
	case AcceptReveal:
		return "accept_reveal"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// Transition applies action by actor to m and returns the next match. m is not modified.
//
//	ACTIVE_HIDDEN  --request-->  REVEAL_PENDING  --accept (other party)-->  REVEALED
//	REVEAL_PENDING --request-->  REVEAL_PENDING  (requester overwritten)
//	any            --block---->  BLOCKED
//
// Blocking an already blocked match returns it unchanged.
func Transition(m models.Match, actor string, action Action, now time.Time) (models.Match, error) {
	if !m.IsParty(actor) {
		return m, shared.ErrNotAParty
	}

	next := m
	switch action {
	case RequestReveal:
		switch m.State() {
		case models.Blocked:
			return m, shared.ErrMatchInactive
		case models.Revealed:
			return m, shared.ErrAlreadyRevealed
		}
		at := now.UTC()
		next.RevealRequestedBy = actor
		next.RevealRequestedAt = &at

	case AcceptReveal:
		switch m.State() {
		case models.Blocked:
			return m, shared.ErrMatchInactive
		case models.Revealed:
			return m, shared.ErrAlreadyRevealed
		case models.ActiveHidden:
			return m, shared.ErrNoPendingReveal
		}
		if m.RevealRequestedBy == actor {
			return m, shared.ErrSelfAccept
		}
		next.Revealed = true

	case Block:
		next.Active = false

	default:
		return m, shared.ErrInvalidArgument
	}

	return next, nil
}

// CanMessage reports whether actor may post to m.
func CanMessage(m models.Match, actor string) error {
	if !m.IsParty(actor) {
		return shared.ErrNotAParty
	}
	if !m.Active {
		return shared.ErrMatchInactive
	}
	return nil
}
