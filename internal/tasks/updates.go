package tasks

import (
	"fmt"

	"github.com/desertthunder/chord/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadUsers Phase = iota
	MatchUsers
	FetchTracks
	FetchArtists
	FetchFeatures
	SaveProfile
)

func (p Phase) String() string {
	switch p {
	case LoadUsers:
		return "load_users"
	case MatchUsers:
		return "match_users"
	case FetchTracks:
		return "fetch_tracks"
	case FetchArtists:
		return "fetch_artists"
	case FetchFeatures:
		return "fetch_features"
	case SaveProfile:
		return "save_profile"
	default:
		return ""
	}
}

// Outcome is what happened to one user in a matching run.
type Outcome int

const (
	Matched Outcome = iota
	AlreadyMatched
	NoCandidates
	LostRace
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case AlreadyMatched:
		return "already_matched"
	case NoCandidates:
		return "no_candidates"
	case LostRace:
		return "lost_race"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func loadingUsersUpdate(date string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadUsers,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Loading eligible users for %s...", date),
	}
}

func loadedUsersUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadUsers,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d eligible users", total),
	}
}

func userOutcomeUpdate(step, total int, userID string, outcome Outcome, match *models.Match) ProgressUpdate {
	u := ProgressUpdate{
		Phase:   MatchUsers,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, userID, outcome),
	}
	if match != nil {
		u.Message = fmt.Sprintf("[%d/%d] %s: matched with %s (%.2f)", step, total, userID, match.Other(userID), match.Score)
		u.Data = match
	}
	return u
}

func fetchTracksUpdate(userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   4,
		Message: fmt.Sprintf("Fetching top tracks and artists for %s...", userID),
	}
}

func fetchArtistsUpdate(tracks, artists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchArtists,
		Step:    2,
		Total:   4,
		Message: fmt.Sprintf("Fetched %d tracks and %d artists", tracks, artists),
	}
}

func fetchFeaturesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features...", step, total),
	}
}

func saveProfileUpdate(profile *models.TasteProfile) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveProfile,
		Step:    4,
		Total:   4,
		Message: fmt.Sprintf("Saved profile (%d artists, %d genres)", len(profile.TopArtists), len(profile.TopGenres)),
		Data:    profile,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
