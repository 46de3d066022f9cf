package matching

import (
	"github.com/desertthunder/chord/internal/models"
)

const (
	DefaultPseudonymPrefix = "music_lover_"
	pseudonymLength        = 8
	maxShared              = 3
)

// OtherUser is the counterpart as shown to the caller. Until the match is revealed
// only a pseudonymous ID is filled in.
type OtherUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"profile_photo_url,omitempty"`
}

// MatchView is a match as seen by one of its parties.
type MatchView struct {
	ID                 string                 `json:"id"`
	Date               string                 `json:"date"`
	State              string                 `json:"state"`
	MatchScore         float64                `json:"match_score"`
	MusicSimilarity    float64                `json:"music_similarity"`
	DistanceKm         float64                `json:"distance_km"`
	IdentitiesRevealed bool                   `json:"identities_revealed"`
	RevealRequested    bool                   `json:"reveal_requested"`
	RevealAwaitingYou  bool                   `json:"reveal_awaiting_you"`
	OtherUser          OtherUser              `json:"other_user"`
	SharedArtists      []models.ArtistSummary `json:"shared_artists,omitempty"`
	SharedGenres       []models.GenreWeight   `json:"shared_genres,omitempty"`
}

// Pseudonym derives a stable pseudonymous ID from a real user ID.
func Pseudonym(prefix, userID string) string {
	if prefix == "" {
		prefix = DefaultPseudonymPrefix
	}
	return prefix + userID[:min(len(userID), pseudonymLength)]
}

// newView builds the caller's view of m. other may be nil when the counterpart
// could not be loaded; the pseudonym is still derived from the match.
func newView(m *models.Match, caller string, other *models.User, prefix string) MatchView {
	otherID := m.Other(caller)

	v := MatchView{
		ID:                 m.ID(),
		Date:               m.Date,
		State:              m.State().String(),
		MatchScore:         m.Score,
		MusicSimilarity:    m.MusicSimilarity,
		DistanceKm:         m.DistanceKm,
		IdentitiesRevealed: m.Revealed,
		RevealRequested:    m.RevealRequestedBy == caller,
		RevealAwaitingYou:  m.State() == models.RevealPending && m.RevealRequestedBy == otherID,
	}

	if m.Revealed {
		v.OtherUser = OtherUser{ID: otherID}
		if other != nil {
			v.OtherUser.DisplayName = other.DisplayName
			v.OtherUser.PhotoURL = other.PhotoURL
		}
	} else {
		v.OtherUser = OtherUser{ID: Pseudonym(prefix, otherID)}
	}
	return v
}

// SharedArtists lists up to three artists present in both profiles, matched by
// provider ID, in the order of the first profile.
func SharedArtists(a, b *models.TasteProfile) []models.ArtistSummary {
	if a == nil || b == nil {
		return nil
	}

	ids := make(map[string]struct{}, len(b.TopArtists))
	for _, artist := range b.TopArtists {
		ids[artist.SpotifyID] = struct{}{}
	}

	var shared []models.ArtistSummary
	for _, artist := range a.TopArtists {
		if _, ok := ids[artist.SpotifyID]; ok && len(shared) < maxShared {
			shared = append(shared, artist)
		}
	}
	return shared
}

// SharedGenres lists up to three top genres present in both profiles, matched by
// name, in the order of the first profile.
func SharedGenres(a, b *models.TasteProfile) []models.GenreWeight {
	if a == nil || b == nil {
		return nil
	}

	names := make(map[string]struct{}, len(b.TopGenres))
	for _, g := range b.TopGenres {
		names[g.Name] = struct{}{}
	}

	var shared []models.GenreWeight
	for _, g := range a.TopGenres {
		if _, ok := names[g.Name]; ok && len(shared) < maxShared {
			shared = append(shared, g)
		}
	}
	return shared
}
