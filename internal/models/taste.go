package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/chord/internal/shared"
)

const (
	AudioDims     = 7                     // valence, energy, danceability, acousticness, instrumentalness, tempo, loudness
	GenreDims     = 10                    // ten most common genres, max-normalized
	EmbeddingDims = AudioDims + GenreDims // always 17

	MaxTopArtists = 10
	MaxTopGenres  = 5
	MaxTopTracks  = 5
)

// ArtistSummary is a display summary of one of the user's top artists.
type ArtistSummary struct {
	Name      string   `json:"name"`
	SpotifyID string   `json:"spotify_id"`
	ImageURL  string   `json:"image,omitempty"`
	Genres    []string `json:"genres"`
}

// GenreWeight is a top genre with the fraction of top artists that exhibit it.
type GenreWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// TrackSummary is a display summary of one of the user's top tracks.
type TrackSummary struct {
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	SpotifyID string `json:"spotify_id"`
}

// TasteProfile is the compressed music taste of a user.
//
// It is rebuilt wholesale on every sync and never partially mutated.
type TasteProfile struct {
	Embedding  []float64       `json:"embedding"`
	TopArtists []ArtistSummary `json:"top_artists"`
	TopGenres  []GenreWeight   `json:"top_genres"`
	TopTracks  []TrackSummary  `json:"top_tracks"`
	LastSync   time.Time       `json:"last_sync"`
}

// Validate checks the embedding length and component ranges and the summary caps.
func (p *TasteProfile) Validate() error {
	if len(p.Embedding) != EmbeddingDims {
		return fmt.Errorf("%w: embedding has %d dimensions, want %d", shared.ErrValidation, len(p.Embedding), EmbeddingDims)
	}
	for i, v := range p.Embedding {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: embedding component %d out of range: %v", shared.ErrValidation, i, v)
		}
	}
	if len(p.TopArtists) > MaxTopArtists || len(p.TopGenres) > MaxTopGenres || len(p.TopTracks) > MaxTopTracks {
		return fmt.Errorf("%w: profile summaries exceed their caps", shared.ErrValidation)
	}
	return nil
}

// Value implements the driver.Valuer interface for TasteProfile
func (p TasteProfile) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for TasteProfile
func (p *TasteProfile) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into TasteProfile", value)
	}
}
