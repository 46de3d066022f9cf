package models

import (
	"fmt"
	"math"

	"github.com/desertthunder/chord/internal/shared"
)

// Candidate is a potential partner proposed by a candidate source, with the figures
// the scoring engine needs already computed.
type Candidate struct {
	UserID          string
	MusicSimilarity float64
	DistanceKm      float64
	ActivityScore   float64
}

// Validate rejects candidates whose figures are outside their documented ranges.
// Taste embeddings are non-negative, so similarity is never below zero.
func (c Candidate) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: candidate without user id", shared.ErrValidation)
	}
	for name, v := range map[string]float64{
		"music_similarity": c.MusicSimilarity,
		"distance_km":      c.DistanceKm,
		"activity_score":   c.ActivityScore,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: candidate %s %s is not finite", shared.ErrValidation, c.UserID, name)
		}
	}
	if c.MusicSimilarity < 0 || c.MusicSimilarity > 1+1e-9 {
		return fmt.Errorf("%w: candidate %s similarity out of range: %v", shared.ErrValidation, c.UserID, c.MusicSimilarity)
	}
	if c.DistanceKm < 0 {
		return fmt.Errorf("%w: candidate %s has negative distance", shared.ErrValidation, c.UserID)
	}
	if c.ActivityScore < 0 || c.ActivityScore > 1 {
		return fmt.Errorf("%w: candidate %s activity out of range: %v", shared.ErrValidation, c.UserID, c.ActivityScore)
	}
	return nil
}

// CandidateQuery is the input to a candidate source.
//
// Date, when set, excludes candidates who already have a match on that day. The
// conditional commit still decides double-booking; this only trims the pool.
type CandidateQuery struct {
	UserID        string
	Embedding     []float64
	Location      Location
	MaxDistanceKm float64
	Date          string
}
