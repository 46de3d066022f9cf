// package scoring implements the similarity and composite match score functions
// used to rank candidates.
package scoring

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
)

// Weights of the composite score. They sum to one, so a perfect candidate scores 1.
const (
	SimilarityWeight = 0.6
	DistanceWeight   = 0.3
	ActivityWeight   = 0.1

	DefaultMaxDistanceKm = 50.0
)

// Activity decay window: fully active within a day of the last sync, inactive after 30.
const (
	activeWindow = 24 * time.Hour
	staleWindow  = 30 * 24 * time.Hour
)

// Similarity returns the cosine similarity of two equal-length vectors.
// A zero vector on either side yields 0 without error.
func Similarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", shared.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denominator := math.Sqrt(normA) * math.Sqrt(normB)
	if denominator == 0 {
		return 0, nil
	}
	return dot / denominator, nil
}

// DistanceScore maps a distance to [0,1]: 1 at zero km, 0 at or beyond maxDistanceKm.
// A non-positive maxDistanceKm uses [DefaultMaxDistanceKm].
func DistanceScore(distanceKm, maxDistanceKm float64) float64 {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxDistanceKm
	}
	return 1 - math.Min(math.Max(distanceKm, 0)/maxDistanceKm, 1)
}

// MatchScore is the weighted sum of similarity, distance credit and activity.
func MatchScore(musicSimilarity, distanceKm, activityScore, maxDistanceKm float64) float64 {
	return SimilarityWeight*musicSimilarity +
		DistanceWeight*DistanceScore(distanceKm, maxDistanceKm) +
		ActivityWeight*activityScore
}

// ActivityScore rates how recently a profile was synced, relative to now.
func ActivityScore(lastSync, now time.Time) float64 {
	if lastSync.IsZero() {
		return 0
	}
	age := now.Sub(lastSync)
	switch {
	case age <= activeWindow:
		return 1
	case age >= staleWindow:
		return 0
	default:
		return 1 - float64(age-activeWindow)/float64(staleWindow-activeWindow)
	}
}

// Ranked is a candidate together with its composite score.
type Ranked struct {
	models.Candidate
	Score float64
}

// Rank scores every candidate and orders them best first. Equal scores are ordered
// by candidate id so the result is deterministic.
func Rank(candidates []models.Candidate, maxDistanceKm float64) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, Ranked{
			Candidate: c,
			Score:     MatchScore(c.MusicSimilarity, c.DistanceKm, c.ActivityScore, maxDistanceKm),
		})
	}

	slices.SortFunc(ranked, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return ranked
}

// Best returns the highest scoring candidate, or false when there are none.
func Best(candidates []models.Candidate, maxDistanceKm float64) (Ranked, bool) {
	ranked := Rank(candidates, maxDistanceKm)
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	return ranked[0], true
}
