package scoring

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		v := []float64{0.2, 0.9, 0.4, 0, 1}
		sim, err := Similarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		r := rand.New(rand.NewPCG(1, 2))
		for range 20 {
			a, b := make([]float64, models.EmbeddingDims), make([]float64, models.EmbeddingDims)
			for i := range a {
				a[i], b[i] = r.Float64(), r.Float64()
			}
			ab, err := Similarity(a, b)
			require.NoError(t, err)
			ba, err := Similarity(b, a)
			require.NoError(t, err)
			assert.InDelta(t, ab, ba, 1e-12)
		}
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		sim, err := Similarity([]float64{1, 0, 0}, []float64{0, 1, 0})
		require.NoError(t, err)
		assert.Zero(t, sim)
	})

	t.Run("zero vector", func(t *testing.T) {
		sim, err := Similarity(make([]float64, 3), []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Zero(t, sim)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Similarity(ones(17), ones(16))
		assert.ErrorIs(t, err, shared.ErrDimensionMismatch)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestMatchScore(t *testing.T) {
	t.Run("perfect candidate", func(t *testing.T) {
		sim, err := Similarity(ones(models.EmbeddingDims), ones(models.EmbeddingDims))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
		assert.InDelta(t, 1.0, MatchScore(sim, 0, 1, DefaultMaxDistanceKm), 1e-9)
	})

	t.Run("beyond max distance earns no distance credit", func(t *testing.T) {
		assert.InDelta(t, 0.6, MatchScore(1, 50, 0, 50), 1e-9)
		assert.InDelta(t, 0.6, MatchScore(1, 500, 0, 50), 1e-9)
	})

	t.Run("default max distance", func(t *testing.T) {
		assert.Equal(t, MatchScore(0.5, 25, 0.5, 50), MatchScore(0.5, 25, 0.5, 0))
		assert.InDelta(t, 0.5, DistanceScore(25, 0), 1e-9)
	})

	t.Run("monotonic", func(t *testing.T) {
		steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
		for i := 1; i < len(steps); i++ {
			lo, hi := steps[i-1], steps[i]
			assert.LessOrEqual(t, MatchScore(lo, 10, 0.5, 50), MatchScore(hi, 10, 0.5, 50))
			assert.LessOrEqual(t, MatchScore(0.5, 10, lo, 50), MatchScore(0.5, 10, hi, 50))
			assert.GreaterOrEqual(t, MatchScore(0.5, lo*60, 0.5, 50), MatchScore(0.5, hi*60, 0.5, 50))
		}
	})
}

func TestActivityScore(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tc := []struct {
		name     string
		lastSync time.Time
		want     float64
	}{
		{"never synced", time.Time{}, 0},
		{"just now", now, 1},
		{"within a day", now.Add(-23 * time.Hour), 1},
		{"halfway", now.Add(-(24*time.Hour + 29*12*time.Hour)), 0.5},
		{"thirty days", now.Add(-30 * 24 * time.Hour), 0},
		{"ancient", now.Add(-365 * 24 * time.Hour), 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ActivityScore(tt.lastSync, now), 1e-9)
		})
	}
}

func TestBest(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		_, ok := Best(nil, 50)
		assert.False(t, ok)
	})

	t.Run("highest score wins", func(t *testing.T) {
		best, ok := Best([]models.Candidate{
			{UserID: "a", MusicSimilarity: 0.5, DistanceKm: 5, ActivityScore: 1},
			{UserID: "b", MusicSimilarity: 0.9, DistanceKm: 5, ActivityScore: 1},
			{UserID: "c", MusicSimilarity: 0.9, DistanceKm: 40, ActivityScore: 1},
		}, 50)
		require.True(t, ok)
		assert.Equal(t, "b", best.UserID)
	})

	t.Run("ties broken by id", func(t *testing.T) {
		best, ok := Best([]models.Candidate{
			{UserID: "zed", MusicSimilarity: 0.7, DistanceKm: 1, ActivityScore: 1},
			{UserID: "amy", MusicSimilarity: 0.7, DistanceKm: 1, ActivityScore: 1},
		}, 50)
		require.True(t, ok)
		assert.Equal(t, "amy", best.UserID)
	})
}
