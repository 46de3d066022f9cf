package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		m := NewMatcher(&stubUsers{}, &stubCandidates{}, newMemoryMatches(), nil, MatcherOptions{})
		_, err := NewScheduler(m, "every tuesday", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})

	t.Run("next run follows the schedule", func(t *testing.T) {
		m := NewMatcher(&stubUsers{}, &stubCandidates{}, newMemoryMatches(), nil, MatcherOptions{})
		s, err := NewScheduler(m, "", nil)
		require.NoError(t, err)

		s.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			assert.NoError(t, s.Stop(ctx))
		}()

		next := s.Next().UTC()
		assert.Equal(t, 18, next.Hour())
		assert.Equal(t, 30, next.Minute())
		assert.True(t, next.After(time.Now()))
	})

	t.Run("trigger runs the matcher", func(t *testing.T) {
		a, b := stubUser("A"), stubUser("B")
		candidates := &stubCandidates{byUser: map[string][]models.Candidate{
			a.ID(): {{UserID: b.ID(), MusicSimilarity: 1, DistanceKm: 0, ActivityScore: 1}},
		}}
		store := newMemoryMatches()
		m := NewMatcher(&stubUsers{users: []*models.User{a, b}}, candidates, store, nil, MatcherOptions{Workers: 1})
		m.SetClock(func() time.Time { return testNow })

		s, err := NewScheduler(m, "@every 1h", nil)
		require.NoError(t, err)

		result, err := s.Trigger(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.MatchesCreated)
		assert.InDelta(t, 1.0, result.Matches[0].Score, 1e-9)

		select {
		case got := <-s.Results():
			assert.Same(t, result, got)
		default:
			t.Fatal("expected a result to be published")
		}
	})
}
