package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/services"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/desertthunder/chord/internal/taste"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// TokenStore loads a user's provider token and stores the ones the provider rotates.
type TokenStore interface {
	Get(ctx context.Context, userID string) (*oauth2.Token, error)
	Save(ctx context.Context, userID string, token *oauth2.Token) error
}

// ProfileStore persists a rebuilt taste profile.
type ProfileStore interface {
	SaveProfile(ctx context.Context, userID string, profile models.TasteProfile) error
}

// ProfileSyncer refreshes a user's taste profile from their listening history.
type ProfileSyncer struct {
	tokens    TokenStore
	profiles  ProfileStore
	histories services.HistoryFactory
	logger    *log.Logger
	now       func() time.Time
}

// NewProfileSyncer creates a [ProfileSyncer].
func NewProfileSyncer(tokens TokenStore, profiles ProfileStore, histories services.HistoryFactory, logger *log.Logger) *ProfileSyncer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ProfileSyncer{
		tokens:    tokens,
		profiles:  profiles,
		histories: histories,
		logger:    shared.WithLogger(logger, "component", "sync"),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for the profile's sync timestamp.
func (s *ProfileSyncer) SetClock(now func() time.Time) {
	s.now = now
}

// Sync fetches top tracks, top artists and audio features, rebuilds the profile
// and replaces the stored one.
func (s *ProfileSyncer) Sync(ctx context.Context, userID string, progress chan<- ProgressUpdate) (*models.TasteProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	token, err := s.tokens.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := s.histories.ForToken(ctx, token, s.saveRotated(ctx, userID))

	sendProgress(progress, fetchTracksUpdate(userID))

	var in taste.Listening
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tracks, err := history.TopTracks(gctx, services.TopItemsLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch top tracks: %w", err)
		}
		in.Tracks = tracks
		return nil
	})
	g.Go(func() error {
		artists, err := history.TopArtists(gctx, services.TopItemsLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch top artists: %w", err)
		}
		in.Artists = artists
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sendProgress(progress, fetchArtistsUpdate(len(in.Tracks), len(in.Artists)))

	ids := make([]string, 0, len(in.Tracks))
	for _, t := range in.Tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}

	chunks := (len(ids) + services.MaxAudioFeatureIDs - 1) / services.MaxAudioFeatureIDs
	step := 0
	for chunk := range slices.Chunk(ids, services.MaxAudioFeatureIDs) {
		step++
		sendProgress(progress, fetchFeaturesUpdate(step, chunks))

		features, err := history.AudioFeatures(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch audio features: %w", err)
		}
		in.Features = append(in.Features, features...)
	}

	profile := taste.Build(in, s.now().UTC())
	if err := s.profiles.SaveProfile(ctx, userID, profile); err != nil {
		return nil, err
	}
	sendProgress(progress, saveProfileUpdate(&profile))

	s.logger.Info("profile synced",
		"user_id", userID, "provider", history.Name(),
		"tracks", len(in.Tracks), "artists", len(in.Artists), "features", len(in.Features))
	return &profile, nil
}

// saveRotated persists tokens refreshed mid-sync. A failed save is logged and the sync
// continues.
func (s *ProfileSyncer) saveRotated(ctx context.Context, userID string) func(*oauth2.Token) {
	ctx = context.WithoutCancel(ctx)
	return func(token *oauth2.Token) {
		if err := s.tokens.Save(ctx, userID, token); err != nil {
			s.logger.Warn("failed to save refreshed token", "user_id", userID, "error", err)
			return
		}
		s.logger.Debug("refreshed token saved", "user_id", userID)
	}
}
