// package services defines the listening-history provider contract and its Spotify implementation
package services

import (
	"context"

	"github.com/desertthunder/chord/internal/models"
	"golang.org/x/oauth2"
)

const (
	// TopItemsLimit is how many top tracks and top artists a sync reads.
	TopItemsLimit = 50
	// MaxAudioFeatureIDs is the provider's cap on track ids per audio descriptor call.
	MaxAudioFeatureIDs = 100
)

// ListeningHistory is the read-only listening-history provider that feeds the taste
// profile builder.
type ListeningHistory interface {
	// TopTracks returns up to limit of the user's most played tracks.
	TopTracks(ctx context.Context, limit int) ([]models.Track, error)

	// TopArtists returns up to limit of the user's most played artists with their genres.
	TopArtists(ctx context.Context, limit int) ([]models.Artist, error)

	// AudioFeatures returns audio descriptors for the given tracks. Tracks the
	// provider has no descriptors for are omitted from the result.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error)

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}

// OAuthService is implemented by providers that authorize users with an OAuth2 code flow.
type OAuthService interface {
	// AuthURL returns the URL the user visits to grant access.
	AuthURL(state string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// HistoryFactory builds a provider client bound to one user's token. onRefresh, when
// non-nil, receives every access token the client rotates to.
type HistoryFactory interface {
	ForToken(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) ListeningHistory
}
