// Spotify API implementation of [ListeningHistory]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	defaultTimeRange   = "medium_term"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAudioFeatures represents the audio descriptors of a track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Valence          float64 `json:"valence"`
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Tempo            float64 `json:"tempo"`
	Loudness         float64 `json:"loudness"`
}

type topTracksResponse struct {
	Items []SpotifyTrack `json:"items"`
}

type topArtistsResponse struct {
	Items []SpotifyArtist `json:"items"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
}

// SpotifyService implements [ListeningHistory] and [OAuthService] for the Spotify Web API.
// Uses [oauth2] for authentication and a shared [rate.Limiter] for all requests.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	limiter        *rate.Limiter
	baseURL        string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-top-read",
			"user-read-recently-played",
			"user-read-private",
			"user-read-email",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetRateLimit bounds outgoing API calls. Clients derived with [SpotifyService.ForToken]
// share the limiter, so the bound applies across all users.
func (s *SpotifyService) SetRateLimit(requestsPerSecond float64, burst int) {
	if requestsPerSecond <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1))
}

// SetTokenRefreshCallback registers a function called whenever the access token
// changes, so rotated tokens can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	s.onTokenRefresh = callback
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for an access and refresh token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Authenticate binds the service to a token. Expects either an "access_token" (with an
// optional "refresh_token") or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.bind(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.Exchange(ctx, authCode)
		if err != nil {
			return err
		}
		s.bind(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// ForToken returns a client bound to token that shares this service's configuration,
// limiter and refresh callback. onRefresh runs after the shared callback for tokens
// rotated by this client only.
func (s *SpotifyService) ForToken(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) ListeningHistory {
	c := &SpotifyService{
		config:         s.config,
		limiter:        s.limiter,
		baseURL:        s.baseURL,
		onTokenRefresh: chainRefresh(s.onTokenRefresh, onRefresh),
	}
	c.bind(ctx, token)
	return c
}

func chainRefresh(callbacks ...func(*oauth2.Token)) func(*oauth2.Token) {
	var set []func(*oauth2.Token)
	for _, cb := range callbacks {
		if cb != nil {
			set = append(set, cb)
		}
	}
	switch len(set) {
	case 0:
		return nil
	case 1:
		return set[0]
	}
	return func(token *oauth2.Token) {
		for _, cb := range set {
			cb(token)
		}
	}
}

func (s *SpotifyService) bind(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.httpClient = oauth2.NewClient(ctx, &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	})
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: spotify status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func topQuery(limit int) url.Values {
	if limit <= 0 || limit > TopItemsLimit {
		limit = TopItemsLimit
	}
	return url.Values{
		"limit":      {fmt.Sprint(limit)},
		"time_range": {defaultTimeRange},
	}
}

// TopTracks retrieves the user's medium-term top tracks.
func (s *SpotifyService) TopTracks(ctx context.Context, limit int) ([]models.Track, error) {
	var response topTracksResponse
	if err := s.doRequest(ctx, "/me/top/tracks", topQuery(limit), &response); err != nil {
		return nil, fmt.Errorf("failed to get top tracks: %w", err)
	}

	tracks := make([]models.Track, 0, len(response.Items))
	for _, item := range response.Items {
		track := models.Track{ID: item.ID, Name: item.Name}
		for _, a := range item.Artists {
			track.Artists = append(track.Artists, a.Name)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// TopArtists retrieves the user's medium-term top artists.
func (s *SpotifyService) TopArtists(ctx context.Context, limit int) ([]models.Artist, error) {
	var response topArtistsResponse
	if err := s.doRequest(ctx, "/me/top/artists", topQuery(limit), &response); err != nil {
		return nil, fmt.Errorf("failed to get top artists: %w", err)
	}

	artists := make([]models.Artist, 0, len(response.Items))
	for _, item := range response.Items {
		artist := models.Artist{ID: item.ID, Name: item.Name, Genres: item.Genres}
		if len(item.Images) > 0 {
			artist.ImageURL = item.Images[0].URL
		}
		artists = append(artists, artist)
	}
	return artists, nil
}

// AudioFeatures retrieves audio descriptors in batches of [MaxAudioFeatureIDs].
// Tracks without descriptors come back as null and are dropped.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error) {
	var features []models.AudioFeatures
	for start := 0; start < len(trackIDs); start += MaxAudioFeatureIDs {
		chunk := trackIDs[start:min(start+MaxAudioFeatureIDs, len(trackIDs))]

		var response audioFeaturesResponse
		query := url.Values{"ids": {strings.Join(chunk, ",")}}
		if err := s.doRequest(ctx, "/audio-features", query, &response); err != nil {
			return nil, fmt.Errorf("failed to get audio features: %w", err)
		}

		for _, af := range response.AudioFeatures {
			if af == nil {
				continue
			}
			features = append(features, models.AudioFeatures{
				TrackID:          af.ID,
				Valence:          af.Valence,
				Energy:           af.Energy,
				Danceability:     af.Danceability,
				Acousticness:     af.Acousticness,
				Instrumentalness: af.Instrumentalness,
				Tempo:            af.Tempo,
				Loudness:         af.Loudness,
			})
		}
	}
	return features, nil
}

// refreshableTokenSource wraps a token source and reports every new access token.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
