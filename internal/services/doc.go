// Package services defines the [ListeningHistory] interface for music listening providers and implements it for Spotify.
//
// # ListeningHistory Interface
//
// The taste profile builder only needs three read operations: top tracks, top artists (with genres) and per-track
// audio descriptors. Providers map their JSON responses onto [models.Track], [models.Artist] and
// [models.AudioFeatures].
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh token. A callback registered with
// [SpotifyService.SetTokenRefreshCallback] sees each new access token so it can be stored.
//
// [SpotifyService.ForToken] derives a per-user client. All derived clients share one [rate.Limiter].
//
// Audio descriptors are requested in batches of at most [MaxAudioFeatureIDs] track ids. Tracks without descriptors
// come back as null and are dropped.
//
// # OAuth Service Extension
//
// The [OAuthService] interface covers the authorization code flow used by the CLI and the HTTP callback.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token bound
//   - [shared.ErrTokenExpired] : provider returned 401, reauthorization needed
//   - [shared.ErrServiceUnavailable] : rate limited or provider failure
//   - [shared.ErrAPIRequest] : any other failed request
package services
