// Package services implements the external collaborators of the request
// engine: [PlaylistService] and [OAuthService], both backed by the Spotify Web
// API in [SpotifyService].
//
// # Spotify Implementation
//
// [SpotifyService] is shared by all callers; each call carries the caller's
// access token. Requests go through a client-side rate limiter, a bounded
// client timeout and a single retry with exponential backoff on 429 and 5xx.
//
// Membership changes are idempotent: [SpotifyService.AddTrack] and
// [SpotifyService.RemoveTrack] re-read the playlist first and report whether
// they actually wrote.
//
// # Error Handling
//
// Provider failures are mapped to [shared.Error] kinds:
//   - 401 : [shared.KindUnauthorized] wrapping [shared.ErrTokenExpired]
//   - 403 : [shared.KindForbidden]
//   - 404 : [shared.KindNotFound] wrapping [shared.ErrPlaylistNotFound] or [shared.ErrTrackNotFound]
//   - 429, 5xx and timeouts after retries : [shared.KindUnavailable] wrapping [shared.ErrServiceUnavailable]
//   - anything else : [shared.KindInternal] wrapping [shared.ErrAPIRequest]
package services
