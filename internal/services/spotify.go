// Spotify Web API implementation of [PlaylistService] and [OAuthService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/desertthunder/playvote/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// maxTracksPerRequest is the limit of GET /tracks?ids=.
	maxTracksPerRequest = 50
	maxRetryAfter       = 2 * time.Second
	batchConcurrency    = 4
)

// spotifyIDPattern matches Spotify's base62 track IDs.
var spotifyIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// IsSpotifyID reports whether id has the shape of a Spotify track ID.
func IsSpotifyID(id string) bool {
	return spotifyIDPattern.MatchString(id)
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
// Track is nil for local files and unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks is a page of playlist items.
type SpotifyPaginatedTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string                 `json:"id"`
	Owner  SpotifyUser            `json:"owner"`
	Tracks SpotifyPaginatedTracks `json:"tracks"`
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the Web API client at baseURL instead of api.spotify.com.
func WithBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithEndpoint overrides the OAuth authorize and token URLs.
func WithEndpoint(authURL, tokenURL string) SpotifyOption {
	return func(s *SpotifyService) {
		if authURL != "" {
			s.config.Endpoint.AuthURL = authURL
		}
		if tokenURL != "" {
			s.config.Endpoint.TokenURL = tokenURL
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its timeout is left as is.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(d time.Duration) SpotifyOption {
	return func(s *SpotifyService) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many times a 429, 5xx or timeout is retried. Writes are
// only retried on 429.
func WithRetries(n int) SpotifyOption {
	return func(s *SpotifyService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(rps float64) SpotifyOption {
	return func(s *SpotifyService) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		} else {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) SpotifyOption {
	return func(s *SpotifyService) {
		if d > 0 {
			s.initialBackoff = d
		}
	}
}

// SpotifyService implements [PlaylistService] and [OAuthService] for the Spotify Web API.
// It is safe for concurrent use; every call carries the caller's access token.
type SpotifyService struct {
	config         *oauth2.Config
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:         config,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		baseURL:        spotifyBaseURL,
		limiter:        rate.NewLimiter(rate.Limit(10), 10),
		maxRetries:     1,
		initialBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSpotifyServiceFromConfig builds a [SpotifyService] from application config.
func NewSpotifyServiceFromConfig(cfg *shared.Config) (*SpotifyService, error) {
	creds := cfg.Credentials.Spotify
	return NewSpotifyService(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"redirect_uri":  creds.RedirectURI,
	},
		WithBaseURL(cfg.Spotify.BaseURL),
		WithEndpoint(cfg.Spotify.AuthURL, cfg.Spotify.TokenURL),
		WithTimeout(cfg.Spotify.Timeout),
		WithRetries(cfg.Spotify.MaxRetries),
		WithRateLimit(cfg.Spotify.RateLimit),
	)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthCodeURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, shared.Wrap(shared.KindUnauthorized, err, "failed to exchange auth code")
	}
	return token, nil
}

// Refresh obtains a new access token from a refresh token.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.Wrap(shared.KindBadRequest, shared.ErrNoRefreshToken, "refresh_token is required")
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, shared.Wrap(shared.KindUnauthorized, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err), "failed to refresh token")
	}
	return token, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// GetPlaylist retrieves a playlist's owner and every track, following pagination.
func (s *SpotifyService) GetPlaylist(ctx context.Context, token, playlistID string) (*Playlist, error) {
	q := url.Values{}
	q.Set("fields", "id,owner(id,display_name),tracks(items(added_at,track(id)),next,total)")
	q.Set("market", "from_token")
	endpoint := fmt.Sprintf("/playlists/%s?%s", url.PathEscape(playlistID), q.Encode())

	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, token, http.MethodGet, endpoint, nil, &sp); err != nil {
		return nil, notFoundAs(err, shared.ErrPlaylistNotFound, "playlist %s does not exist", playlistID)
	}

	playlist := &Playlist{
		ID:               sp.ID,
		OwnerID:          sp.Owner.ID,
		OwnerDisplayName: sp.Owner.DisplayName,
	}
	if playlist.ID == "" {
		playlist.ID = playlistID
	}
	appendItems(playlist, sp.Tracks.Items)

	next := sp.Tracks.Next
	for next != nil && *next != "" {
		var page SpotifyPaginatedTracks
		if err := s.doRequest(ctx, token, http.MethodGet, *next, nil, &page); err != nil {
			return nil, notFoundAs(err, shared.ErrPlaylistNotFound, "playlist %s does not exist", playlistID)
		}
		appendItems(playlist, page.Items)
		next = page.Next
	}

	return playlist, nil
}

func appendItems(p *Playlist, items []SpotifyPlaylistTrack) {
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" {
			continue
		}
		added, _ := time.Parse(time.RFC3339, item.AddedAt)
		p.Tracks = append(p.Tracks, PlaylistTrack{ID: item.Track.ID, AddedAt: added})
	}
}

// AddTrack appends trackID to the playlist unless it is already there.
func (s *SpotifyService) AddTrack(ctx context.Context, token, playlistID, trackID string) (bool, error) {
	playlist, err := s.GetPlaylist(ctx, token, playlistID)
	if err != nil {
		return false, err
	}
	if playlist.Contains(trackID) {
		return false, nil
	}

	body := map[string]any{"uris": []string{trackURI(trackID)}}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, token, http.MethodPost, endpoint, body, nil); err != nil {
		return false, notFoundAs(err, shared.ErrPlaylistNotFound, "playlist %s does not exist", playlistID)
	}
	return true, nil
}

// RemoveTrack removes every occurrence of trackID if the playlist has it.
func (s *SpotifyService) RemoveTrack(ctx context.Context, token, playlistID, trackID string) (bool, error) {
	playlist, err := s.GetPlaylist(ctx, token, playlistID)
	if err != nil {
		return false, err
	}
	if !playlist.Contains(trackID) {
		return false, nil
	}

	body := map[string]any{"tracks": []map[string]string{{"uri": trackURI(trackID)}}}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, token, http.MethodDelete, endpoint, body, nil); err != nil {
		return false, notFoundAs(err, shared.ErrPlaylistNotFound, "playlist %s does not exist", playlistID)
	}
	return true, nil
}

func trackURI(id string) string {
	return "spotify:track:" + id
}

// GetTracks retrieves metadata for trackIDs in batches of 50, fetched concurrently.
// IDs that are malformed or unknown to Spotify yield nil entries.
func (s *SpotifyService) GetTracks(ctx context.Context, token string, trackIDs []string) ([]*TrackMetadata, error) {
	result := make([]*TrackMetadata, len(trackIDs))

	var valid []int
	for i, id := range trackIDs {
		if IsSpotifyID(id) {
			valid = append(valid, i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for start := 0; start < len(valid); start += maxTracksPerRequest {
		batch := valid[start:min(start+maxTracksPerRequest, len(valid))]
		g.Go(func() error {
			ids := make([]string, len(batch))
			for j, idx := range batch {
				ids[j] = trackIDs[idx]
			}

			tracks, err := s.SeveralTracks(gctx, token, ids)
			if shared.IsKind(err, shared.KindBadRequest) {
				tracks, err = s.tracksOneByOne(gctx, token, ids)
			}
			if err != nil {
				return err
			}

			for j, idx := range batch {
				if j < len(tracks) && tracks[j] != nil {
					result[idx] = toMetadata(tracks[j])
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// SeveralTracks retrieves up to 50 tracks by ID; unknown IDs come back nil.
func (s *SpotifyService) SeveralTracks(ctx context.Context, token string, trackIDs []string) ([]*SpotifyTrack, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	if len(trackIDs) > maxTracksPerRequest {
		return nil, fmt.Errorf("%w: maximum %d track IDs allowed", shared.ErrInvalidArgument, maxTracksPerRequest)
	}

	endpoint := "/tracks?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))

	var response struct {
		Tracks []*SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, token, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, token, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	endpoint := "/tracks/" + url.PathEscape(trackID)
	if err := s.doRequest(ctx, token, http.MethodGet, endpoint, nil, &track); err != nil {
		return nil, notFoundAs(err, shared.ErrTrackNotFound, "track %s does not exist", trackID)
	}
	return &track, nil
}

func (s *SpotifyService) tracksOneByOne(ctx context.Context, token string, trackIDs []string) ([]*SpotifyTrack, error) {
	tracks := make([]*SpotifyTrack, len(trackIDs))
	for i, id := range trackIDs {
		track, err := s.Track(ctx, token, id)
		switch {
		case shared.IsKind(err, shared.KindNotFound), shared.IsKind(err, shared.KindBadRequest):
			continue
		case err != nil:
			return nil, err
		}
		tracks[i] = track
	}
	return tracks, nil
}

func toMetadata(t *SpotifyTrack) *TrackMetadata {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return &TrackMetadata{
		ID:         t.ID,
		Title:      t.Name,
		Artists:    artists,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
	}
}

// GetUser retrieves a user's public profile.
func (s *SpotifyService) GetUser(ctx context.Context, token, userID string) (*UserProfile, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, token, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, notFoundAs(err, shared.ErrUserNotFound, "user %s does not exist", userID)
	}
	return &UserProfile{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// CurrentUser retrieves the profile of the token's owner.
func (s *SpotifyService) CurrentUser(ctx context.Context, token string) (*UserProfile, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, token, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &UserProfile{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// statusError is a non-2xx Spotify response.
type statusError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

func (e *statusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// doRequest performs an authenticated HTTP request to the Spotify API, retrying
// transient failures. endpoint is a path under the base URL or an absolute URL
// taken from a pagination link.
//
// Writes are only retried on 429, which Spotify sends before applying anything.
// A write that timed out or hit a 5xx may have been applied, so it fails with
// KindUnavailable and the caller re-reads the playlist before trying again.
func (s *SpotifyService) doRequest(ctx context.Context, token, method, endpoint string, body, result any) error {
	if token == "" {
		return shared.Wrap(shared.KindUnauthorized, shared.ErrNotAuthenticated, "missing access token")
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx)

	readOnly := method == http.MethodGet || method == http.MethodHead

	op := func() error {
		err := s.roundTrip(ctx, token, method, apiURL, payload, result)
		if err == nil {
			return nil
		}

		var se *statusError
		switch {
		case errors.As(err, &se) && se.retryable() && (readOnly || se.Status == http.StatusTooManyRequests):
			if se.RetryAfter > 0 {
				wait := min(se.RetryAfter, maxRetryAfter)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return err
		case readOnly && isTimeout(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	if err := backoff.Retry(op, policy); err != nil {
		return classify(err)
	}
	return nil
}

func (s *SpotifyService) roundTrip(ctx context.Context, token, method, apiURL string, payload []byte, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
		return se
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts the message of Spotify's {"error":{"status","message"}} body.
func errorMessage(r io.Reader) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || json.Unmarshal(data, &body) != nil {
		return ""
	}
	return body.Error.Message
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify maps a transport or status failure to a [shared.Error].
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) && !isTimeout(err) {
		return err
	}

	var se *statusError
	if !errors.As(err, &se) {
		if isTimeout(err) {
			return shared.Wrap(shared.KindUnavailable, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err), "spotify timed out")
		}
		return shared.Wrap(shared.KindInternal, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err), "spotify request failed")
	}

	switch {
	case se.Status == http.StatusUnauthorized:
		return shared.Wrap(shared.KindUnauthorized, fmt.Errorf("%w: %w", shared.ErrTokenExpired, se), "spotify rejected the access token")
	case se.Status == http.StatusForbidden:
		return shared.Wrap(shared.KindForbidden, se, "spotify denied access")
	case se.Status == http.StatusNotFound:
		return shared.Wrap(shared.KindNotFound, se, "spotify resource not found")
	case se.Status == http.StatusBadRequest:
		return shared.Wrap(shared.KindBadRequest, fmt.Errorf("%w: %w", shared.ErrAPIRequest, se), "spotify rejected the request")
	case se.retryable():
		return shared.Wrap(shared.KindUnavailable, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, se), "spotify is unavailable")
	default:
		return shared.Wrap(shared.KindInternal, fmt.Errorf("%w: %w", shared.ErrAPIRequest, se), "spotify request failed")
	}
}

// notFoundAs rewrites a not-found failure with a resource-specific sentinel and message.
func notFoundAs(err, sentinel error, format string, args ...any) error {
	if !shared.IsKind(err, shared.KindNotFound) {
		return err
	}
	return shared.Wrap(shared.KindNotFound, fmt.Errorf("%w: %w", sentinel, err), format, args...)
}

var (
	_ PlaylistService = (*SpotifyService)(nil)
	_ OAuthService    = (*SpotifyService)(nil)
)
