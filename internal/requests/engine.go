package requests

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvote/internal/events"
	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
)

const (
	DefaultGracePeriod       = 5 * time.Minute
	DefaultMaxAdministrators = 10
)

// RequestStore is the song request ledger.
type RequestStore interface {
	Get(ctx context.Context, id string) (*models.SongRequest, error)
	CreatePending(ctx context.Context, req *models.SongRequest) (*models.SongRequest, bool, error)
	ListPending(ctx context.Context, playlistID, userID string) ([]*models.RequestTally, error)
	Transition(ctx context.Context, id string, status models.RequestStatus, deleteAt time.Time) (*models.SongRequest, error)
}

// VoteStore records one vote per request and user.
type VoteStore interface {
	Add(ctx context.Context, requestID, userID string) (bool, error)
	Remove(ctx context.Context, requestID, userID string) (bool, error)
	Count(ctx context.Context, requestID string) (int, error)
}

// AdminStore holds per-playlist administrator grants.
type AdminStore interface {
	List(ctx context.Context, playlistID string) ([]*models.Administrator, error)
	IsAdmin(ctx context.Context, playlistID, userID string) (bool, error)
	Add(ctx context.Context, playlistID, userID string) (bool, error)
	Remove(ctx context.Context, playlistID, userID string) (bool, error)
}

// Options configures an [Engine]. Stores and Playlists are required.
type Options struct {
	Users     UserStore
	Requests  RequestStore
	Votes     VoteStore
	Admins    AdminStore
	Playlists services.PlaylistService
	Events    events.Publisher
	Logger    *log.Logger

	GracePeriod       time.Duration
	MaxAdministrators int
	Now               func() time.Time
}

// Engine runs request, voting and administration operations on behalf of
// callers identified by their Authorization header.
type Engine struct {
	resolver  *Resolver
	requests  RequestStore
	votes     VoteStore
	admins    AdminStore
	playlists services.PlaylistService
	events    events.Publisher
	logger    *log.Logger

	grace     time.Duration
	maxAdmins int
	now       func() time.Time
}

// NewEngine creates an [Engine], filling unset options with defaults.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		resolver:  NewResolver(opts.Users),
		requests:  opts.Requests,
		votes:     opts.Votes,
		admins:    opts.Admins,
		playlists: opts.Playlists,
		events:    opts.Events,
		logger:    opts.Logger,
		grace:     opts.GracePeriod,
		maxAdmins: opts.MaxAdministrators,
		now:       opts.Now,
	}

	if e.events == nil {
		e.events = events.NopPublisher{}
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.grace <= 0 {
		e.grace = DefaultGracePeriod
	}
	if e.maxAdmins <= 0 {
		e.maxAdmins = DefaultMaxAdministrators
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// Resolve exposes the engine's identity resolver.
func (e *Engine) Resolve(ctx context.Context, authHeader string) (*Caller, error) {
	return e.resolver.Resolve(ctx, authHeader)
}

// isOwnerOrAdmin reports whether userID has authority over the playlist.
// The owner is never stored as an administrator.
func (e *Engine) isOwnerOrAdmin(ctx context.Context, playlist *services.Playlist, userID string) (bool, error) {
	if playlist.OwnerID == userID {
		return true, nil
	}
	ok, err := e.admins.IsAdmin(ctx, playlist.ID, userID)
	if err != nil {
		return false, shared.Wrap(shared.KindInternal, err, "failed to check administrator")
	}
	return ok, nil
}

// requireOwnerOrAdmin fails with Forbidden unless userID has authority.
func (e *Engine) requireOwnerOrAdmin(ctx context.Context, playlist *services.Playlist, userID string) error {
	ok, err := e.isOwnerOrAdmin(ctx, playlist, userID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.E(shared.KindForbidden, "only the playlist owner or an administrator may do this")
	}
	return nil
}

// loadRequest fetches a request and checks it belongs to playlistID when given.
func (e *Engine) loadRequest(ctx context.Context, playlistID, requestID string) (*models.SongRequest, error) {
	req, err := e.requests.Get(ctx, requestID)
	if errors.Is(err, shared.ErrRequestNotFound) {
		return nil, shared.Wrap(shared.KindNotFound, err, "request %s does not exist", requestID)
	}
	if err != nil {
		return nil, shared.Wrap(shared.KindInternal, err, "failed to load request")
	}
	if playlistID != "" && req.PlaylistID != playlistID {
		return nil, shared.Wrap(shared.KindNotFound, shared.ErrRequestNotFound, "request %s does not exist", requestID)
	}
	return req, nil
}

func notPending(req *models.SongRequest) error {
	return shared.Wrap(shared.KindConflict, shared.ErrRequestNotPending, "request %s is already %s", req.ID, req.Status).
		WithDetail("currentStatus", string(req.Status))
}

// publish emits evt; failures are logged and never returned.
func (e *Engine) publish(ctx context.Context, evt events.Event) {
	if evt.At.IsZero() {
		evt.At = e.now()
	}
	if err := e.events.Publish(ctx, evt); err != nil {
		e.logger.Warn("event publish failed", "type", evt.Type, "playlist", evt.PlaylistID, "error", err)
	}
}

// storeErr classifies an unexpected persistence failure.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var se *shared.Error
	if errors.As(err, &se) {
		return err
	}
	return shared.Wrap(shared.KindInternal, err, "%s", msg)
}
