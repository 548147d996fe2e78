package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/requests"
	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler registers a group of routes on a router.
type Handler interface {
	Register(r chi.Router)
}

// API is the set of playlist operations served under /playlists.
// [requests.Engine] implements it.
type API interface {
	GetPendingRequests(ctx context.Context, playlistID, authHeader string) (*requests.SongRequestList, error)
	ProposeSongChanges(ctx context.Context, playlistID, authHeader string, songsToAdd, songsToRemove []string) (*requests.PlaylistSongsDifference, error)
	SetRequestStatus(ctx context.Context, playlistID, requestID, authHeader, status string) (*requests.ResolutionResult, error)
	Vote(ctx context.Context, playlistID, requestID, authHeader string) error
	Unvote(ctx context.Context, playlistID, requestID, authHeader string) error
	GetAdministrators(ctx context.Context, playlistID, authHeader string) (*requests.UserList, error)
	UpdateAdministrators(ctx context.Context, playlistID, authHeader string, usersToAdd, usersToRemove []string) (*requests.UserList, error)
	GetSongs(ctx context.Context, playlistID, authHeader string) (*requests.SongList, error)
	UpdateSongs(ctx context.Context, playlistID, authHeader string, songsToAdd, songsToRemove []string) (*requests.PlaylistSongsDifference, error)
}

// UserStore persists logged-in users.
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	UpdateAccessToken(ctx context.Context, refreshToken, accessToken string) (string, error)
}

// ProfileService identifies the owner of an access token.
type ProfileService interface {
	CurrentUser(ctx context.Context, token string) (*services.UserProfile, error)
}

// Options configures a [Server]. OAuth, Profiles and Users are only needed
// for the login routes; when OAuth is nil those routes are not mounted.
type Options struct {
	API      API
	OAuth    services.OAuthService
	Profiles ProfileService
	Users    UserStore
	Config   shared.ServerConfig
	Logger   *log.Logger
}

// Server is the HTTP front of the request engine.
type Server struct {
	api    API
	oauth  *OAuthHandler
	config shared.ServerConfig
	logger *log.Logger
}

// New creates a server from opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{api: opts.API, config: opts.Config, logger: logger}
	if opts.OAuth != nil {
		s.oauth = NewOAuthHandler(opts.OAuth, opts.Profiles, opts.Users, opts.Config.FrontendURL, logger)
	}
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Router builds the routing tree with the middleware stack applied.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	for _, mw := range []Middleware{
		CORS(s.config.AllowedOrigins),
		RequestID,
		RequestLogger(s.logger),
		Recoverer(s.logger),
	} {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	if s.oauth != nil {
		s.oauth.Register(r)
	}
	(&playlistHandler{api: s.api, logger: s.logger}).Register(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, s.logger, shared.E(shared.KindNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Status: "error", Message: "method not allowed"})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "playvote",
	})
}
