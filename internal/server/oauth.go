package server

import (
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
	"github.com/go-chi/chi/v5"
)

const stateCookie = "spotify_auth_state"

// OAuthHandler runs the authorization code flow for browser logins.
//
// /login stores a random state in a cookie and redirects to the provider.
// /callback checks that state, exchanges the code, records the user and sends
// the browser to the frontend with its tokens. /refresh_token trades a refresh
// token for a new access token and stores it.
type OAuthHandler struct {
	oauth       services.OAuthService
	profiles    ProfileService
	users       UserStore
	frontendURL string
	logger      *log.Logger
}

// NewOAuthHandler creates a login handler that redirects to frontendURL on completion.
func NewOAuthHandler(oauth services.OAuthService, profiles ProfileService, users UserStore, frontendURL string, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:       oauth,
		profiles:    profiles,
		users:       users,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

func (h *OAuthHandler) Register(r chi.Router) {
	r.Get("/login", h.login)
	r.Get("/callback", h.callback)
	r.Get("/refresh_token", h.refreshToken)
}

func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stored, err := r.Cookie(stateCookie)
	if err != nil || q.Get("state") == "" || q.Get("state") != stored.Value {
		h.logger.Warn("oauth state mismatch")
		h.redirect(w, r, url.Values{"error": {"state_mismatch"}})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		h.logger.Warn("authorization denied", "error", q.Get("error"))
		h.redirect(w, r, url.Values{"error": {"access_denied"}})
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		h.redirect(w, r, url.Values{"error": {"invalid_token"}})
		return
	}

	profile, err := h.profiles.CurrentUser(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("failed to read profile", "error", err)
		h.redirect(w, r, url.Values{"error": {"invalid_token"}})
		return
	}

	user := &models.User{UserID: profile.ID, AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if err := h.users.Upsert(r.Context(), user); err != nil {
		h.logger.Error("failed to store user", "user", profile.ID, "error", err)
		h.redirect(w, r, url.Values{"error": {"server_error"}})
		return
	}
	h.logger.Info("user logged in", "user", profile.ID)

	h.redirect(w, r, url.Values{
		"access_token":  {token.AccessToken},
		"refresh_token": {token.RefreshToken},
	})
}

func (h *OAuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh_token")
	if refresh == "" {
		writeError(w, r, h.logger, shared.Wrap(shared.KindBadRequest, shared.ErrMissingArgument, "refresh_token is required"))
		return
	}

	token, err := h.oauth.Refresh(r.Context(), refresh)
	if err != nil {
		writeError(w, r, h.logger, shared.Wrap(shared.KindUnauthorized, err, "failed to refresh token"))
		return
	}

	if _, err := h.users.UpdateAccessToken(r.Context(), refresh, token.AccessToken); err != nil {
		h.logger.Warn("refreshed token for unknown user", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token.AccessToken})
}

// redirect sends the browser to the frontend with params in the query string.
func (h *OAuthHandler) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target, err := url.Parse(h.frontendURL)
	if err != nil || h.frontendURL == "" {
		target = &url.URL{Path: "/"}
	}
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
