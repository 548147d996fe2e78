package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
)

// playlistHandler serves the /playlists/{playlistId} tree.
type playlistHandler struct {
	api    API
	logger *log.Logger
}

type songChanges struct {
	SongsToAdd    []string `json:"songsToAdd"`
	SongsToRemove []string `json:"songsToRemove"`
}

type userChanges struct {
	UsersToAdd    []string `json:"usersToAdd"`
	UsersToRemove []string `json:"usersToRemove"`
}

type statusChange struct {
	Status string `json:"status"`
}

func (h *playlistHandler) Register(r chi.Router) {
	r.Route("/playlists/{playlistId}", func(r chi.Router) {
		r.Get("/songs", h.getSongs)
		r.Put("/songs", h.updateSongs)

		r.Get("/requests", h.getRequests)
		r.Post("/requests", h.proposeSongs)
		r.Put("/requests/{requestId}", h.setRequestStatus)
		r.Post("/requests/{requestId}/vote", h.vote)
		r.Delete("/requests/{requestId}/vote", h.unvote)

		r.Get("/administrators", h.getAdministrators)
		r.Put("/administrators", h.updateAdministrators)
	})
}

func (h *playlistHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

func (h *playlistHandler) getSongs(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.GetSongs(r.Context(), chi.URLParam(r, "playlistId"), r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *playlistHandler) updateSongs(w http.ResponseWriter, r *http.Request) {
	var body songChanges
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	diff, err := h.api.UpdateSongs(r.Context(), chi.URLParam(r, "playlistId"), r.Header.Get("Authorization"), body.SongsToAdd, body.SongsToRemove)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (h *playlistHandler) getRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.GetPendingRequests(r.Context(), chi.URLParam(r, "playlistId"), r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *playlistHandler) proposeSongs(w http.ResponseWriter, r *http.Request) {
	var body songChanges
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	diff, err := h.api.ProposeSongChanges(r.Context(), chi.URLParam(r, "playlistId"), r.Header.Get("Authorization"), body.SongsToAdd, body.SongsToRemove)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (h *playlistHandler) setRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body statusChange
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.api.SetRequestStatus(r.Context(),
		chi.URLParam(r, "playlistId"), chi.URLParam(r, "requestId"), r.Header.Get("Authorization"), body.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *playlistHandler) vote(w http.ResponseWriter, r *http.Request) {
	err := h.api.Vote(r.Context(), chi.URLParam(r, "playlistId"), chi.URLParam(r, "requestId"), r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *playlistHandler) unvote(w http.ResponseWriter, r *http.Request) {
	err := h.api.Unvote(r.Context(), chi.URLParam(r, "playlistId"), chi.URLParam(r, "requestId"), r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *playlistHandler) getAdministrators(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.GetAdministrators(r.Context(), chi.URLParam(r, "playlistId"), r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *playlistHandler) updateAdministrators(w http.ResponseWriter, r *http.Request) {
	var body userChanges
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.api.UpdateAdministrators(r.Context(), chi.URLParam(r, "playlistId"), r.Header.Get("Authorization"), body.UsersToAdd, body.UsersToRemove)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
