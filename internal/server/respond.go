package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvote/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"status":"error","message":...} plus any
// details. Internal errors are logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	kind := shared.KindOf(err)
	status := kind.HTTPStatus()

	body := map[string]any{"status": "error"}
	var e *shared.Error
	if kind == shared.KindInternal || !errors.As(err, &e) {
		logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		body["message"] = "internal server error"
		writeJSON(w, status, body)
		return
	}

	for k, v := range e.Details {
		body[k] = v
	}
	body["message"] = e.Message
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return shared.Wrap(shared.KindBadRequest, shared.ErrInvalidInput, "malformed JSON body")
	}
	return nil
}
