package requests

import (
	"context"
	"errors"

	"github.com/desertthunder/playvote/internal/events"
	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/shared"
)

// SetRequestStatus approves or rejects a pending request. Approval applies the
// request to the live playlist unless it already holds, in which case the
// request is approved with Applied false. Rejection never touches the playlist.
//
// The playlist write happens before the record is finalized. If finalizing
// fails afterwards the request stays pending, and a retry finds the change
// already applied and finalizes with Applied false.
func (e *Engine) SetRequestStatus(ctx context.Context, playlistID, requestID, authHeader, status string) (*ResolutionResult, error) {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	target, err := models.ParseRequestStatus(status)
	if err != nil || target == models.StatusPending {
		return nil, shared.E(shared.KindUnprocessable, "status must be %q or %q", models.StatusApproved, models.StatusRejected)
	}

	req, err := e.loadRequest(ctx, playlistID, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, notPending(req)
	}

	playlist, err := e.playlists.GetPlaylist(ctx, caller.Token, req.PlaylistID)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwnerOrAdmin(ctx, playlist, caller.UserID); err != nil {
		return nil, err
	}

	applied := false
	if target == models.StatusApproved {
		applied, err = e.apply(ctx, caller.Token, req, playlist.Contains(req.SongID))
		if err != nil {
			return nil, err
		}
	}

	deleteAt := e.now().Add(e.grace)
	updated, err := e.requests.Transition(ctx, req.ID, target, deleteAt)
	switch {
	case errors.Is(err, shared.ErrRequestNotPending) && updated != nil:
		return nil, notPending(updated)
	case errors.Is(err, shared.ErrRequestNotFound):
		return nil, shared.Wrap(shared.KindNotFound, err, "request %s does not exist", req.ID)
	case err != nil:
		return nil, storeErr(err, "failed to finalize request")
	}

	e.logger.Info("request resolved",
		"request", req.ID, "playlist", req.PlaylistID, "status", target, "applied", applied, "user", caller.UserID)

	evtType := events.RequestRejected
	if target == models.StatusApproved {
		evtType = events.RequestApproved
	}
	e.publish(ctx, events.Event{
		Type:       evtType,
		PlaylistID: req.PlaylistID,
		Payload: map[string]any{
			"requestId":   req.ID,
			"songId":      req.SongID,
			"requestType": string(req.RequestType),
			"applied":     applied,
			"deleteAt":    formatTime(deleteAt),
		},
	})

	return &ResolutionResult{
		RequestID: req.ID,
		Applied:   applied,
		Status:    string(target),
		DeleteAt:  deleteAt,
	}, nil
}

// apply writes an approved request to the playlist unless the desired state
// already holds, and reports whether it wrote.
func (e *Engine) apply(ctx context.Context, token string, req *models.SongRequest, present bool) (bool, error) {
	switch req.RequestType {
	case models.RequestAdd:
		if present {
			return false, nil
		}
		return e.playlists.AddTrack(ctx, token, req.PlaylistID, req.SongID)
	case models.RequestRemove:
		if !present {
			return false, nil
		}
		return e.playlists.RemoveTrack(ctx, token, req.PlaylistID, req.SongID)
	default:
		return false, shared.Wrap(shared.KindInternal, shared.ErrIntegrity, "request %s has unknown type %q", req.ID, req.RequestType)
	}
}
