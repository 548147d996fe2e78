package requests

import (
	"context"

	"github.com/desertthunder/playvote/internal/events"
)

// Vote records the caller's vote on a pending request. Voting twice is a no-op.
// A non-empty playlistID must match the request's playlist.
func (e *Engine) Vote(ctx context.Context, playlistID, requestID, authHeader string) error {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return err
	}

	req, err := e.loadRequest(ctx, playlistID, requestID)
	if err != nil {
		return err
	}
	if !req.IsPending() {
		return notPending(req)
	}

	added, err := e.votes.Add(ctx, req.ID, caller.UserID)
	if err != nil {
		return storeErr(err, "failed to record vote")
	}
	if added {
		e.publish(ctx, events.Event{
			Type:       events.RequestVoted,
			PlaylistID: req.PlaylistID,
			Payload:    e.withTally(ctx, map[string]any{"requestId": req.ID, "userId": caller.UserID}, req.ID),
		})
	}
	return nil
}

// Unvote withdraws the caller's vote. Withdrawing a vote that does not exist is a no-op.
func (e *Engine) Unvote(ctx context.Context, playlistID, requestID, authHeader string) error {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return err
	}

	req, err := e.loadRequest(ctx, playlistID, requestID)
	if err != nil {
		return err
	}
	if !req.IsPending() {
		return notPending(req)
	}

	removed, err := e.votes.Remove(ctx, req.ID, caller.UserID)
	if err != nil {
		return storeErr(err, "failed to remove vote")
	}
	if removed {
		e.publish(ctx, events.Event{
			Type:       events.RequestUnvoted,
			PlaylistID: req.PlaylistID,
			Payload:    e.withTally(ctx, map[string]any{"requestId": req.ID, "userId": caller.UserID}, req.ID),
		})
	}
	return nil
}

// withTally adds the request's current vote count to an event payload. The
// count is left out when it cannot be read.
func (e *Engine) withTally(ctx context.Context, payload map[string]any, requestID string) map[string]any {
	n, err := e.votes.Count(ctx, requestID)
	if err != nil {
		e.logger.Warn("failed to count votes", "request", requestID, "error", err)
		return payload
	}
	payload["votes"] = n
	return payload
}
