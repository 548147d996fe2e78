package requests

import (
	"context"

	"github.com/desertthunder/playvote/internal/events"
	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
)

// GetPendingRequests lists the playlist's pending requests with display
// metadata, vote counts and whether the caller voted, ordered by votes.
func (e *Engine) GetPendingRequests(ctx context.Context, playlistID, authHeader string) (*SongRequestList, error) {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	playlist, err := e.playlists.GetPlaylist(ctx, caller.Token, playlistID)
	if err != nil {
		return nil, err
	}

	isAdmin, err := e.isOwnerOrAdmin(ctx, playlist, caller.UserID)
	if err != nil {
		return nil, err
	}

	tallies, err := e.requests.ListPending(ctx, playlistID, caller.UserID)
	if err != nil {
		return nil, storeErr(err, "failed to list pending requests")
	}

	songIDs := make([]string, len(tallies))
	for i, t := range tallies {
		songIDs[i] = t.Request.SongID
	}
	meta, err := e.playlists.GetTracks(ctx, caller.Token, songIDs)
	if err != nil {
		return nil, err
	}

	list := &SongRequestList{
		AreYouAdmin:    isAdmin,
		AddRequests:    []PendingSongRequest{},
		RemoveRequests: []PendingSongRequest{},
	}
	for i, t := range tallies {
		item := PendingSongRequest{
			RequestID:   t.Request.ID,
			SongID:      t.Request.SongID,
			DateAdded:   formatTime(t.Request.CreatedAt),
			NumVotes:    t.NumVotes,
			HasYourVote: t.HasYourVote,
		}
		if i < len(meta) && meta[i] != nil {
			item.Title = meta[i].Title
			item.Artist = artistLine(meta[i])
			item.Album = meta[i].Album
			item.Duration = meta[i].DurationMS
		}

		switch t.Request.RequestType {
		case models.RequestAdd:
			list.AddRequests = append(list.AddRequests, item)
		case models.RequestRemove:
			list.RemoveRequests = append(list.RemoveRequests, item)
		}
	}
	return list, nil
}

// ProposeSongChanges proposes adding and removing songs. Songs already in the
// requested state are reported instead of proposed. The rest join an existing
// pending request with the caller's vote, or open a new one voted by the caller.
// Any ID the provider cannot describe fails the whole call with invalidSongIds.
func (e *Engine) ProposeSongChanges(ctx context.Context, playlistID, authHeader string, songsToAdd, songsToRemove []string) (*PlaylistSongsDifference, error) {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	songsToAdd = shared.Dedupe(songsToAdd)
	songsToRemove = shared.Dedupe(songsToRemove)

	playlist, err := e.playlists.GetPlaylist(ctx, caller.Token, playlistID)
	if err != nil {
		return nil, err
	}

	if err := e.validateSongs(ctx, caller.Token, songsToAdd, songsToRemove); err != nil {
		return nil, err
	}
	members := playlist.TrackIDs()

	diff := &PlaylistSongsDifference{
		SongsAlreadyInPlaylist: []string{},
		SongsNotInPlaylist:     []string{},
		RequestIDs:             []string{},
	}

	for _, songID := range songsToAdd {
		if members[songID] {
			diff.SongsAlreadyInPlaylist = append(diff.SongsAlreadyInPlaylist, songID)
			continue
		}
		id, created, err := e.propose(ctx, caller, playlist.ID, songID, models.RequestAdd)
		if err != nil {
			return nil, err
		}
		if created {
			diff.RequestIDs = append(diff.RequestIDs, id)
		}
	}

	for _, songID := range songsToRemove {
		if !members[songID] {
			diff.SongsNotInPlaylist = append(diff.SongsNotInPlaylist, songID)
			continue
		}
		id, created, err := e.propose(ctx, caller, playlist.ID, songID, models.RequestRemove)
		if err != nil {
			return nil, err
		}
		if created {
			diff.RequestIDs = append(diff.RequestIDs, id)
		}
	}

	return diff, nil
}

// propose creates or joins the pending request and registers the caller's vote.
func (e *Engine) propose(ctx context.Context, caller *Caller, playlistID, songID string, requestType models.RequestType) (string, bool, error) {
	req, created, err := e.requests.CreatePending(ctx, models.NewSongRequest(playlistID, songID, requestType, e.now()))
	if err != nil {
		return "", false, storeErr(err, "failed to create request")
	}

	voted, err := e.votes.Add(ctx, req.ID, caller.UserID)
	if err != nil {
		return "", false, storeErr(err, "failed to record vote")
	}

	payload := map[string]any{"requestId": req.ID, "songId": songID, "requestType": string(requestType), "userId": caller.UserID}
	switch {
	case created:
		e.logger.Info("request created", "request", req.ID, "playlist", playlistID, "song", songID, "type", requestType, "user", caller.UserID)
		e.publish(ctx, events.Event{Type: events.RequestCreated, PlaylistID: playlistID, Payload: payload})
	case voted:
		e.publish(ctx, events.Event{Type: events.RequestVoted, PlaylistID: playlistID, Payload: e.withTally(ctx, payload, req.ID)})
	}
	return req.ID, created, nil
}

// validateSongs fails with UnprocessableEntity listing every ID the provider
// has no metadata for.
func (e *Engine) validateSongs(ctx context.Context, token string, lists ...[]string) error {
	var ids []string
	for _, l := range lists {
		ids = append(ids, l...)
	}
	ids = shared.Dedupe(ids)
	if len(ids) == 0 {
		return nil
	}

	meta, err := e.playlists.GetTracks(ctx, token, ids)
	if err != nil {
		return err
	}

	invalid := invalidIDs(ids, meta)
	if len(invalid) > 0 {
		return shared.E(shared.KindUnprocessable, "invalid song ids").WithDetail("invalidSongIds", invalid)
	}
	return nil
}

func invalidIDs(ids []string, meta []*services.TrackMetadata) []string {
	var invalid []string
	for i, id := range ids {
		if i >= len(meta) || meta[i] == nil {
			invalid = append(invalid, id)
		}
	}
	return invalid
}
