package requests

import (
	"context"

	"github.com/desertthunder/playvote/internal/events"
	"github.com/desertthunder/playvote/internal/shared"
)

// GetSongs lists the playlist's current songs with display metadata.
func (e *Engine) GetSongs(ctx context.Context, playlistID, authHeader string) (*SongList, error) {
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

	ids := make([]string, len(playlist.Tracks))
	for i, t := range playlist.Tracks {
		ids[i] = t.ID
	}
	meta, err := e.playlists.GetTracks(ctx, caller.Token, ids)
	if err != nil {
		return nil, err
	}

	list := &SongList{AreYouAdmin: isAdmin, Songs: make([]Song, 0, len(ids))}
	for i, t := range playlist.Tracks {
		song := Song{SongID: t.ID, DateAdded: formatTime(t.AddedAt)}
		if i < len(meta) && meta[i] != nil {
			song.Title = meta[i].Title
			song.Artist = artistLine(meta[i])
			song.Album = meta[i].Album
			song.Duration = meta[i].DurationMS
		}
		list.Songs = append(list.Songs, song)
	}
	return list, nil
}

// UpdateSongs edits the playlist directly, without requests. Only the owner
// and administrators may do this. Songs already in the requested state are
// reported and skipped.
func (e *Engine) UpdateSongs(ctx context.Context, playlistID, authHeader string, songsToAdd, songsToRemove []string) (*PlaylistSongsDifference, error) {
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
	if err := e.requireOwnerOrAdmin(ctx, playlist, caller.UserID); err != nil {
		return nil, err
	}

	if err := e.validateSongs(ctx, caller.Token, songsToAdd, songsToRemove); err != nil {
		return nil, err
	}

	diff := &PlaylistSongsDifference{SongsAlreadyInPlaylist: []string{}, SongsNotInPlaylist: []string{}}
	var added, removed []string

	for _, songID := range songsToAdd {
		ok, err := e.playlists.AddTrack(ctx, caller.Token, playlist.ID, songID)
		if err != nil {
			return nil, err
		}
		if !ok {
			diff.SongsAlreadyInPlaylist = append(diff.SongsAlreadyInPlaylist, songID)
			continue
		}
		added = append(added, songID)
	}

	for _, songID := range songsToRemove {
		ok, err := e.playlists.RemoveTrack(ctx, caller.Token, playlist.ID, songID)
		if err != nil {
			return nil, err
		}
		if !ok {
			diff.SongsNotInPlaylist = append(diff.SongsNotInPlaylist, songID)
			continue
		}
		removed = append(removed, songID)
	}

	if len(added) > 0 || len(removed) > 0 {
		e.logger.Info("playlist updated", "playlist", playlist.ID, "added", len(added), "removed", len(removed), "user", caller.UserID)
		e.publish(ctx, events.Event{
			Type:       events.PlaylistUpdated,
			PlaylistID: playlist.ID,
			Payload:    map[string]any{"added": added, "removed": removed},
		})
	}
	return diff, nil
}
