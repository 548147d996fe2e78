// package services defines interfaces for the external services the request
// engine consults: the playlist provider and its OAuth flow.
package services

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// PlaylistService reads and mutates playlists on the provider on behalf of a
// user, identified by their access token. Implementations report failures as
// classified [shared.Error] values.
type PlaylistService interface {
	// GetPlaylist returns the playlist's owner and full track membership.
	GetPlaylist(ctx context.Context, token, playlistID string) (*Playlist, error)

	// AddTrack adds trackID unless it is already present.
	// Returns false when the playlist already contained it.
	AddTrack(ctx context.Context, token, playlistID, trackID string) (bool, error)

	// RemoveTrack removes trackID if present.
	// Returns false when the playlist did not contain it.
	RemoveTrack(ctx context.Context, token, playlistID, trackID string) (bool, error)

	// GetTracks returns metadata in the same order as trackIDs, with nil for IDs
	// the provider does not know.
	GetTracks(ctx context.Context, token string, trackIDs []string) ([]*TrackMetadata, error)

	// GetUser returns a user's public profile.
	GetUser(ctx context.Context, token, userID string) (*UserProfile, error)

	// CurrentUser returns the profile of the token's owner.
	CurrentUser(ctx context.Context, token string) (*UserProfile, error)
}

// OAuthService runs the authorization code flow against the provider.
type OAuthService interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Playlist is a provider playlist reduced to what request resolution needs.
type Playlist struct {
	ID               string
	OwnerID          string
	OwnerDisplayName string
	Tracks           []PlaylistTrack
}

// PlaylistTrack is one entry of a playlist.
type PlaylistTrack struct {
	ID      string
	AddedAt time.Time
}

// Contains reports whether trackID is in the playlist.
func (p *Playlist) Contains(trackID string) bool {
	for _, t := range p.Tracks {
		if t.ID == trackID {
			return true
		}
	}
	return false
}

// TrackIDs returns the set of track IDs in the playlist.
func (p *Playlist) TrackIDs() map[string]bool {
	ids := make(map[string]bool, len(p.Tracks))
	for _, t := range p.Tracks {
		ids[t.ID] = true
	}
	return ids
}

// TrackMetadata describes a track for display.
type TrackMetadata struct {
	ID         string
	Title      string
	Artists    []string
	Album      string
	DurationMS int
}

// UserProfile is a provider user's public identity.
type UserProfile struct {
	ID          string
	DisplayName string
}
