package requests

import (
	"strings"
	"time"

	"github.com/desertthunder/playvote/internal/services"
)

// SongRequestList is the pending requests of a playlist, split by direction.
type SongRequestList struct {
	AreYouAdmin    bool                 `json:"areYouAdmin"`
	AddRequests    []PendingSongRequest `json:"addRequests"`
	RemoveRequests []PendingSongRequest `json:"removeRequests"`
}

// PendingSongRequest is a pending request with display metadata and its tally.
type PendingSongRequest struct {
	RequestID   string `json:"requestId"`
	SongID      string `json:"songId"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	DateAdded   string `json:"dateAdded"`
	Duration    int    `json:"duration"`
	NumVotes    int    `json:"numVotes"`
	HasYourVote bool   `json:"hasYourVote"`
}

// PlaylistSongsDifference lists proposed songs that already satisfy the
// requested change.
type PlaylistSongsDifference struct {
	SongsAlreadyInPlaylist []string `json:"songsAlreadyInPlaylist"`
	SongsNotInPlaylist     []string `json:"songsNotInPlaylist"`
	RequestIDs             []string `json:"requestIds,omitempty"`
}

// ResolutionResult reports the outcome of resolving a request.
type ResolutionResult struct {
	RequestID string    `json:"requestId"`
	Applied   bool      `json:"applied"`
	Status    string    `json:"status"`
	DeleteAt  time.Time `json:"deleteAt"`
}

// User is a playlist participant for display.
type User struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// UserList is a playlist's owner and administrators.
type UserList struct {
	Owner          User   `json:"owner"`
	Administrators []User `json:"administrators"`
}

// SongList is a playlist's current songs.
type SongList struct {
	AreYouAdmin bool   `json:"areYouAdmin"`
	Songs       []Song `json:"songs"`
}

// Song is a playlist track for display.
type Song struct {
	SongID    string `json:"songId"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	DateAdded string `json:"dateAdded"`
	Duration  int    `json:"duration"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func artistLine(meta *services.TrackMetadata) string {
	return strings.Join(meta.Artists, ", ")
}
