// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
)

// FakePlaylistService is an in-memory test double for [services.PlaylistService].
// Playlists, tracks and users are seeded directly; every token is accepted
// unless listed in Expired.
type FakePlaylistService struct {
	mu        sync.Mutex
	playlists map[string]*services.Playlist
	tracks    map[string]*services.TrackMetadata
	users     map[string]string

	Expired map[string]bool
	// Err, when set, is returned by every call.
	Err error

	Adds    int
	Removes int
}

// NewFakePlaylistService returns an empty fake.
func NewFakePlaylistService() *FakePlaylistService {
	return &FakePlaylistService{
		playlists: map[string]*services.Playlist{},
		tracks:    map[string]*services.TrackMetadata{},
		users:     map[string]string{},
		Expired:   map[string]bool{},
	}
}

// SetPlaylist creates or replaces a playlist owned by ownerID holding trackIDs.
// Unknown track IDs are registered with generated metadata.
func (f *FakePlaylistService) SetPlaylist(id, ownerID string, trackIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &services.Playlist{ID: id, OwnerID: ownerID, OwnerDisplayName: f.users[ownerID]}
	for _, tid := range trackIDs {
		p.Tracks = append(p.Tracks, services.PlaylistTrack{ID: tid, AddedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
		if f.tracks[tid] == nil {
			f.tracks[tid] = defaultTrack(tid)
		}
	}
	f.playlists[id] = p
}

// AddKnownTracks registers track IDs the provider recognizes.
func (f *FakePlaylistService) AddKnownTracks(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.tracks[id] = defaultTrack(id)
	}
}

// AddUser registers a user profile.
func (f *FakePlaylistService) AddUser(id, displayName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = displayName
}

// SetErr makes every call fail with err until cleared with nil.
func (f *FakePlaylistService) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// TrackIDs returns the current membership of a playlist.
func (f *FakePlaylistService) TrackIDs(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.playlists[playlistID]
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func defaultTrack(id string) *services.TrackMetadata {
	return &services.TrackMetadata{ID: id, Title: "Title " + id, Artists: []string{"Artist " + id}, Album: "Album " + id, DurationMS: 200000}
}

func (f *FakePlaylistService) check(token string) error {
	if f.Err != nil {
		return f.Err
	}
	if f.Expired[token] {
		return shared.Wrap(shared.KindUnauthorized, shared.ErrTokenExpired, "spotify rejected the access token")
	}
	return nil
}

func (f *FakePlaylistService) playlist(id string) (*services.Playlist, error) {
	p := f.playlists[id]
	if p == nil {
		return nil, shared.Wrap(shared.KindNotFound, shared.ErrPlaylistNotFound, "playlist %s does not exist", id)
	}
	return p, nil
}

func (f *FakePlaylistService) GetPlaylist(_ context.Context, token, playlistID string) (*services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(token); err != nil {
		return nil, err
	}
	p, err := f.playlist(playlistID)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.OwnerDisplayName = f.users[p.OwnerID]
	cp.Tracks = append([]services.PlaylistTrack(nil), p.Tracks...)
	return &cp, nil
}

func (f *FakePlaylistService) AddTrack(_ context.Context, token, playlistID, trackID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(token); err != nil {
		return false, err
	}
	p, err := f.playlist(playlistID)
	if err != nil {
		return false, err
	}
	if p.Contains(trackID) {
		return false, nil
	}
	p.Tracks = append(p.Tracks, services.PlaylistTrack{ID: trackID, AddedAt: time.Now().UTC()})
	f.Adds++
	return true, nil
}

func (f *FakePlaylistService) RemoveTrack(_ context.Context, token, playlistID, trackID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(token); err != nil {
		return false, err
	}
	p, err := f.playlist(playlistID)
	if err != nil {
		return false, err
	}
	if !p.Contains(trackID) {
		return false, nil
	}
	kept := p.Tracks[:0]
	for _, t := range p.Tracks {
		if t.ID != trackID {
			kept = append(kept, t)
		}
	}
	p.Tracks = kept
	f.Removes++
	return true, nil
}

func (f *FakePlaylistService) GetTracks(_ context.Context, token string, trackIDs []string) ([]*services.TrackMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(token); err != nil {
		return nil, err
	}
	out := make([]*services.TrackMetadata, len(trackIDs))
	for i, id := range trackIDs {
		if t := f.tracks[id]; t != nil {
			cp := *t
			out[i] = &cp
		}
	}
	return out, nil
}

func (f *FakePlaylistService) GetUser(_ context.Context, token, userID string) (*services.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(token); err != nil {
		return nil, err
	}
	name, ok := f.users[userID]
	if !ok {
		return nil, shared.Wrap(shared.KindNotFound, shared.ErrUserNotFound, "user %s does not exist", userID)
	}
	return &services.UserProfile{ID: userID, DisplayName: name}, nil
}

// CurrentUser treats the token as "token-<userID>".
func (f *FakePlaylistService) CurrentUser(_ context.Context, token string) (*services.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(token); err != nil {
		return nil, err
	}
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return nil, shared.Wrap(shared.KindUnauthorized, shared.ErrTokenExpired, "unknown token")
	}
	id := token[len(prefix):]
	return &services.UserProfile{ID: id, DisplayName: f.users[id]}, nil
}

var _ services.PlaylistService = (*FakePlaylistService)(nil)

// MustDB opens a migrated in-memory database closed at the end of the test.
func MustDB(t *testing.T) *shared.Database {
	t.Helper()
	db, err := shared.NewMemoryDatabase()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}
