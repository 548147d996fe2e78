// package models defines the data model for the playlist request service
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/playvote/internal/shared"
)

// Model defines the base interface for all persistent models.
// Implementations include User, SongRequest, Vote and Administrator.
type Model interface {
	GetID() string      // GetID returns the unique identifier for this model
	Created() time.Time // Created returns when this model was created
	Validate() error    // Validate checks if the model's data is valid and returns an error if not
}

// RequestType is the direction of a song request.
type RequestType string

const (
	RequestAdd    RequestType = "add"
	RequestRemove RequestType = "remove"
)

// ParseRequestType parses "add" or "remove", case-insensitively.
func ParseRequestType(s string) (RequestType, error) {
	switch t := RequestType(strings.ToLower(strings.TrimSpace(s))); t {
	case RequestAdd, RequestRemove:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown request type %q", shared.ErrInvalidInput, s)
	}
}

// RequestStatus is the lifecycle state of a song request.
// Pending moves to Approved or Rejected; both are terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// ParseRequestStatus parses a status name, case-insensitively.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown request status %q", shared.ErrInvalidInput, s)
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// User is someone who has logged in through Spotify.
type User struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) GetID() string      { return u.UserID }
func (u *User) Created() time.Time { return u.CreatedAt }

func (u *User) Validate() error {
	if u.UserID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if u.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}
	return nil
}

// SongRequest is a proposal to add or remove a song on a playlist.
type SongRequest struct {
	ID          string
	PlaylistID  string
	RequestType RequestType
	SongID      string
	Status      RequestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeleteAt    *time.Time // set when the request leaves pending
}

// NewSongRequest builds a pending request with a fresh ID.
func NewSongRequest(playlistID, songID string, requestType RequestType, now time.Time) *SongRequest {
	return &SongRequest{
		ID:          shared.GenerateID(),
		PlaylistID:  playlistID,
		RequestType: requestType,
		SongID:      songID,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *SongRequest) GetID() string      { return r.ID }
func (r *SongRequest) Created() time.Time { return r.CreatedAt }

// IsPending reports whether the request is still open for votes and decisions.
func (r *SongRequest) IsPending() bool {
	return r.Status == StatusPending
}

func (r *SongRequest) Validate() error {
	if r.ID == "" || r.PlaylistID == "" || r.SongID == "" {
		return fmt.Errorf("%w: request id, playlist id and song id are required", shared.ErrInvalidInput)
	}
	if _, err := ParseRequestType(string(r.RequestType)); err != nil {
		return err
	}
	if _, err := ParseRequestStatus(string(r.Status)); err != nil {
		return err
	}
	if r.IsPending() && r.DeleteAt != nil {
		return fmt.Errorf("%w: pending request %s has a delete time", shared.ErrInvalidInput, r.ID)
	}
	return nil
}

// Vote records that a user endorses a request.
type Vote struct {
	ID        string
	RequestID string
	UserID    string
	CreatedAt time.Time
}

func (v *Vote) GetID() string      { return v.ID }
func (v *Vote) Created() time.Time { return v.CreatedAt }

func (v *Vote) Validate() error {
	if v.RequestID == "" || v.UserID == "" {
		return fmt.Errorf("%w: vote needs a request and a user", shared.ErrInvalidInput)
	}
	return nil
}

// Administrator grants a user authority to resolve requests on a playlist.
// The playlist owner is never stored as one.
type Administrator struct {
	ID         string
	PlaylistID string
	UserID     string
	CreatedAt  time.Time
}

func (a *Administrator) GetID() string      { return a.ID }
func (a *Administrator) Created() time.Time { return a.CreatedAt }

func (a *Administrator) Validate() error {
	if a.PlaylistID == "" || a.UserID == "" {
		return fmt.Errorf("%w: administrator needs a playlist and a user", shared.ErrInvalidInput)
	}
	return nil
}

// RequestTally is a pending request with its vote count and whether the
// viewing user has voted for it.
type RequestTally struct {
	Request     *SongRequest
	NumVotes    int
	HasYourVote bool
}
