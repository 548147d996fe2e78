// Package models defines domain entities for the playlist request service.
//
// Persistent entities, all implementing [Model]:
//   - [User] : Spotify users and their OAuth tokens
//   - [SongRequest] : Add/remove proposals with their lifecycle [RequestStatus]
//   - [Vote] : A user's endorsement of a request, unique per request and user
//   - [Administrator] : Per-playlist grants of resolution authority
//
// [RequestTally] is the read model returned when listing pending requests.
package models
