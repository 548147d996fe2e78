// Package requests implements the song request lifecycle for collaborative
// playlists: resolving callers from bearer credentials, proposing add and
// remove requests, voting, and resolving requests against the live playlist.
//
// # Lifecycle
//
// A request is created pending by [Engine.ProposeSongChanges]. At most one
// pending request exists per playlist, song and direction; later proposals
// attach the proposer's vote to it. [Engine.SetRequestStatus] moves a pending
// request to approved or rejected, both terminal, and schedules it for purge
// after the grace period.
//
// Approval reconciles against the playlist as it is now, since the provider
// can change independently. If the desired end state already holds the
// request is still approved but reported with Applied false.
//
// # Authority
//
// The playlist owner and the playlist's administrators may resolve requests
// and edit songs directly. Only the owner may change the administrator list.
// Any authenticated user may propose and vote.
//
// # Errors
//
// Every operation returns classified [shared.Error] values; the HTTP layer
// maps their kind to a status code.
package requests
