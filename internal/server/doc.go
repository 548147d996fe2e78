// Package server exposes the request engine over HTTP using chi.
//
// # Routes
//
//	GET    /health
//	GET    /login, /callback, /refresh_token
//	GET    /playlists/{playlistId}/songs
//	PUT    /playlists/{playlistId}/songs
//	GET    /playlists/{playlistId}/requests
//	POST   /playlists/{playlistId}/requests
//	PUT    /playlists/{playlistId}/requests/{requestId}
//	POST   /playlists/{playlistId}/requests/{requestId}/vote
//	DELETE /playlists/{playlistId}/requests/{requestId}/vote
//	GET    /playlists/{playlistId}/administrators
//	PUT    /playlists/{playlistId}/administrators
//
// Playlist routes read the caller from the Authorization header
// ("Bearer <access token>") and hand it to the engine unparsed.
//
// # Middleware
//
// Every route runs behind [CORS], [RequestID], [RequestLogger] and
// [Recoverer], in that order.
//
// # Errors
//
// Failures render as {"status":"error","message":...} with the status code
// of the error's [shared.Kind]. Details carried by the error, such as
// invalidSongIds, are merged into the body. Internal errors are logged with
// the request id and answered with a generic message.
package server
