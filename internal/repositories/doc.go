// Package repositories implements SQL persistence for all domain entities.
//
// Repositories take a [shared.Database] so they run unchanged on SQLite (the
// default) and Postgres via pgx. Consistency under concurrent callers comes
// from single statements and unique indexes rather than multi-statement
// transactions: a lost insert race surfaces as a unique violation, which the
// repositories map to a benign "already exists" result.
//
// Key Implementations:
//   - [UserRepository] : Spotify users, looked up by access token
//   - [SongRequestRepository] : Request ledger with pending-only uniqueness and conditional transitions
//   - [VoteRepository] : One vote per request and user
//   - [AdministratorRepository] : Per-playlist administrator grants
package repositories
