package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/shared"
)

// SongRequestRepository persists [models.SongRequest] records.
type SongRequestRepository struct {
	db *shared.Database
}

// NewSongRequestRepository creates a new [SongRequestRepository] with the given database connection
func NewSongRequestRepository(db *shared.Database) *SongRequestRepository {
	return &SongRequestRepository{db: db}
}

const requestColumns = "id, playlist_id, request_type, song_id, status, created_at, updated_at, delete_at"

// Get retrieves a request by ID.
func (r *SongRequestRepository) Get(ctx context.Context, id string) (*models.SongRequest, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM song_requests WHERE id = ?", id)

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query song request: %w", err)
	}
	return req, nil
}

// FindPending returns the pending request for the tuple, or nil when there is none.
func (r *SongRequestRepository) FindPending(ctx context.Context, playlistID, songID string, requestType models.RequestType) (*models.SongRequest, error) {
	query := "SELECT " + requestColumns + ` FROM song_requests
		WHERE playlist_id = ? AND song_id = ? AND request_type = ? AND status = ?`

	row := r.db.QueryRowContext(ctx, query, playlistID, songID, string(requestType), string(models.StatusPending))
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending request: %w", err)
	}
	return req, nil
}

// CreatePending inserts req unless a pending request for the same playlist,
// song and direction exists. It returns the stored request and whether it was
// created; a concurrent insert that wins the race is returned with created=false.
func (r *SongRequestRepository) CreatePending(ctx context.Context, req *models.SongRequest) (*models.SongRequest, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, fmt.Errorf("validation failed: %w", err)
	}

	existing, err := r.FindPending(ctx, req.PlaylistID, req.SongID, req.RequestType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	query := `
		INSERT INTO song_requests (id, playlist_id, request_type, song_id, status, created_at, updated_at, delete_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.PlaylistID, string(req.RequestType), req.SongID, string(models.StatusPending),
		utc(req.CreatedAt), utc(req.UpdatedAt),
	)
	if isUniqueViolation(err) {
		winner, ferr := r.FindPending(ctx, req.PlaylistID, req.SongID, req.RequestType)
		if ferr != nil {
			return nil, false, ferr
		}
		if winner == nil {
			return nil, false, fmt.Errorf("failed to insert song request: %w", err)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert song request: %w", err)
	}

	return req, true, nil
}

// ListPending returns the playlist's pending requests with vote counts and
// whether userID has voted, ordered by votes descending then oldest first.
func (r *SongRequestRepository) ListPending(ctx context.Context, playlistID, userID string) ([]*models.RequestTally, error) {
	query := `
		SELECT r.id, r.playlist_id, r.request_type, r.song_id, r.status, r.created_at, r.updated_at, r.delete_at,
			COUNT(v.id) AS num_votes,
			COALESCE(SUM(CASE WHEN v.user_id = ? THEN 1 ELSE 0 END), 0) AS your_votes
		FROM song_requests r
		LEFT JOIN request_votes v ON v.request_id = r.id
		WHERE r.playlist_id = ? AND r.status = ?
		GROUP BY r.id, r.playlist_id, r.request_type, r.song_id, r.status, r.created_at, r.updated_at, r.delete_at
		ORDER BY num_votes DESC, r.created_at ASC, r.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, playlistID, string(models.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var tallies []*models.RequestTally
	for rows.Next() {
		var (
			req       models.SongRequest
			reqType   string
			status    string
			deleteAt  sql.NullTime
			numVotes  int64
			yourVotes int64
		)
		if err := rows.Scan(&req.ID, &req.PlaylistID, &reqType, &req.SongID, &status,
			&req.CreatedAt, &req.UpdatedAt, &deleteAt, &numVotes, &yourVotes); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		req.RequestType = models.RequestType(reqType)
		req.Status = models.RequestStatus(status)
		req.CreatedAt = req.CreatedAt.UTC()
		req.UpdatedAt = req.UpdatedAt.UTC()
		req.DeleteAt = timePtr(deleteAt)

		tallies = append(tallies, &models.RequestTally{
			Request:     &req,
			NumVotes:    int(numVotes),
			HasYourVote: yourVotes > 0,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tallies, nil
}

// Transition moves a pending request to status and records deleteAt. It fails
// with [shared.ErrRequestNotFound] or [shared.ErrRequestNotPending]; in the
// latter case the current request is returned alongside the error.
func (r *SongRequestRepository) Transition(ctx context.Context, id string, status models.RequestStatus, deleteAt time.Time) (*models.SongRequest, error) {
	now := utc(time.Now())
	query := `
		UPDATE song_requests
		SET status = ?, delete_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, query, string(status), utc(deleteAt), now, id, string(models.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to update song request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return current, fmt.Errorf("%w: %s is %s", shared.ErrRequestNotPending, id, current.Status)
	}
	return current, nil
}

// ListByPlaylist returns every request for the playlist regardless of status, newest first.
func (r *SongRequestRepository) ListByPlaylist(ctx context.Context, playlistID string) ([]*models.SongRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM song_requests WHERE playlist_id = ? ORDER BY created_at DESC",
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query song requests: %w", err)
	}
	defer rows.Close()

	var reqs []*models.SongRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song request: %w", err)
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reqs, nil
}

// PurgeExpired deletes resolved requests whose delete time has passed, with
// their votes, and returns how many requests were removed.
func (r *SongRequestRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	now = utc(now)

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM request_votes
		WHERE request_id IN (SELECT id FROM song_requests WHERE delete_at IS NOT NULL AND delete_at <= ?)
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired votes: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM song_requests WHERE delete_at IS NOT NULL AND delete_at <= ?", now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired requests: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func scanRequest(s scanner) (*models.SongRequest, error) {
	var (
		req      models.SongRequest
		reqType  string
		status   string
		deleteAt sql.NullTime
	)
	if err := s.Scan(&req.ID, &req.PlaylistID, &reqType, &req.SongID, &status,
		&req.CreatedAt, &req.UpdatedAt, &deleteAt); err != nil {
		return nil, err
	}
	req.RequestType = models.RequestType(reqType)
	req.Status = models.RequestStatus(status)
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	req.DeleteAt = timePtr(deleteAt)
	return &req, nil
}
