package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/shared"
)

// VoteRepository persists [models.Vote] records. Votes are unique per request
// and user, so adding and removing are both idempotent.
type VoteRepository struct {
	db *shared.Database
}

// NewVoteRepository creates a new [VoteRepository] with the given database connection
func NewVoteRepository(db *shared.Database) *VoteRepository {
	return &VoteRepository{db: db}
}

// Add records userID's vote for requestID. It returns false when the vote already existed.
func (r *VoteRepository) Add(ctx context.Context, requestID, userID string) (bool, error) {
	vote := &models.Vote{
		ID:        shared.GenerateID(),
		RequestID: requestID,
		UserID:    userID,
		CreatedAt: utc(time.Now()),
	}
	if err := vote.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO request_votes (id, request_id, user_id, created_at) VALUES (?, ?, ?, ?)",
		vote.ID, vote.RequestID, vote.UserID, vote.CreatedAt,
	)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}
	return true, nil
}

// Remove deletes userID's vote for requestID. It returns false when there was none.
func (r *VoteRepository) Remove(ctx context.Context, requestID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM request_votes WHERE request_id = ? AND user_id = ?",
		requestID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete vote: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of votes on requestID.
func (r *VoteRepository) Count(ctx context.Context, requestID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM request_votes WHERE request_id = ?", requestID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}
