package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/shared"
)

// AdministratorRepository persists [models.Administrator] grants.
type AdministratorRepository struct {
	db *shared.Database
}

// NewAdministratorRepository creates a new [AdministratorRepository] with the given database connection
func NewAdministratorRepository(db *shared.Database) *AdministratorRepository {
	return &AdministratorRepository{db: db}
}

// List returns the playlist's administrators, oldest grant first.
func (r *AdministratorRepository) List(ctx context.Context, playlistID string) ([]*models.Administrator, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, playlist_id, user_id, created_at
		FROM administrators
		WHERE playlist_id = ?
		ORDER BY created_at ASC, user_id ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query administrators: %w", err)
	}
	defer rows.Close()

	var admins []*models.Administrator
	for rows.Next() {
		var a models.Administrator
		if err := rows.Scan(&a.ID, &a.PlaylistID, &a.UserID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan administrator: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		admins = append(admins, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return admins, nil
}

// IsAdmin reports whether userID administers playlistID.
func (r *AdministratorRepository) IsAdmin(ctx context.Context, playlistID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM administrators WHERE playlist_id = ? AND user_id = ?",
		playlistID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query administrator: %w", err)
	}
	return n > 0, nil
}

// Add grants userID administration of playlistID. It returns false when the grant already existed.
func (r *AdministratorRepository) Add(ctx context.Context, playlistID, userID string) (bool, error) {
	admin := &models.Administrator{
		ID:         shared.GenerateID(),
		PlaylistID: playlistID,
		UserID:     userID,
		CreatedAt:  utc(time.Now()),
	}
	if err := admin.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO administrators (id, playlist_id, user_id, created_at) VALUES (?, ?, ?, ?)",
		admin.ID, admin.PlaylistID, admin.UserID, admin.CreatedAt,
	)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert administrator: %w", err)
	}
	return true, nil
}

// Remove revokes userID's grant on playlistID. It returns false when there was none.
func (r *AdministratorRepository) Remove(ctx context.Context, playlistID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM administrators WHERE playlist_id = ? AND user_id = ?",
		playlistID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete administrator: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}
