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

// UserRepository persists [models.User] records.
type UserRepository struct {
	db *shared.Database
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *shared.Database) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "user_id, access_token, refresh_token, created_at, updated_at"

// Upsert inserts the user or replaces its tokens in a single statement.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := utc(time.Now())
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (user_id, access_token, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.AccessToken, user.RefreshToken, utc(user.CreatedAt), now)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Get retrieves a user by Spotify user ID.
func (r *UserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE user_id = ?", userID)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// ListByAccessToken returns every user holding token. More than one match is
// an integrity problem the caller reports.
func (r *UserRepository) ListByAccessToken(ctx context.Context, token string) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE access_token = ?", token)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}

// UpdateAccessToken stores a refreshed access token for the user holding refreshToken.
func (r *UserRepository) UpdateAccessToken(ctx context.Context, refreshToken, accessToken string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, "SELECT user_id FROM users WHERE refresh_token = ?", refreshToken).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: unknown refresh token", shared.ErrUserNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET access_token = ?, updated_at = ? WHERE user_id = ?",
		accessToken, utc(time.Now()), userID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update access token: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("failed to get affected rows: %w", err)
	} else if n == 0 {
		return "", fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}
	return userID, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	if err := s.Scan(&u.UserID, &u.AccessToken, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
