// package repositories provides persistence layer implementations for all model types.
//
// Every query is written with "?" placeholders and rebound by [shared.Database]
// so the same SQL runs against SQLite and Postgres.
package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for a unique index conflict.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err came from a unique or primary key constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return false
}

// utc normalizes timestamps before they are written so string comparisons in
// SQLite agree with time ordering.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
