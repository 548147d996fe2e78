package shared

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Database wraps a connection pool with the driver it was opened with so
// queries written with "?" placeholders can run against either dialect.
type Database struct {
	*sql.DB
	driver string
}

// NewDatabase opens a connection using driver ("sqlite3" or "pgx").
// For sqlite3 the dsn can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(driver, dsn string) (*Database, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, driver: driver}, nil
}

// NewMemoryDatabase opens a migrated in-memory SQLite database pinned to a
// single connection, so every query sees the same schema.
func NewMemoryDatabase() (*Database, error) {
	db, err := NewDatabase(DriverSQLite, ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Driver returns the database/sql driver name.
func (d *Database) Driver() string {
	return d.driver
}

// Rebind rewrites "?" placeholders to "$n" for Postgres. Queries must not
// contain literal question marks.
func (d *Database) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ExecContext runs a rebound statement.
func (d *Database) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

// QueryContext runs a rebound query.
func (d *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRowContext runs a rebound single-row query.
func (d *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *Database, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// OpenFromConfig opens and configures the database described by cfg.
func OpenFromConfig(cfg DatabaseConfig) (*Database, error) {
	db, err := NewDatabase(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	return db, nil
}
