// Package store implements SQLite persistence for coulddrive-sync's
// five external-interface tables (yp_user, rule_template, sync_config,
// sync_task, sync_task_item), using the pure-Go modernc.org/sqlite
// driver and goose-managed embedded migrations — the same stack the
// teacher's internal/sync package uses for its baseline database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a single-writer SQLite connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the SQLite database at path, applies
// pending migrations, and configures WAL mode with a single writer
// connection — mirroring the teacher's baseline database setup.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// nullTime converts a *time.Time to the driver.Value form SQLite expects,
// matching the pattern used throughout the teacher's ledger.go scanners.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.Format(time.RFC3339Nano)
}

func scanNullTime(dst *sql.NullString) (*time.Time, error) {
	if !dst.Valid {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, dst.String)
	if err != nil {
		return nil, fmt.Errorf("store: parsing timestamp %q: %w", dst.String, err)
	}

	return &t, nil
}
