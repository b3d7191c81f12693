package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// CreateAccount inserts a new yp_user row.
func (s *Store) CreateAccount(ctx context.Context, a *model.DriveAccount) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO yp_user (provider, username, cookies, is_valid) VALUES (?, ?, ?, ?)`,
		a.Provider, a.Username, a.Cookies, a.IsValid,
	)
	if err != nil {
		return 0, fmt.Errorf("store: creating account: %w", err)
	}

	return res.LastInsertId()
}

// GetAccount loads one yp_user row by ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (*model.DriveAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider, username, cookies, is_valid, created_at, updated_at
		   FROM yp_user WHERE id = ?`, id)

	return scanAccount(row)
}

// ListAccounts returns every yp_user row, ordered by ID.
func (s *Store) ListAccounts(ctx context.Context) ([]*model.DriveAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, username, cookies, is_valid, created_at, updated_at
		   FROM yp_user ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: listing accounts: %w", err)
	}
	defer rows.Close()

	var out []*model.DriveAccount

	for rows.Next() {
		a, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// InvalidateAccount marks an account's credentials as no longer usable.
// Its caller is the maintenance RefreshDriveUsers sweep, on an account
// whose credential check returns driveclient.ErrAuth; a sync job does
// not call it.
func (s *Store) InvalidateAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE yp_user SET is_valid = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: invalidating account %d: %w", id, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*model.DriveAccount, error) {
	a, err := scanAccountGeneric(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: account not found: %w", err)
		}

		return nil, err
	}

	return a, nil
}

func scanAccountRows(rows *sql.Rows) (*model.DriveAccount, error) {
	return scanAccountGeneric(rows)
}

func scanAccountGeneric(rs rowScanner) (*model.DriveAccount, error) {
	var (
		a         model.DriveAccount
		createdAt string
		updatedAt string
	)

	if err := rs.Scan(&a.ID, &a.Provider, &a.Username, &a.Cookies, &a.IsValid, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	}

	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		a.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
	}

	return &a, nil
}
