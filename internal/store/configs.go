package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// CreateSyncConfig inserts a new sync_config row.
func (s *Store) CreateSyncConfig(ctx context.Context, c *model.SyncConfig) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_config
		   (account_id, name, src_meta, dst_meta, rule_id, strategy, speed, enabled, cron, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.AccountID, c.Name, string(c.SrcMetaRaw), string(c.DstMetaRaw), c.RuleID,
		c.Strategy, c.Speed, c.Enabled, c.Cron, nullTime(c.EndTime),
	)
	if err != nil {
		return 0, fmt.Errorf("store: creating sync config: %w", err)
	}

	return res.LastInsertId()
}

// GetSyncConfig loads one sync_config row by ID.
func (s *Store) GetSyncConfig(ctx context.Context, id int64) (*model.SyncConfig, error) {
	row := s.db.QueryRowContext(ctx, syncConfigSelect+` WHERE id = ?`, id)

	c, err := scanSyncConfig(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: sync config %d not found: %w", id, err)
		}

		return nil, fmt.Errorf("store: loading sync config %d: %w", id, err)
	}

	return c, nil
}

// ListSyncConfigs returns every sync_config row, enabled or not.
func (s *Store) ListSyncConfigs(ctx context.Context) ([]*model.SyncConfig, error) {
	rows, err := s.db.QueryContext(ctx, syncConfigSelect+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: listing sync configs: %w", err)
	}
	defer rows.Close()

	var out []*model.SyncConfig

	for rows.Next() {
		c, err := scanSyncConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning sync config: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

// SetSyncConfigEnabled flips a sync_config's enabled flag — used by the
// `config enable`/`config disable` CLI commands to pull a config in or
// out of the dispatcher's candidate set without deleting it.
func (s *Store) SetSyncConfigEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_config SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("store: setting sync config %d enabled=%t: %w", id, enabled, err)
	}

	return nil
}

// ListEnabledSyncConfigs returns every enabled sync_config row — the
// dispatcher's per-tick candidate set.
func (s *Store) ListEnabledSyncConfigs(ctx context.Context) ([]*model.SyncConfig, error) {
	rows, err := s.db.QueryContext(ctx, syncConfigSelect+` WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: listing enabled sync configs: %w", err)
	}
	defer rows.Close()

	var out []*model.SyncConfig

	for rows.Next() {
		c, err := scanSyncConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning sync config: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

const syncConfigSelect = `
	SELECT id, account_id, name, src_meta, dst_meta, rule_id, strategy, speed,
	       enabled, cron, end_time, last_sync, created_at, updated_at
	  FROM sync_config`

func scanSyncConfig(rs rowScanner) (*model.SyncConfig, error) {
	var (
		c                     model.SyncConfig
		srcMeta, dstMeta      string
		ruleID                sql.NullInt64
		endTime, lastSync     sql.NullString
		createdAt, updatedAt  string
	)

	if err := rs.Scan(&c.ID, &c.AccountID, &c.Name, &srcMeta, &dstMeta, &ruleID,
		&c.Strategy, &c.Speed, &c.Enabled, &c.Cron, &endTime, &lastSync,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.SrcMetaRaw = []byte(srcMeta)
	c.DstMetaRaw = []byte(dstMeta)

	if ruleID.Valid {
		c.RuleID = &ruleID.Int64
	}

	var err error
	if c.EndTime, err = scanNullTime(&endTime); err != nil {
		return nil, err
	}

	if c.LastSync, err = scanNullTime(&lastSync); err != nil {
		return nil, err
	}

	c.CreatedAt = parseTimestamp(createdAt)
	c.UpdatedAt = parseTimestamp(updatedAt)

	return &c, nil
}

// CommitSyncStart writes last_sync = now and inserts the SyncTask header
// row in one transaction, strictly before the engine's first DriveClient
// call — implementing the write-fence invariant from the component
// design's Task Recorder / Scheduler sections.
func (s *Store) CommitSyncStart(ctx context.Context, configID int64) (taskID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: beginning sync-start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE sync_config SET last_sync = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		configID); err != nil {
		return 0, fmt.Errorf("store: writing last_sync fence: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sync_task (config_id, status) VALUES (?, 'running')`, configID)
	if err != nil {
		return 0, fmt.Errorf("store: inserting sync task: %w", err)
	}

	taskID, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: committing sync-start transaction: %w", err)
	}

	return taskID, nil
}
