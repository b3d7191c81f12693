package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// TaskRecorder is the narrow interface the diff-and-apply core depends
// on, so diffsync never imports database/sql directly — the same
// boundary the teacher draws between internal/sync and its
// BaselineManager/Ledger types.
type TaskRecorder interface {
	RecordItem(ctx context.Context, taskID int64, item model.SyncTaskItem) error
	FinishTask(ctx context.Context, taskID int64, status model.TaskStatus, num model.TaskNum, errMsg string) error
}

// RecordItem inserts one sync_task_item audit row. Skipped files are
// never passed here — the task recorder only durably records copy,
// delete, and create operations, per the volume-control design note.
func (s *Store) RecordItem(ctx context.Context, taskID int64, item model.SyncTaskItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_task_item (task_id, type, src_path, dst_path, file_name, file_size, status, err_msg)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, item.Type, item.SrcPath, item.DstPath, item.FileName, item.FileSize, item.Status, item.ErrMsg,
	)
	if err != nil {
		return fmt.Errorf("store: recording task item: %w", err)
	}

	return nil
}

// FinishTask writes the terminal status, counters, and optional error
// message for a SyncTask, and stamps finished_at. Errors never escape
// the engine unresolved — the final outcome is always a terminal task
// status, per the error-handling design.
func (s *Store) FinishTask(ctx context.Context, taskID int64, status model.TaskStatus, num model.TaskNum, errMsg string) error {
	raw, err := json.Marshal(num)
	if err != nil {
		return fmt.Errorf("store: marshaling task counters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sync_task SET status = ?, task_num = ?, err_msg = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, string(raw), errMsg, taskID,
	)
	if err != nil {
		return fmt.Errorf("store: finishing task %d: %w", taskID, err)
	}

	return nil
}

// GetTask loads one sync_task row by ID.
func (s *Store) GetTask(ctx context.Context, id int64) (*model.SyncTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, config_id, status, task_num, err_msg, started_at, finished_at
		   FROM sync_task WHERE id = ?`, id)

	var (
		t          model.SyncTask
		taskNum    string
		startedAt  string
		finishedAt sql.NullString
	)

	if err := row.Scan(&t.ID, &t.ConfigID, &t.Status, &taskNum, &t.ErrMsg, &startedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: task %d not found: %w", id, err)
		}

		return nil, fmt.Errorf("store: loading task %d: %w", id, err)
	}

	t.TaskNumRaw = []byte(taskNum)
	t.StartedAt = parseTimestamp(startedAt)

	var err error
	if t.FinishedAt, err = scanNullTime(&finishedAt); err != nil {
		return nil, err
	}

	return &t, nil
}

// ListItems returns every sync_task_item row for a task, in insertion
// (ID) order — preserving the order-stability invariant for audit
// replay and tests.
func (s *Store) ListItems(ctx context.Context, taskID int64) ([]model.SyncTaskItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, type, src_path, dst_path, file_name, file_size, status, err_msg, created_at
		   FROM sync_task_item WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: listing task items: %w", err)
	}
	defer rows.Close()

	var out []model.SyncTaskItem

	for rows.Next() {
		var (
			it        model.SyncTaskItem
			createdAt string
		)

		if err := rows.Scan(&it.ID, &it.TaskID, &it.Type, &it.SrcPath, &it.DstPath, &it.FileName,
			&it.FileSize, &it.Status, &it.ErrMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scanning task item: %w", err)
		}

		it.CreatedAt = parseTimestamp(createdAt)
		out = append(out, it)
	}

	return out, rows.Err()
}
