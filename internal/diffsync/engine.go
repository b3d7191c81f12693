package diffsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
	"github.com/chuxijin/coulddrive-sync/internal/errorpolicy"
	"github.com/chuxijin/coulddrive-sync/internal/model"
	"github.com/chuxijin/coulddrive-sync/internal/rules"
	"github.com/chuxijin/coulddrive-sync/internal/store"
)

// errAbort is returned internally when the error policy decides a
// running job can no longer make progress (a per-class consecutive cap
// or the global error cap was exceeded). Run converts it into a
// TaskFailed finalization rather than propagating it to the caller.
var errAbort = errors.New("diffsync: aborted by error policy")

// SleepFunc abstracts time.Sleep so tests can run the speed-control
// pauses instantly; defaults to a context-aware real sleep.
type SleepFunc func(ctx context.Context, d time.Duration)

// Engine runs one diff-and-apply job against a DriveClient. It is
// single-use: construct one per job via NewEngine, call Run once. This
// mirrors the teacher's Engine, collapsed to a single recursive walk
// since the provider — not this process — performs the byte copy.
type Engine struct {
	client   driveclient.DriveClient
	filter   *rules.ItemFilter  // nil means "exclude nothing"
	renames  *rules.RenameRules // nil means "no renames"
	recorder store.TaskRecorder
	policy   *errorpolicy.Policy
	sleep    SleepFunc
	logger   *slog.Logger

	extParams json.RawMessage // SourceDef.ExtParams for the job currently running
}

// NewEngine constructs an Engine. filter and renames may be nil (an
// empty RuleConfig compiles to filters/renames that pass everything
// through unchanged, but callers may also skip compiling one entirely).
func NewEngine(client driveclient.DriveClient, filter *rules.ItemFilter, renames *rules.RenameRules, recorder store.TaskRecorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		client:   client,
		filter:   filter,
		renames:  renames,
		recorder: recorder,
		policy:   errorpolicy.New(),
		sleep:    realSleep,
		logger:   logger,
	}
}

func realSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run executes one job against share (already resolved from src's raw
// share link) and returns the final Stats. Run never returns a non-nil
// error for ordinary provider/application failures — those are folded
// into Stats.Errors and reflected by Stats.Status(); it returns an error
// only for a cancelled context, which the caller must still finalize as
// a SyncTask with status=failed, err_msg="cancelled" per the concurrency
// design.
func (e *Engine) Run(ctx context.Context, share model.ShareInfo, src SourceDef, dst *TargetDef, opts Options) (*Stats, error) {
	stats := &Stats{}
	e.extParams = src.ExtParams

	// runID gives every log line from this job a shared correlation key,
	// the same role the teacher's planner assigns a CycleID — useful
	// once several sync_config jobs interleave under the dispatcher's
	// worker pool.
	runID := uuid.New().String()
	e.logger = e.logger.With(slog.String("run_id", runID), slog.Int64("task_id", opts.TaskID))

	var err error

	switch opts.Strategy {
	case model.StrategyOverwrite:
		err = e.runOverwrite(ctx, stats, share, src, dst, opts)
	default: // incremental, full
		err = e.runRecursive(ctx, stats, share, src, dst, opts)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		stats.Errors = append(stats.Errors, "cancelled")
		return stats, err
	}

	if err != nil && !errors.Is(err, errAbort) {
		stats.Errors = append(stats.Errors, err.Error())
	}

	return stats, nil
}

// runRecursive dispatches the root call: an empty dst.FileID means the
// target root itself does not exist yet (e.g. a brand-new SyncConfig),
// so the walk starts from syncWithoutHave instead of assuming a target
// listing will succeed.
func (e *Engine) runRecursive(ctx context.Context, stats *Stats, share model.ShareInfo, src SourceDef, dst *TargetDef, opts Options) error {
	if dst.FileID == "" {
		return e.syncWithoutHave(ctx, stats, share, src.FilePath, dst.FilePath, 0, opts)
	}

	return e.syncWithHave(ctx, stats, share, src.FilePath, dst.FilePath, dst.FileID, 0, opts)
}

// recordItem best-effort-records one audit row: a recorder failure is
// logged but never escalated, since losing one audit row must not stop
// an otherwise-succeeding sync.
func (e *Engine) recordItem(ctx context.Context, taskID int64, item model.SyncTaskItem) {
	if e.recorder == nil {
		return
	}

	if err := e.recorder.RecordItem(ctx, taskID, item); err != nil {
		e.logger.Warn("failed to record task item", slog.Int64("task_id", taskID), slog.String("error", err.Error()))
	}
}

func (e *Engine) excluded(itemPath string, isDir bool) bool {
	if e.filter == nil {
		return false
	}

	return e.filter.ShouldExclude(itemPath, isDir)
}

func (e *Engine) renamedName(name string) string {
	if e.renames == nil {
		return name
	}

	return e.renames.Apply(name)
}

func join(parent, name string) string {
	return path.Join(parent, name)
}

// listShareFiltered lists share at srcPath and drops excluded entries.
func (e *Engine) listShareFiltered(ctx context.Context, share model.ShareInfo, srcPath string) ([]model.FileInfo, error) {
	items, err := e.client.ListShare(ctx, share, driveclient.ListOptions{Path: srcPath})
	if err != nil {
		return nil, fmt.Errorf("diffsync: listing share %s: %w", srcPath, err)
	}

	return e.applyFilter(srcPath, items), nil
}

// listDiskFiltered lists the account's own drive at dstPath and drops
// excluded entries.
func (e *Engine) listDiskFiltered(ctx context.Context, dstPath string) ([]model.FileInfo, error) {
	items, err := e.client.ListDisk(ctx, driveclient.ListOptions{Path: dstPath})
	if err != nil {
		return nil, fmt.Errorf("diffsync: listing disk %s: %w", dstPath, err)
	}

	return e.applyFilter(dstPath, items), nil
}

func (e *Engine) applyFilter(parentPath string, items []model.FileInfo) []model.FileInfo {
	if e.filter == nil {
		return items
	}

	out := items[:0:0]

	for _, it := range items {
		if e.excluded(join(parentPath, it.Name), it.IsDir) {
			continue
		}

		out = append(out, it)
	}

	return out
}

// mergeExtInfo builds the per-file ext_info entry the batched-transfer
// contract requires: extParams as a base dict, overlaid with this file's
// own file_ext, with file_id set last so it can never be shadowed by a
// stray extParams key of the same name.
func mergeExtInfo(fileID string, fileExt, extParams json.RawMessage) json.RawMessage {
	merged := map[string]any{}

	for _, raw := range []json.RawMessage{extParams, fileExt} {
		if len(raw) == 0 {
			continue
		}

		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}

		for k, v := range m {
			merged[k] = v
		}
	}

	merged["file_id"] = fileID

	out, err := json.Marshal(merged)
	if err != nil {
		return fileExt
	}

	return out
}
