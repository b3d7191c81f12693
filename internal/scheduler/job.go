package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chuxijin/coulddrive-sync/internal/diffsync"
	"github.com/chuxijin/coulddrive-sync/internal/model"
	"github.com/chuxijin/coulddrive-sync/internal/rules"
)

// runJob performs one SyncConfig's full cycle: resolve the account and
// rule template, construct the DriveClient, run the diff-and-apply
// engine, and finalize the SyncTask. taskID was already committed by
// CommitSyncStart before this is called — the write-fence has already
// happened by the time any DriveClient call is made.
func runJob(ctx context.Context, st Store, clients ClientFactory, logger *slog.Logger, cfg *model.SyncConfig, taskID int64) {
	stats, status, errMsg := executeJob(ctx, st, clients, logger, cfg, taskID)

	if err := st.FinishTask(context.WithoutCancel(ctx), taskID, status, stats.TaskNum(), errMsg); err != nil {
		logger.Error("failed to finalize sync task", slog.Int64("task_id", taskID), slog.String("error", err.Error()))
	}
}

// RunOnce executes a SyncConfig immediately, outside the cron dispatcher —
// the path the `sync run` CLI command uses. It performs its own
// CommitSyncStart write-fence, exactly as the dispatcher does before
// handing a job to a worker goroutine, so a manual run and a scheduled
// run are indistinguishable to anything reading the sync_task table.
func RunOnce(ctx context.Context, st Store, clients ClientFactory, logger *slog.Logger, cfg *model.SyncConfig) (*diffsync.Stats, model.TaskStatus, error) {
	taskID, err := st.CommitSyncStart(ctx, cfg.ID)
	if err != nil {
		return nil, model.TaskFailed, fmt.Errorf("committing sync start: %w", err)
	}

	stats, status, errMsg := executeJob(ctx, st, clients, logger, cfg, taskID)

	if err := st.FinishTask(context.WithoutCancel(ctx), taskID, status, stats.TaskNum(), errMsg); err != nil {
		logger.Error("failed to finalize sync task", slog.Int64("task_id", taskID), slog.String("error", err.Error()))
	}

	return stats, status, nil
}

func executeJob(ctx context.Context, st Store, clients ClientFactory, logger *slog.Logger, cfg *model.SyncConfig, taskID int64) (*diffsync.Stats, model.TaskStatus, string) {
	account, err := st.GetAccount(ctx, cfg.AccountID)
	if err != nil {
		return &diffsync.Stats{}, model.TaskFailed, fmt.Sprintf("loading account: %v", err)
	}

	if !account.IsValid {
		return &diffsync.Stats{}, model.TaskFailed, "account credentials are no longer valid"
	}

	srcMeta, err := cfg.ParseSrcMeta()
	if err != nil {
		return &diffsync.Stats{}, model.TaskFailed, fmt.Sprintf("parsing src_meta: %v", err)
	}

	dstMeta, err := cfg.ParseDstMeta()
	if err != nil {
		return &diffsync.Stats{}, model.TaskFailed, fmt.Sprintf("parsing dst_meta: %v", err)
	}

	filter, renames, err := loadRules(ctx, st, cfg.RuleID)
	if err != nil {
		return &diffsync.Stats{}, model.TaskFailed, fmt.Sprintf("loading rule template: %v", err)
	}

	client, err := clients(account)
	if err != nil {
		return &diffsync.Stats{}, model.TaskFailed, fmt.Sprintf("constructing drive client: %v", err)
	}

	share := model.ShareInfo{
		SourceType: srcMeta.SourceType,
		SourceID:   srcMeta.SourceID,
		ShareID:    srcMeta.ShareID,
		PwdID:      srcMeta.SharePwdID,
		Stoken:     srcMeta.ShareStoken,
		RootPath:   srcMeta.SourcePath,
	}

	dst := &diffsync.TargetDef{FilePath: dstMeta.TargetPath, FileID: dstMeta.TargetID}
	src := diffsync.SourceDef{
		SourceType: srcMeta.SourceType,
		SourceID:   srcMeta.SourceID,
		FilePath:   srcMeta.SourcePath,
		ExtParams:  srcMeta.ExtParams,
	}

	engine := diffsync.NewEngine(client, filter, renames, st, logger)

	stats, err := engine.Run(ctx, share, src, dst, diffsync.Options{
		Strategy: cfg.Strategy,
		Speed:    cfg.Speed,
		TaskID:   taskID,
	})
	if err != nil {
		return stats, model.TaskFailed, "cancelled"
	}

	status := stats.Status()
	errMsg := ""

	if status == model.TaskFailed && len(stats.Errors) > 0 {
		errMsg = stats.Errors[0]
	}

	return stats, status, errMsg
}

func loadRules(ctx context.Context, st Store, ruleID *int64) (*rules.ItemFilter, *rules.RenameRules, error) {
	if ruleID == nil {
		return nil, nil, nil
	}

	tmpl, err := st.GetRuleTemplate(ctx, *ruleID)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := tmpl.ParseRuleConfig()
	if err != nil {
		return nil, nil, err
	}

	return rules.NewItemFilter(cfg, nil), rules.NewRenameRules(cfg, nil), nil
}
