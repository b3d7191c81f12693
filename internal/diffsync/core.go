package diffsync

import (
	"context"
	"log/slog"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
	"github.com/chuxijin/coulddrive-sync/internal/errorpolicy"
	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// syncWithHave reconciles srcPath (on the share) against dstPath/dstID
// (an existing directory on the account's own drive), per spec.md
// §4.3's mutually-recursive core procedure.
func (e *Engine) syncWithHave(ctx context.Context, stats *Stats, share model.ShareInfo, srcPath, dstPath, dstID string, depth int, opts Options) error {
	if depth >= opts.maxDepth() {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	srcItems, err := e.listShareFiltered(ctx, share, srcPath)
	if err != nil {
		return err
	}

	dstItems, err := e.listDiskFiltered(ctx, dstPath)
	if err != nil {
		return err
	}

	tByKey := indexByKey(dstItems)

	var (
		srcFiles        []model.FileInfo
		srcFolders      []model.FileInfo
		filesToTransfer []model.FileInfo
	)

	for _, it := range srcItems {
		if it.IsDir {
			srcFolders = append(srcFolders, it)
			continue
		}

		srcFiles = append(srcFiles, it)

		key := canonicalKey(e.renamedName(it.Name), false)
		if t, ok := tByKey[key]; !ok || t.Size != it.Size {
			filesToTransfer = append(filesToTransfer, it)
		} else {
			stats.FilesProcessed++
			stats.FilesSkipped++
		}
	}

	for _, d := range srcFolders {
		key := canonicalKey(e.renamedName(d.Name), true)
		childSrc := join(srcPath, d.Name)
		childDst := join(dstPath, d.Name)

		var recErr error

		if t, ok := tByKey[key]; ok {
			recErr = e.syncWithHave(ctx, stats, share, childSrc, childDst, t.ID, depth+1, opts)
		} else {
			recErr = e.syncWithoutHave(ctx, stats, share, childSrc, childDst, depth+1, opts)
		}

		if recErr != nil {
			return recErr
		}
	}

	if err := e.transferBatch(ctx, stats, share, srcPath, dstPath, dstID, filesToTransfer, opts); err != nil {
		return err
	}

	if opts.Strategy == model.StrategyFull {
		keep := make(map[string]struct{}, len(srcFiles)+len(srcFolders))

		for _, f := range srcFiles {
			keep[canonicalKey(e.renamedName(f.Name), false)] = struct{}{}
		}

		for _, d := range srcFolders {
			keep[canonicalKey(e.renamedName(d.Name), true)] = struct{}{}
		}

		var stray []model.FileInfo

		for key, t := range tByKey {
			if _, ok := keep[key]; !ok {
				stray = append(stray, t)
			}
		}

		if err := e.deleteBatch(ctx, stats, dstPath, stray, opts); err != nil {
			return err
		}
	}

	return nil
}

// syncWithoutHave materializes a source directory that has no
// counterpart on the target yet: it creates dstPath, then recurses and
// transfers with the knowledge that the target side starts empty.
func (e *Engine) syncWithoutHave(ctx context.Context, stats *Stats, share model.ShareInfo, srcPath, dstPath string, depth int, opts Options) error {
	if depth >= opts.maxDepth() {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	id, mkErr := e.client.Mkdir(ctx, dstPath)

	status := model.ItemCompleted
	errMsg := ""

	if mkErr != nil {
		status = model.ItemFailed
		errMsg = mkErr.Error()
	} else {
		stats.FolderCreated++
	}

	e.recordItem(ctx, opts.TaskID, model.SyncTaskItem{
		Type:     model.OpCreate,
		SrcPath:  srcPath,
		DstPath:  dstPath,
		FileName: lastSegment(dstPath),
		Status:   status,
		ErrMsg:   errMsg,
	})

	if mkErr != nil {
		stats.Errors = append(stats.Errors, mkErr.Error())
		return nil // generic failure: log and continue, do not abort the job
	}

	srcItems, err := e.listShareFiltered(ctx, share, srcPath)
	if err != nil {
		return err
	}

	var filesToTransfer []model.FileInfo

	for _, it := range srcItems {
		if it.IsDir {
			if err := e.syncWithoutHave(ctx, stats, share, join(srcPath, it.Name), join(dstPath, it.Name), depth+1, opts); err != nil {
				return err
			}

			continue
		}

		filesToTransfer = append(filesToTransfer, it)
	}

	return e.transferBatch(ctx, stats, share, srcPath, dstPath, id, filesToTransfer, opts)
}

// transferBatch issues one batched Transfer call for files, retrying or
// aborting per the adaptive error policy on a whole-batch failure, then
// recording one SyncTaskItem per file from the provider's per-file
// outcome. A nil/empty files slice is a no-op: no call, no sleep.
func (e *Engine) transferBatch(ctx context.Context, stats *Stats, share model.ShareInfo, srcPath, dstPath, dstID string, files []model.FileInfo, opts Options) error {
	if len(files) == 0 {
		return nil
	}

	for _, f := range files {
		stats.FilesProcessed++
	}

	req := driveclient.TransferRequest{
		SrcShare: share,
		DstPath:  dstPath,
		DstID:    dstID,
	}

	for _, f := range files {
		req.FileIDs = append(req.FileIDs, f.ID)
		req.FilesExtInfo = append(req.FilesExtInfo, mergeExtInfo(f.ID, f.FileExt, e.extParams))
	}

	for {
		result, err := e.client.Transfer(ctx, req)
		if err == nil {
			e.recordTransferResult(ctx, stats, srcPath, dstPath, files, result, opts.TaskID)
			e.policy.Reset()
			e.sleep(ctx, opts.Speed.SleepAfterTransfer())

			return nil
		}

		action, wait := e.policy.Decide(err, false)

		switch action {
		case errorpolicy.ActionRetry:
			e.logger.Warn("transfer batch failed, retrying", slog.String("dst_path", dstPath), slog.String("error", err.Error()))
			e.sleep(ctx, wait)

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			continue
		case errorpolicy.ActionAbort:
			stats.Errors = append(stats.Errors, err.Error())
			return errAbort
		default: // ActionContinue, ActionSkip
			stats.Errors = append(stats.Errors, err.Error())
			return nil
		}
	}
}

func (e *Engine) recordTransferResult(ctx context.Context, stats *Stats, srcPath, dstPath string, files []model.FileInfo, result *driveclient.TransferResult, taskID int64) {
	for i, f := range files {
		ok := i < len(result.Succeeded) && result.Succeeded[i]

		status := model.ItemCompleted
		errMsg := ""

		if !ok {
			status = model.ItemFailed

			if i < len(result.Errors) && result.Errors[i] != nil {
				errMsg = result.Errors[i].Error()
			}

			stats.Errors = append(stats.Errors, errMsg)
		} else {
			stats.FilesTransferred++
		}

		e.recordItem(ctx, taskID, model.SyncTaskItem{
			Type:     model.OpCopy,
			SrcPath:  join(srcPath, f.Name),
			DstPath:  join(dstPath, f.Name),
			FileName: f.Name,
			FileSize: f.Size,
			Status:   status,
			ErrMsg:   errMsg,
		})
	}
}

// deleteBatch removes every entry in stray from dstPath. Per the
// decision table, a delete failure is always skip-and-continue — it
// never retries and never aborts the run itself, though each failure
// still counts toward the policy's global error total — so each
// removal is attempted independently.
func (e *Engine) deleteBatch(ctx context.Context, stats *Stats, dstPath string, stray []model.FileInfo, opts Options) error {
	if len(stray) == 0 {
		return nil
	}

	for _, t := range stray {
		err := e.client.Remove(ctx, join(dstPath, t.Name))

		status := model.ItemCompleted
		errMsg := ""

		if err != nil {
			status = model.ItemFailed
			errMsg = err.Error()
			stats.Errors = append(stats.Errors, errMsg)

			e.policy.Decide(err, true) // always ActionSkip; advances counters for the global cap only
		} else {
			stats.FilesDeleted++
		}

		e.recordItem(ctx, opts.TaskID, model.SyncTaskItem{
			Type:     model.OpDelete,
			SrcPath:  "",
			DstPath:  join(dstPath, t.Name),
			FileName: t.Name,
			FileSize: t.Size,
			Status:   status,
			ErrMsg:   errMsg,
		})
	}

	e.sleep(ctx, opts.Speed.SleepAfterDelete())

	return nil
}

func lastSegment(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}

	return p
}
