package diffsync

import (
	"context"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// runOverwrite implements the overwrite strategy per spec.md §4.3.3: at
// the configuration's root only, delete every existing target entry,
// then transfer every source entry in a single batched call. It never
// recurses — directory contents are copied server-side by the provider.
func (e *Engine) runOverwrite(ctx context.Context, stats *Stats, share model.ShareInfo, src SourceDef, dst *TargetDef, opts Options) error {
	dstItems, err := e.listDiskFiltered(ctx, dst.FilePath)
	if err != nil {
		return err
	}

	if err := e.deleteBatch(ctx, stats, dst.FilePath, dstItems, opts); err != nil {
		return err
	}

	srcItems, err := e.listShareFiltered(ctx, share, src.FilePath)
	if err != nil {
		return err
	}

	return e.transferBatch(ctx, stats, share, src.FilePath, dst.FilePath, dst.FileID, srcItems, opts)
}
