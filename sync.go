package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chuxijin/coulddrive-sync/internal/scheduler"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run sync configs on demand",
	}

	cmd.AddCommand(newSyncRunCmd())

	return cmd
}

func newSyncRunCmd() *cobra.Command {
	var configID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one sync config immediately, outside the cron schedule",
		Long:  "Runs the diff-and-apply engine synchronously and blocks until the sync task finishes, printing a summary. Exactly one SyncTask row is recorded, identical in shape to a dispatcher-triggered run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			cfg, err := cc.Store.GetSyncConfig(ctx, configID)
			if err != nil {
				return err
			}

			clients := scheduler.NewClientFactory(httpClientFromConfig(cc.Cfg), cc.Logger)

			cc.Statusf("running sync config %d (%s)...\n", cfg.ID, cfg.Name)

			stats, status, err := scheduler.RunOnce(ctx, cc.Store, clients, cc.Logger, cfg)
			if err != nil {
				return err
			}

			fmt.Printf("status: %s\n", status)
			fmt.Printf("files processed: %d, transferred: %d, skipped: %d, deleted: %d, folders created: %d\n",
				stats.FilesProcessed, stats.FilesTransferred, stats.FilesSkipped, stats.FilesDeleted, stats.FolderCreated)

			if len(stats.Errors) > 0 {
				fmt.Println("errors:")
				for _, e := range stats.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&configID, "config-id", 0, "sync config ID to run")
	_ = cmd.MarkFlagRequired("config-id")

	return cmd
}
