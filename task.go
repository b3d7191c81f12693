package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect sync task audit records",
	}

	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskItemsCmd())

	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one sync task's status and counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			t, err := cc.Store.GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return json.NewEncoder(os.Stdout).Encode(t)
			}

			num, err := t.ParseTaskNum()
			if err != nil {
				return fmt.Errorf("task %d has malformed task_num: %w", id, err)
			}

			fmt.Printf("task %d (config %d): %s\n", t.ID, t.ConfigID, t.Status)
			fmt.Printf("started: %s\n", formatTime(t.StartedAt))

			if t.FinishedAt != nil {
				fmt.Printf("finished: %s\n", formatTime(*t.FinishedAt))
			}

			fmt.Printf("processed: %d, transferred: %d, skipped: %d, deleted: %d, folders created: %d\n",
				num.FilesProcessed, num.FilesTransferred, num.FilesSkipped, num.FilesDeleted, num.FolderCreated)

			if t.ErrMsg != "" {
				fmt.Printf("error: %s\n", t.ErrMsg)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "sync task ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTaskItemsCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the per-operation audit rows for a sync task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			items, err := cc.Store.ListItems(cmd.Context(), id)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return json.NewEncoder(os.Stdout).Encode(items)
			}

			rows := make([][]string, len(items))
			for i, it := range items {
				rows[i] = []string{
					string(it.Type),
					it.DstPath,
					formatSize(it.FileSize),
					string(it.Status),
					it.ErrMsg,
				}
			}

			printTable(os.Stdout, []string{"TYPE", "PATH", "SIZE", "STATUS", "ERROR"}, rows)

			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "sync task ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
