package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sync configs (share-to-destination bindings)",
	}

	cmd.AddCommand(newConfigAddCmd())
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigEnableCmd(true))
	cmd.AddCommand(newConfigEnableCmd(false))

	return cmd
}

func newConfigAddCmd() *cobra.Command {
	var (
		accountID                              int64
		name, shareID, sharePwdID, shareStoken string
		sourceType, sourceID, extParams        string
		sourcePath, targetPath, targetID       string
		strategy, speed, cron, endTime         string
		ruleID                                 int64
		enabled                                bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a sync config binding a share to a destination path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			strat := model.SyncStrategy(strategy)
			if !strat.IsValid() {
				return fmt.Errorf("unknown strategy %q: want incremental, full, or overwrite", strategy)
			}

			spd := model.TransferSpeed(speed)
			if speed != "" && spd != model.SpeedSlow && spd != model.SpeedNormal && spd != model.SpeedFast {
				return fmt.Errorf("unknown speed %q: want slow, normal, or fast", speed)
			}
			if speed == "" {
				spd = model.SpeedNormal
			}

			if sourceType == "" {
				sourceType = "link"
			}

			switch sourceType {
			case "link":
				if shareID == "" {
					return fmt.Errorf("--share-id is required when --source-type=link")
				}
				if sourceID == "" {
					sourceID = shareID
				}
			case "friend", "group":
				if sourceID == "" {
					return fmt.Errorf("--source-id is required when --source-type=%s (sharer's uk for friend, group id for group)", sourceType)
				}
			default:
				return fmt.Errorf("unknown --source-type %q: want link, friend, or group", sourceType)
			}

			var extParamsRaw json.RawMessage
			if extParams != "" {
				if !json.Valid([]byte(extParams)) {
					return fmt.Errorf("--ext-params is not valid JSON: %s", extParams)
				}
				extParamsRaw = json.RawMessage(extParams)
			}

			srcMeta, err := json.Marshal(model.SrcMeta{
				SourceType:  sourceType,
				SourceID:    sourceID,
				ExtParams:   extParamsRaw,
				ShareID:     shareID,
				SharePwdID:  sharePwdID,
				ShareStoken: shareStoken,
				SourcePath:  sourcePath,
			})
			if err != nil {
				return err
			}

			dstMeta, err := json.Marshal(model.DstMeta{TargetPath: targetPath, TargetID: targetID})
			if err != nil {
				return err
			}

			c := &model.SyncConfig{
				AccountID:  accountID,
				Name:       name,
				SrcMetaRaw: srcMeta,
				DstMetaRaw: dstMeta,
				Strategy:   strat,
				Speed:      spd,
				Enabled:    enabled,
				Cron:       cron,
			}

			if cmd.Flags().Changed("rule-id") {
				c.RuleID = &ruleID
			}

			if endTime != "" {
				t, err := time.Parse(time.RFC3339, endTime)
				if err != nil {
					return fmt.Errorf("parsing --end-time (want RFC3339): %w", err)
				}
				c.EndTime = &t
			}

			id, err := cc.Store.CreateSyncConfig(cmd.Context(), c)
			if err != nil {
				return err
			}

			cc.Statusf("created sync config %d (%s)\n", id, name)

			return nil
		},
	}

	cmd.Flags().Int64Var(&accountID, "account-id", 0, "ID of the account to sync through")
	cmd.Flags().StringVar(&name, "name", "", "config name")
	cmd.Flags().StringVar(&sourceType, "source-type", "link", "link, friend, or group")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "share url/id (link), sharer's uk (friend), or group id (group); defaults to --share-id for link")
	cmd.Flags().StringVar(&extParams, "ext-params", "", "JSON object merged as a base dict under every transferred file's file_ext")
	cmd.Flags().StringVar(&shareID, "share-id", "", "provider share ID (link source type only)")
	cmd.Flags().StringVar(&sharePwdID, "share-pwd-id", "", "Quark-style share pwd_id, if applicable")
	cmd.Flags().StringVar(&shareStoken, "share-stoken", "", "Quark-style resolved stoken, if applicable")
	cmd.Flags().StringVar(&sourcePath, "source-path", "/", "path within the share to sync from")
	cmd.Flags().StringVar(&targetPath, "target-path", "", "destination directory path in the account's own drive")
	cmd.Flags().StringVar(&targetID, "target-id", "", "destination directory's file ID, if already known")
	cmd.Flags().StringVar(&strategy, "strategy", string(model.StrategyIncremental), "incremental, full, or overwrite")
	cmd.Flags().StringVar(&speed, "speed", string(model.SpeedNormal), "slow, normal, or fast")
	cmd.Flags().StringVar(&cron, "cron", "", "5-field cron expression; empty means on-demand only")
	cmd.Flags().StringVar(&endTime, "end-time", "", "RFC3339 timestamp after which the schedule stops firing")
	cmd.Flags().Int64Var(&ruleID, "rule-id", 0, "rule template ID to apply")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "whether the dispatcher should consider this config")

	_ = cmd.MarkFlagRequired("account-id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("target-path")

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sync configs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			configs, err := cc.Store.ListSyncConfigs(cmd.Context())
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return json.NewEncoder(os.Stdout).Encode(configs)
			}

			rows := make([][]string, len(configs))
			for i, c := range configs {
				lastSync := "never"
				if c.LastSync != nil {
					lastSync = formatTime(*c.LastSync)
				}

				rows[i] = []string{
					fmt.Sprintf("%d", c.ID),
					c.Name,
					fmt.Sprintf("%d", c.AccountID),
					string(c.Strategy),
					c.Cron,
					fmt.Sprintf("%t", c.Enabled),
					lastSync,
				}
			}

			printTable(os.Stdout, []string{"ID", "NAME", "ACCOUNT", "STRATEGY", "CRON", "ENABLED", "LAST_SYNC"}, rows)

			return nil
		},
	}
}

func newConfigEnableCmd(enable bool) *cobra.Command {
	use, short := "enable", "Enable a sync config"
	if !enable {
		use, short = "disable", "Disable a sync config"
	}

	var id int64

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := cc.Store.SetSyncConfigEnabled(cmd.Context(), id, enable); err != nil {
				return err
			}

			cc.Statusf("sync config %d: enabled=%t\n", id, enable)

			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "sync config ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
