package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage rule templates (exclusions and renames)",
	}

	cmd.AddCommand(newRuleAddCmd())
	cmd.AddCommand(newRuleListCmd())
	cmd.AddCommand(newRuleShowCmd())

	return cmd
}

func newRuleAddCmd() *cobra.Command {
	var name, file string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule template from a JSON file",
		Long:  "The file must contain a JSON object matching model.RuleConfig: {\"exclusions\": [...], \"renames\": [...]}.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading rule config file: %w", err)
			}

			var parsed model.RuleConfig
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return fmt.Errorf("parsing rule config: %w", err)
			}

			t := &model.RuleTemplate{Name: name, RuleConfigRaw: raw}

			id, err := cc.Store.CreateRuleTemplate(cmd.Context(), t)
			if err != nil {
				return err
			}

			cc.Statusf("created rule template %d (%s): %d exclusions, %d renames\n",
				id, name, len(parsed.Exclusions), len(parsed.Renames))

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "rule template name")
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON rule config file")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newRuleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rule templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			templates, err := cc.Store.ListRuleTemplates(cmd.Context())
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return json.NewEncoder(os.Stdout).Encode(templates)
			}

			rows := make([][]string, len(templates))
			for i, t := range templates {
				cfg, _ := t.ParseRuleConfig()
				rows[i] = []string{
					fmt.Sprintf("%d", t.ID),
					t.Name,
					fmt.Sprintf("%d", len(cfg.Exclusions)),
					fmt.Sprintf("%d", len(cfg.Renames)),
					formatTime(t.UpdatedAt),
				}
			}

			printTable(os.Stdout, []string{"ID", "NAME", "EXCLUSIONS", "RENAMES", "UPDATED"}, rows)

			return nil
		},
	}
}

func newRuleShowCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a rule template's full config as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			t, err := cc.Store.GetRuleTemplate(cmd.Context(), id)
			if err != nil {
				return err
			}

			var pretty map[string]any
			if err := json.Unmarshal(t.RuleConfigRaw, &pretty); err != nil {
				return fmt.Errorf("rule template %d has malformed rule_config: %w", id, err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(pretty)
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "rule template ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
