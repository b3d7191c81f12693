package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage drive accounts",
	}

	cmd.AddCommand(newAccountAddCmd())
	cmd.AddCommand(newAccountListCmd())

	return cmd
}

func newAccountAddCmd() *cobra.Command {
	var provider, username, cookies string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new drive account",
		Long:  "Stores a provider/username/cookie triple. The cookie string is whatever the provider's web session produces and is never logged verbatim.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			p := model.ProviderType(provider)
			if !p.IsValid() {
				return fmt.Errorf("unknown provider %q: want %q or %q", provider, model.ProviderBaidu, model.ProviderQuark)
			}

			account := &model.DriveAccount{
				Provider: p,
				Username: username,
				Cookies:  cookies,
				IsValid:  true,
			}

			id, err := cc.Store.CreateAccount(cmd.Context(), account)
			if err != nil {
				return err
			}

			cc.Statusf("created account %d (%s/%s)\n", id, provider, username)

			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", fmt.Sprintf("%q or %q", model.ProviderBaidu, model.ProviderQuark))
	cmd.Flags().StringVar(&username, "username", "", "display name for the account")
	cmd.Flags().StringVar(&cookies, "cookies", "", "opaque session cookie string")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("cookies")

	return cmd
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			accounts, err := cc.Store.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return json.NewEncoder(os.Stdout).Encode(accounts)
			}

			rows := make([][]string, len(accounts))
			for i, a := range accounts {
				rows[i] = []string{
					fmt.Sprintf("%d", a.ID),
					string(a.Provider),
					a.Username,
					fmt.Sprintf("%t", a.IsValid),
					formatTime(a.UpdatedAt),
				}
			}

			printTable(os.Stdout, []string{"ID", "PROVIDER", "USERNAME", "VALID", "UPDATED"}, rows)

			return nil
		},
	}
}
