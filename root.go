package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chuxijin/coulddrive-sync/internal/config"
	"github.com/chuxijin/coulddrive-sync/internal/store"
)

// defaultDataTimeout is used when network.data_timeout fails to parse —
// it never should, since config.Validate already rejects a bad value,
// but httpClientFromConfig has no error return to propagate a failure.
const defaultDataTimeout = 60 * time.Second

// httpClientFromConfig builds the shared *http.Client every provider
// adapter is constructed with, timed out by network.data_timeout —
// transfers are provider-side operations kicked off by one HTTP call,
// not long-lived uploads/downloads through this process, so a single
// overall timeout (rather than the teacher's separate metadata/transfer
// clients) is enough.
func httpClientFromConfig(cfg *config.Config) *http.Client {
	timeout := defaultDataTimeout

	if d, err := time.ParseDuration(cfg.Network.DataTimeout); err == nil && d > 0 {
		timeout = d
	}

	return &http.Client{Timeout: timeout}
}

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the global persistent flags, bound once in newRootCmd.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

var flags CLIFlags

// skipConfigAnnotation marks commands that don't need a config/store
// loaded — currently unused by any command, kept for parity with the
// PersistentPreRunE gate below so a future offline command (e.g. a
// `version` subcommand) can opt out cheaply.
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the resolved config, an open store, and a logger.
// Built once in loadConfig's PersistentPreRunE and threaded through
// RunE handlers via the command's context.
type CLIContext struct {
	Cfg    *config.Config
	Store  *store.Store
	Flags  CLIFlags
	Logger *slog.Logger
}

type cliContextKey struct{}

// cliContextFrom extracts the CLIContext from the command's context.
// Returns nil if no config was loaded (commands annotated skipConfig).
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. Panics are always programmer errors — the command tree
// should guarantee the context is populated before RunE executes.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — command is missing PersistentPreRunE config loading")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with
// all subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "coulddrive-sync",
		Short:   "Cloud-drive share-sync engine",
		Long:    "Mirrors shared Baidu/Quark netdisk folders into an account's own drive, on demand or on a cron schedule.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc := cliContextFrom(cmd.Context())
			if cc == nil || cc.Store == nil {
				return nil
			}

			return cc.Store.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging (HTTP requests, dispatcher eligibility)")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newRuleCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the
// file-then-env-then-flag chain, opens the store, and stashes both in
// the command's context for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	// Bootstrap logger derived from CLI flags only (config doesn't exist yet).
	logger := buildLogger(nil, flags)

	env := config.ReadEnvOverrides()
	cfgPath := config.ResolveConfigPath(env, flags.ConfigPath, logger)

	cfg, err := config.LoadOrDefault(cfgPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg, flags)

	dbPath := cfg.Database.Path
	if env.DatabasePath != "" {
		dbPath = env.DatabasePath
	}

	st, err := store.Open(cmd.Context(), dbPath, finalLogger)
	if err != nil {
		return fmt.Errorf("opening store at %s: %w", dbPath, err)
	}

	cc := &CLIContext{Cfg: cfg, Store: st, Flags: flags, Logger: finalLogger}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config
// and CLI flags. Pass nil for pre-config bootstrap (no config-file log
// level yet). Config-file log level is the baseline; --verbose,
// --debug, and --quiet override it since CLI flags always win. The
// three are mutually exclusive (enforced by Cobra).
func buildLogger(cfg *config.Config, f CLIFlags) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if f.Verbose {
		level = slog.LevelInfo
	}

	if f.Debug {
		level = slog.LevelDebug
	}

	if f.Quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
