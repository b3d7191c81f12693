package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuxijin/coulddrive-sync/internal/config"
	"github.com/chuxijin/coulddrive-sync/internal/store"
)

// newTestCLIContext opens a throwaway SQLite store under t.TempDir()
// and wraps it in a CLIContext, the way loadConfig does in production.
func newTestCLIContext(t *testing.T) *CLIContext {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "cli_test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return &CLIContext{
		Cfg:    config.DefaultConfig(),
		Store:  st,
		Flags:  CLIFlags{},
		Logger: logger,
	}
}

// withCLIContext returns a context carrying cc, as loadConfig's
// PersistentPreRunE does for every command's RunE.
func withCLIContext(cc *CLIContext) context.Context {
	return context.WithValue(context.Background(), cliContextKey{}, cc)
}
