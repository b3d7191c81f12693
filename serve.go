package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chuxijin/coulddrive-sync/internal/config"
	"github.com/chuxijin/coulddrive-sync/internal/maintenance"
	"github.com/chuxijin/coulddrive-sync/internal/scheduler"
)

// Maintenance cadences. spec.md §4.6 pins the per-call stagger ranges
// inside each worker but leaves how often a sweep itself runs
// unspecified; these periods are a deliberate choice, not derived from
// the spec.
const (
	refreshDriveUsersPeriod        = 1 * time.Hour
	refreshExpiringResourcesPeriod = 6 * time.Hour
	cleanupExpiredSharesPeriod     = 12 * time.Hour
)

const defaultDispatcherTick = 60 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cron dispatcher and maintenance workers until terminated",
		Long:  "Starts the cron dispatcher (which fires enabled sync configs on schedule) and the three maintenance workers. Runs until SIGINT/SIGTERM. A second signal forces immediate exit.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	pidPath := filepath.Join(config.DefaultDataDir(), "coulddrive-sync.pid")

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	clients := scheduler.NewClientFactory(httpClientFromConfig(cc.Cfg), cc.Logger)

	tick := defaultDispatcherTick
	if d, err := time.ParseDuration(cc.Cfg.Dispatcher.Tick); err == nil && d > 0 {
		tick = d
	}

	dispatcher := scheduler.New(cc.Store, clients, cc.Logger, tick, int64(cc.Cfg.Dispatcher.WorkerPoolSize))
	workers := maintenance.New(cc.Store, maintenance.ClientFactory(clients), cc.Logger)

	cc.Statusf("coulddrive-sync daemon started (pid file %s, dispatcher tick %s)\n", pidPath, tick)

	go dispatcher.Run(ctx)
	go runMaintenanceLoop(ctx, cc.Logger, "refresh_drive_users", refreshDriveUsersPeriod, workers.RefreshDriveUsers)
	go runMaintenanceLoop(ctx, cc.Logger, "refresh_expiring_resources", refreshExpiringResourcesPeriod, workers.RefreshExpiringResources)
	go runMaintenanceLoop(ctx, cc.Logger, "cleanup_expired_local_shares", cleanupExpiredSharesPeriod, workers.CleanupExpiredLocalShares)

	<-ctx.Done()

	cc.Statusf("shutting down\n")

	return nil
}

// runMaintenanceLoop runs a maintenance worker immediately, then again
// every period until ctx is cancelled, logging failures without ever
// exiting the loop — a transient provider error on one sweep shouldn't
// end the daemon.
func runMaintenanceLoop(ctx context.Context, logger *slog.Logger, name string, period time.Duration, fn func(context.Context) error) {
	run := func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("maintenance sweep failed", slog.String("worker", name), slog.String("error", err.Error()))
		}
	}

	run()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
