// Package maintenance implements the dispatcher's upkeep workers:
// refreshing share links that are about to expire, garbage-collecting
// already-expired shares on the provider side, and revalidating account
// credentials. Grounded on spec.md §4.6's maintenance bullets; the
// teacher carries no equivalent (a single OneDrive drive has no
// multi-account, multi-share upkeep surface), so the staggered-paging
// shape is drawn from the reference Python client's get_share_page loop
// and general good-citizen rate-limiting practice the transport layer
// already follows.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// resourceRefreshWindow is how far ahead of expiry a share is eligible
// for refresh_expiring_resources, matching sync.resource_refresh_window
// in the component design's config defaults.
const resourceRefreshWindow = 24 * time.Hour

const (
	refreshStaggerMin = 5 * time.Second
	refreshStaggerMax = 10 * time.Second

	cleanupAccountStaggerMin = 30 * time.Second
	cleanupAccountStaggerMax = 40 * time.Second
	cleanupPageStaggerMin    = 5 * time.Second
	cleanupPageStaggerMax    = 8 * time.Second

	sharePageSize = 50
)

// Store is the narrow slice of *store.Store the maintenance workers need.
type Store interface {
	ListAccounts(ctx context.Context) ([]*model.DriveAccount, error)
	InvalidateAccount(ctx context.Context, id int64) error
}

// ClientFactory builds a DriveClient for an account — see
// scheduler.ClientFactory; duplicated here as a function type (not
// imported from scheduler) to keep maintenance independent of the
// dispatcher package.
type ClientFactory func(account *model.DriveAccount) (driveclient.DriveClient, error)

// Workers bundles the three maintenance routines against one store and
// client factory, with an injectable sleep/jitter function so tests run
// instantly.
type Workers struct {
	store   Store
	clients ClientFactory
	logger  *slog.Logger
	jitter  func(min, max time.Duration) time.Duration
	sleep   func(ctx context.Context, d time.Duration)
}

// New constructs a Workers set with real time-based staggering.
func New(st Store, clients ClientFactory, logger *slog.Logger) *Workers {
	if logger == nil {
		logger = slog.Default()
	}

	return &Workers{
		store:   st,
		clients: clients,
		logger:  logger,
		jitter:  randomBetween,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RefreshDriveUsers re-validates every account's credentials by calling
// GetUserInfo; an auth-class failure marks the account invalid so the
// dispatcher stops scheduling jobs against it until re-authenticated.
func (w *Workers) RefreshDriveUsers(ctx context.Context) error {
	accounts, err := w.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !account.IsValid {
			continue
		}

		client, err := w.clients(account)
		if err != nil {
			w.logger.Warn("maintenance: cannot build client for account", slog.Int64("account_id", account.ID), slog.String("error", err.Error()))
			continue
		}

		if _, err := client.GetUserInfo(ctx); err != nil {
			if errors.Is(err, driveclient.ErrAuth) {
				if iErr := w.store.InvalidateAccount(ctx, account.ID); iErr != nil {
					w.logger.Error("maintenance: failed to invalidate account", slog.Int64("account_id", account.ID), slog.String("error", iErr.Error()))
				} else {
					w.logger.Warn("maintenance: account credentials expired, marked invalid", slog.Int64("account_id", account.ID))
				}

				continue
			}

			w.logger.Warn("maintenance: get_user_info failed", slog.Int64("account_id", account.ID), slog.String("error", err.Error()))
		}
	}

	return nil
}

// RefreshExpiringResources scans each valid account's own shares for
// ones expiring within resourceRefreshWindow and re-creates them,
// staggering calls per spec.md §4.6.
func (w *Workers) RefreshExpiringResources(ctx context.Context) error {
	accounts, err := w.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	for _, account := range accounts {
		if !account.IsValid {
			continue
		}

		client, err := w.clients(account)
		if err != nil {
			continue
		}

		shares, err := w.listAllShares(ctx, client)
		if err != nil {
			w.logger.Warn("maintenance: listing shares failed", slog.Int64("account_id", account.ID), slog.String("error", err.Error()))
			continue
		}

		for _, share := range shares {
			if share.ExpiredAt == nil || share.ExpiredAt.After(now.Add(resourceRefreshWindow)) {
				continue
			}

			if _, err := client.CreateShare(ctx, share.RootPath); err != nil {
				w.logger.Warn("maintenance: failed to refresh expiring share",
					slog.Int64("account_id", account.ID), slog.String("share_id", share.ShareID), slog.String("error", err.Error()))
			}

			w.sleep(ctx, w.jitter(refreshStaggerMin, refreshStaggerMax))

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}

	return nil
}

// CleanupExpiredLocalShares cancels every already-expired share the
// account created, paging through ListMyShares with the spec's staggers.
func (w *Workers) CleanupExpiredLocalShares(ctx context.Context) error {
	accounts, err := w.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	for i, account := range accounts {
		if !account.IsValid {
			continue
		}

		if i > 0 {
			w.sleep(ctx, w.jitter(cleanupAccountStaggerMin, cleanupAccountStaggerMax))

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		client, err := w.clients(account)
		if err != nil {
			continue
		}

		if err := w.cleanupAccount(ctx, client); err != nil {
			w.logger.Warn("maintenance: cleanup failed for account", slog.Int64("account_id", account.ID), slog.String("error", err.Error()))
		}
	}

	return nil
}

func (w *Workers) cleanupAccount(ctx context.Context, client driveclient.DriveClient) error {
	for page := 1; ; page++ {
		shares, err := client.ListMyShares(ctx, page, sharePageSize)
		if err != nil {
			return err
		}

		if len(shares) == 0 {
			return nil
		}

		for _, share := range shares {
			if share.ExpiredType != -1 && share.ExpiredLeft >= 0 {
				continue
			}

			if err := client.CancelShare(ctx, share.ShareID); err != nil {
				w.logger.Warn("maintenance: cancel_share failed", slog.String("share_id", share.ShareID), slog.String("error", err.Error()))
			}
		}

		w.sleep(ctx, w.jitter(cleanupPageStaggerMin, cleanupPageStaggerMax))

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if len(shares) < sharePageSize {
			return nil
		}
	}
}

func (w *Workers) listAllShares(ctx context.Context, client driveclient.DriveClient) ([]model.ShareInfo, error) {
	var all []model.ShareInfo

	for page := 1; ; page++ {
		shares, err := client.ListMyShares(ctx, page, sharePageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, shares...)

		if len(shares) < sharePageSize {
			return all, nil
		}
	}
}
