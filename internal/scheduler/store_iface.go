package scheduler

import (
	"context"

	"github.com/chuxijin/coulddrive-sync/internal/model"
	"github.com/chuxijin/coulddrive-sync/internal/store"
)

// Store is the narrow slice of *store.Store the dispatcher depends on.
// Declaring it here (rather than importing *store.Store directly into
// every signature) keeps scheduler testable against an in-memory fake
// without a SQLite file.
type Store interface {
	ListEnabledSyncConfigs(ctx context.Context) ([]*model.SyncConfig, error)
	GetAccount(ctx context.Context, id int64) (*model.DriveAccount, error)
	GetRuleTemplate(ctx context.Context, id int64) (*model.RuleTemplate, error)
	CommitSyncStart(ctx context.Context, configID int64) (int64, error)
	store.TaskRecorder
}
