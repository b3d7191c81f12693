package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

func TestTaskShowAndItemsReflectCommittedTask(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	account := &model.DriveAccount{Provider: model.ProviderBaidu, Username: "alice", Cookies: "c", IsValid: true}
	accountID, err := cc.Store.CreateAccount(ctx, account)
	require.NoError(t, err)

	cfg := &model.SyncConfig{
		AccountID:  accountID,
		Name:       "nightly",
		SrcMetaRaw: []byte(`{"source_path":"/shared"}`),
		DstMetaRaw: []byte(`{"target_path":"/mine"}`),
		Strategy:   model.StrategyIncremental,
		Speed:      model.SpeedNormal,
	}
	configID, err := cc.Store.CreateSyncConfig(ctx, cfg)
	require.NoError(t, err)

	taskID, err := cc.Store.CommitSyncStart(ctx, configID)
	require.NoError(t, err)

	require.NoError(t, cc.Store.RecordItem(ctx, taskID, model.SyncTaskItem{
		TaskID:   taskID,
		Type:     model.OpCopy,
		SrcPath:  "/shared/a.txt",
		DstPath:  "/mine/a.txt",
		FileName: "a.txt",
		FileSize: 1024,
		Status:   model.ItemCompleted,
	}))

	require.NoError(t, cc.Store.FinishTask(ctx, taskID, model.TaskCompleted, model.TaskNum{FilesProcessed: 1, FilesTransferred: 1}, ""))

	show := newTaskShowCmd()
	show.SetArgs([]string{"--id", "1"})
	require.NoError(t, show.ExecuteContext(ctx))

	items := newTaskItemsCmd()
	items.SetArgs([]string{"--id", "1"})
	require.NoError(t, items.ExecuteContext(ctx))

	task, err := cc.Store.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, task.Status)

	storedItems, err := cc.Store.ListItems(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, storedItems, 1)
	assert.Equal(t, "a.txt", storedItems[0].FileName)
}

func TestTaskShowErrorsOnUnknownID(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	show := newTaskShowCmd()
	show.SetArgs([]string{"--id", "999"})

	assert.Error(t, show.ExecuteContext(ctx))
}
