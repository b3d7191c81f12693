package main

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestConfigAddCreatesSyncConfig(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	accountID, err := cc.Store.CreateAccount(ctx, &model.DriveAccount{
		Provider: model.ProviderBaidu, Username: "alice", Cookies: "c", IsValid: true,
	})
	require.NoError(t, err)

	cmd := newConfigAddCmd()
	cmd.SetArgs([]string{
		"--account-id", itoa(accountID),
		"--name", "nightly",
		"--share-id", "share123",
		"--target-path", "/mine",
		"--cron", "0 2 * * *",
	})

	require.NoError(t, cmd.ExecuteContext(ctx))

	configs, err := cc.Store.ListSyncConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "nightly", configs[0].Name)
	assert.Equal(t, model.StrategyIncremental, configs[0].Strategy)
	assert.Equal(t, model.SpeedNormal, configs[0].Speed)
	assert.True(t, configs[0].Enabled)
}

func TestConfigAddDefaultsSourceIDToShareIDForLinkType(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	accountID, err := cc.Store.CreateAccount(ctx, &model.DriveAccount{
		Provider: model.ProviderBaidu, Username: "alice", Cookies: "c", IsValid: true,
	})
	require.NoError(t, err)

	cmd := newConfigAddCmd()
	cmd.SetArgs([]string{
		"--account-id", itoa(accountID),
		"--name", "nightly",
		"--share-id", "share123",
		"--target-path", "/mine",
	})

	require.NoError(t, cmd.ExecuteContext(ctx))

	configs, err := cc.Store.ListSyncConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	srcMeta, err := configs[0].ParseSrcMeta()
	require.NoError(t, err)
	assert.Equal(t, "link", srcMeta.SourceType)
	assert.Equal(t, "share123", srcMeta.SourceID)
}

func TestConfigAddAcceptsFriendSourceTypeWithoutShareID(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	accountID, err := cc.Store.CreateAccount(ctx, &model.DriveAccount{
		Provider: model.ProviderBaidu, Username: "alice", Cookies: "c", IsValid: true,
	})
	require.NoError(t, err)

	cmd := newConfigAddCmd()
	cmd.SetArgs([]string{
		"--account-id", itoa(accountID),
		"--name", "from-friend",
		"--source-type", "friend",
		"--source-id", "1234567",
		"--target-path", "/mine",
	})

	require.NoError(t, cmd.ExecuteContext(ctx))

	configs, err := cc.Store.ListSyncConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	srcMeta, err := configs[0].ParseSrcMeta()
	require.NoError(t, err)
	assert.Equal(t, "friend", srcMeta.SourceType)
	assert.Equal(t, "1234567", srcMeta.SourceID)
}

func TestConfigAddRejectsFriendSourceTypeWithoutSourceID(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	cmd := newConfigAddCmd()
	cmd.SetArgs([]string{
		"--account-id", "1",
		"--name", "bad",
		"--source-type", "group",
		"--target-path", "/mine",
	})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--source-id is required")
}

func TestConfigAddRejectsInvalidExtParamsJSON(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	cmd := newConfigAddCmd()
	cmd.SetArgs([]string{
		"--account-id", "1",
		"--name", "bad",
		"--share-id", "share123",
		"--target-path", "/mine",
		"--ext-params", "{not json",
	})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestConfigAddRejectsUnknownStrategy(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	cmd := newConfigAddCmd()
	cmd.SetArgs([]string{
		"--account-id", "1",
		"--name", "bad",
		"--share-id", "share123",
		"--target-path", "/mine",
		"--strategy", "bogus",
	})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestConfigEnableAndDisableToggleFlag(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	accountID, err := cc.Store.CreateAccount(ctx, &model.DriveAccount{
		Provider: model.ProviderBaidu, Username: "alice", Cookies: "c", IsValid: true,
	})
	require.NoError(t, err)

	configID, err := cc.Store.CreateSyncConfig(ctx, &model.SyncConfig{
		AccountID:  accountID,
		Name:       "nightly",
		SrcMetaRaw: []byte(`{}`),
		DstMetaRaw: []byte(`{}`),
		Strategy:   model.StrategyIncremental,
		Speed:      model.SpeedNormal,
		Enabled:    true,
	})
	require.NoError(t, err)

	disable := newConfigEnableCmd(false)
	disable.SetArgs([]string{"--id", itoa(configID)})
	require.NoError(t, disable.ExecuteContext(ctx))

	cfg, err := cc.Store.GetSyncConfig(ctx, configID)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	enable := newConfigEnableCmd(true)
	enable.SetArgs([]string{"--id", itoa(configID)})
	require.NoError(t, enable.ExecuteContext(ctx))

	cfg, err = cc.Store.GetSyncConfig(ctx, configID)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
}
