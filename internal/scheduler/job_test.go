package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
	"github.com/chuxijin/coulddrive-sync/internal/model"
)

type fakeStore struct {
	mu sync.Mutex

	account      *model.DriveAccount
	accountErr   error
	ruleTemplate *model.RuleTemplate

	commitErr     error
	committed     []int64
	finishedID    int64
	finishedStat  model.TaskStatus
	finishedErr   string
	items         []model.SyncTaskItem
}

func (s *fakeStore) ListEnabledSyncConfigs(ctx context.Context) ([]*model.SyncConfig, error) {
	return nil, nil
}

func (s *fakeStore) GetAccount(ctx context.Context, id int64) (*model.DriveAccount, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	return s.account, nil
}

func (s *fakeStore) GetRuleTemplate(ctx context.Context, id int64) (*model.RuleTemplate, error) {
	return s.ruleTemplate, nil
}

func (s *fakeStore) CommitSyncStart(ctx context.Context, configID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		return 0, s.commitErr
	}

	s.committed = append(s.committed, configID)
	return 42, nil
}

func (s *fakeStore) RecordItem(ctx context.Context, taskID int64, item model.SyncTaskItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *fakeStore) FinishTask(ctx context.Context, taskID int64, status model.TaskStatus, num model.TaskNum, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedID = taskID
	s.finishedStat = status
	s.finishedErr = errMsg
	return nil
}

type stubClient struct {
	diskListing map[string][]model.FileInfo
}

func (c *stubClient) GetUserInfo(ctx context.Context) (*model.DriveAccount, error) { return nil, nil }

func (c *stubClient) ListDisk(ctx context.Context, opts driveclient.ListOptions) ([]model.FileInfo, error) {
	return c.diskListing[opts.Path], nil
}

func (c *stubClient) ListShare(ctx context.Context, share model.ShareInfo, opts driveclient.ListOptions) ([]model.FileInfo, error) {
	return nil, nil
}

func (c *stubClient) ListShareInfo(ctx context.Context, rawLink, password string) (*model.ShareInfo, error) {
	return nil, nil
}

func (c *stubClient) ListMyShares(ctx context.Context, page, size int) ([]model.ShareInfo, error) {
	return nil, nil
}

func (c *stubClient) Mkdir(ctx context.Context, path string) (string, error) { return "id:" + path, nil }

func (c *stubClient) Remove(ctx context.Context, path string) error { return nil }

func (c *stubClient) Transfer(ctx context.Context, req driveclient.TransferRequest) (*driveclient.TransferResult, error) {
	res := &driveclient.TransferResult{}
	for range req.FileIDs {
		res.Succeeded = append(res.Succeeded, true)
		res.Errors = append(res.Errors, nil)
	}
	return res, nil
}

func (c *stubClient) CreateShare(ctx context.Context, path string) (*model.ShareInfo, error) {
	return nil, nil
}

func (c *stubClient) CancelShare(ctx context.Context, shareID string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSyncConfig(t *testing.T) *model.SyncConfig {
	t.Helper()

	src, err := json.Marshal(model.SrcMeta{SourcePath: "/shared"})
	require.NoError(t, err)

	dst, err := json.Marshal(model.DstMeta{TargetPath: "/mine", TargetID: "id:/mine"})
	require.NoError(t, err)

	return &model.SyncConfig{
		ID:         7,
		AccountID:  1,
		Name:       "nightly",
		SrcMetaRaw: src,
		DstMetaRaw: dst,
		Strategy:   model.StrategyIncremental,
		Speed:      model.SpeedFast,
	}
}

func TestRunOnceCommitsStartAndFinishesSucceeded(t *testing.T) {
	st := &fakeStore{account: &model.DriveAccount{ID: 1, Provider: model.ProviderBaidu, IsValid: true}}
	clients := ClientFactory(func(*model.DriveAccount) (driveclient.DriveClient, error) {
		return &stubClient{}, nil
	})

	cfg := newSyncConfig(t)

	stats, status, err := RunOnce(context.Background(), st, clients, discardLogger(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, st.committed)
	assert.Equal(t, int64(42), st.finishedID)
	assert.Equal(t, status, st.finishedStat)
	assert.NotNil(t, stats)
}

func TestRunOnceFailsWhenAccountInvalid(t *testing.T) {
	st := &fakeStore{account: &model.DriveAccount{ID: 1, IsValid: false}}
	clients := ClientFactory(func(*model.DriveAccount) (driveclient.DriveClient, error) {
		return &stubClient{}, nil
	})

	cfg := newSyncConfig(t)

	_, status, err := RunOnce(context.Background(), st, clients, discardLogger(), cfg)
	require.NoError(t, err)

	assert.Equal(t, model.TaskFailed, status)
	assert.Contains(t, st.finishedErr, "no longer valid")
}

func TestRunOnceFailsWhenAccountLookupErrors(t *testing.T) {
	st := &fakeStore{accountErr: errors.New("account not found")}
	clients := ClientFactory(func(*model.DriveAccount) (driveclient.DriveClient, error) {
		return &stubClient{}, nil
	})

	cfg := newSyncConfig(t)

	_, status, err := RunOnce(context.Background(), st, clients, discardLogger(), cfg)
	require.NoError(t, err)

	assert.Equal(t, model.TaskFailed, status)
	assert.Contains(t, st.finishedErr, "loading account")
}

func TestRunOnceFailsWhenClientFactoryErrors(t *testing.T) {
	st := &fakeStore{account: &model.DriveAccount{ID: 1, IsValid: true}}
	clients := ClientFactory(func(*model.DriveAccount) (driveclient.DriveClient, error) {
		return nil, errors.New("unsupported provider")
	})

	cfg := newSyncConfig(t)

	_, status, err := RunOnce(context.Background(), st, clients, discardLogger(), cfg)
	require.NoError(t, err)

	assert.Equal(t, model.TaskFailed, status)
	assert.Contains(t, st.finishedErr, "constructing drive client")
}

func TestRunOnceReturnsErrorWhenCommitFails(t *testing.T) {
	st := &fakeStore{commitErr: errors.New("db unavailable")}
	clients := ClientFactory(func(*model.DriveAccount) (driveclient.DriveClient, error) {
		return &stubClient{}, nil
	})

	cfg := newSyncConfig(t)

	_, _, err := RunOnce(context.Background(), st, clients, discardLogger(), cfg)
	require.Error(t, err)
}
