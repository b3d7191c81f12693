package diffsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// --- Mock types ---

type fakeClient struct {
	share map[string][]model.FileInfo // keyed by path
	disk  map[string][]model.FileInfo

	mkdirCalls    []string
	removeCalls   []string
	transferCalls []driveclient.TransferRequest

	transferErr error
	mkdirErr    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		share: map[string][]model.FileInfo{},
		disk:  map[string][]model.FileInfo{},
	}
}

func (f *fakeClient) GetUserInfo(ctx context.Context) (*model.DriveAccount, error) { return nil, nil }

func (f *fakeClient) ListDisk(ctx context.Context, opts driveclient.ListOptions) ([]model.FileInfo, error) {
	return f.disk[opts.Path], nil
}

func (f *fakeClient) ListShare(ctx context.Context, share model.ShareInfo, opts driveclient.ListOptions) ([]model.FileInfo, error) {
	return f.share[opts.Path], nil
}

func (f *fakeClient) ListShareInfo(ctx context.Context, rawLink, password string) (*model.ShareInfo, error) {
	return nil, nil
}

func (f *fakeClient) ListMyShares(ctx context.Context, page, size int) ([]model.ShareInfo, error) {
	return nil, nil
}

func (f *fakeClient) Mkdir(ctx context.Context, path string) (string, error) {
	f.mkdirCalls = append(f.mkdirCalls, path)
	if f.mkdirErr != nil {
		return "", f.mkdirErr
	}

	return "id:" + path, nil
}

func (f *fakeClient) Remove(ctx context.Context, path string) error {
	f.removeCalls = append(f.removeCalls, path)
	return nil
}

func (f *fakeClient) Transfer(ctx context.Context, req driveclient.TransferRequest) (*driveclient.TransferResult, error) {
	f.transferCalls = append(f.transferCalls, req)
	if f.transferErr != nil {
		return nil, f.transferErr
	}

	res := &driveclient.TransferResult{}
	for range req.FileIDs {
		res.Succeeded = append(res.Succeeded, true)
		res.Errors = append(res.Errors, nil)
	}

	return res, nil
}

func (f *fakeClient) CreateShare(ctx context.Context, path string) (*model.ShareInfo, error) {
	return nil, nil
}

func (f *fakeClient) CancelShare(ctx context.Context, shareID string) error { return nil }

type fakeRecorder struct {
	items []model.SyncTaskItem
}

func (r *fakeRecorder) RecordItem(ctx context.Context, taskID int64, item model.SyncTaskItem) error {
	r.items = append(r.items, item)
	return nil
}

func (r *fakeRecorder) FinishTask(ctx context.Context, taskID int64, status model.TaskStatus, num model.TaskNum, errMsg string) error {
	return nil
}

func noSleep(ctx context.Context, d time.Duration) {}

// --- Tests ---

func TestRunFreshCopyTransfersEveryFile(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10},
		{Name: "sub", IsDir: true},
	}
	client.share["/src/sub"] = []model.FileInfo{
		{Name: "b.txt", ID: "f2", Size: 20},
	}
	client.disk["/dst"] = nil

	rec := &fakeRecorder{}
	e := NewEngine(client, nil, nil, rec, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	stats, err := e.Run(context.Background(), model.ShareInfo{}, SourceDef{FilePath: "/src"}, dst,
		Options{Strategy: model.StrategyIncremental, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.FilesProcessed)
	assert.Equal(t, int64(2), stats.FilesTransferred)
	assert.Equal(t, int64(1), stats.FolderCreated)
	assert.Empty(t, stats.Errors)
	assert.Equal(t, model.TaskCompleted, stats.Status())
	assert.Contains(t, client.mkdirCalls, "/dst/sub")
}

func TestRunSkipsUnchangedFiles(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10},
	}
	client.disk["/dst"] = []model.FileInfo{
		{Name: "a.txt", ID: "d1", Size: 10},
	}

	e := NewEngine(client, nil, nil, &fakeRecorder{}, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	stats, err := e.Run(context.Background(), model.ShareInfo{}, SourceDef{FilePath: "/src"}, dst,
		Options{Strategy: model.StrategyIncremental, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FilesProcessed)
	assert.Equal(t, int64(0), stats.FilesTransferred)
	assert.Equal(t, int64(1), stats.FilesSkipped)
	assert.Empty(t, client.transferCalls)
	assert.Equal(t, stats.FilesProcessed, stats.FilesTransferred+stats.FilesSkipped)
}

func TestRunFullStrategyDeletesStrayEntries(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10},
	}
	client.disk["/dst"] = []model.FileInfo{
		{Name: "a.txt", ID: "d1", Size: 10},
		{Name: "stray.txt", ID: "d2", Size: 5},
	}

	e := NewEngine(client, nil, nil, &fakeRecorder{}, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	stats, err := e.Run(context.Background(), model.ShareInfo{}, SourceDef{FilePath: "/src"}, dst,
		Options{Strategy: model.StrategyFull, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FilesDeleted)
	assert.Contains(t, client.removeCalls, "/dst/stray.txt")
}

func TestRunIncrementalNeverDeletes(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10},
	}
	client.disk["/dst"] = []model.FileInfo{
		{Name: "a.txt", ID: "d1", Size: 10},
		{Name: "stray.txt", ID: "d2", Size: 5},
	}

	e := NewEngine(client, nil, nil, &fakeRecorder{}, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	stats, err := e.Run(context.Background(), model.ShareInfo{}, SourceDef{FilePath: "/src"}, dst,
		Options{Strategy: model.StrategyIncremental, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FilesDeleted)
	assert.Empty(t, client.removeCalls)
}

// TestTransferBatchKeepsFileIDsAndExtInfoAligned guards the integrity
// property the spec calls out explicitly: FileIDs[i] and
// FilesExtInfo[i] must describe the same source file.
func TestTransferBatchKeepsFileIDsAndExtInfoAligned(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10, FileExt: []byte(`{"tag":"A"}`)},
		{Name: "b.txt", ID: "f2", Size: 20, FileExt: []byte(`{"tag":"B"}`)},
		{Name: "c.txt", ID: "f3", Size: 30, FileExt: []byte(`{"tag":"C"}`)},
	}
	client.disk["/dst"] = nil

	e := NewEngine(client, nil, nil, &fakeRecorder{}, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	_, err := e.Run(context.Background(), model.ShareInfo{}, SourceDef{FilePath: "/src"}, dst,
		Options{Strategy: model.StrategyIncremental, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err)
	require.Len(t, client.transferCalls, 1)

	req := client.transferCalls[0]
	require.Len(t, req.FileIDs, 3)
	require.Len(t, req.FilesExtInfo, 3)

	for i, id := range req.FileIDs {
		assert.Contains(t, string(req.FilesExtInfo[i]), `"file_id":"`+id+`"`)
	}
}

// TestTransferBatchMergesExtParamsAsBaseDict guards §4.3.1's ext_params
// propagation: SourceDef.ExtParams must reach every transferred file's
// ext_info as a base dict, overridable by the file's own FileExt.
func TestTransferBatchMergesExtParamsAsBaseDict(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10, FileExt: []byte(`{"tag":"A"}`)},
		{Name: "b.txt", ID: "f2", Size: 20}, // no file_ext of its own
	}
	client.disk["/dst"] = nil

	e := NewEngine(client, nil, nil, &fakeRecorder{}, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	src := SourceDef{FilePath: "/src", SourceType: "friend", SourceID: "12345", ExtParams: []byte(`{"from_uk":"12345","tag":"base"}`)}
	_, err := e.Run(context.Background(), model.ShareInfo{}, src, dst,
		Options{Strategy: model.StrategyIncremental, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err)
	require.Len(t, client.transferCalls, 1)

	req := client.transferCalls[0]
	require.Len(t, req.FilesExtInfo, 2)

	assert.Contains(t, string(req.FilesExtInfo[0]), `"from_uk":"12345"`)
	assert.Contains(t, string(req.FilesExtInfo[0]), `"tag":"A"`) // file's own file_ext overrides the base dict
	assert.Contains(t, string(req.FilesExtInfo[1]), `"tag":"base"`) // falls back to ext_params when the file has none of its own
}

func TestRunAbortsAfterConsecutiveTransferFailures(t *testing.T) {
	client := newFakeClient()
	client.share["/src"] = []model.FileInfo{
		{Name: "a.txt", ID: "f1", Size: 10},
	}
	client.disk["/dst"] = nil
	client.transferErr = assert.AnError

	e := NewEngine(client, nil, nil, &fakeRecorder{}, nil)
	e.sleep = noSleep

	dst := &TargetDef{FilePath: "/dst", FileID: "root-id"}
	stats, err := e.Run(context.Background(), model.ShareInfo{}, SourceDef{FilePath: "/src"}, dst,
		Options{Strategy: model.StrategyIncremental, Speed: model.SpeedFast, TaskID: 1})

	require.NoError(t, err) // Run never surfaces a policy abort as a Go error
	assert.NotEmpty(t, stats.Errors)
	assert.Equal(t, model.TaskFailed, stats.Status())
	// The 3rd consecutive transfer-generic failure triggers abort: a 4th
	// attempt never happens.
	assert.Equal(t, 3, len(client.transferCalls))
}
