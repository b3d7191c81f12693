// Package diffsync implements the diff-and-apply core: given a source
// share and a target directory, it walks both trees and emits batched
// mkdir/transfer/delete operations against a driveclient.DriveClient,
// recording every operation through a store.TaskRecorder. Grounded on
// the teacher's internal/sync Engine/Planner/Executor split, collapsed
// to this system's single recursive walk since the provider performs
// the actual byte copy server-side — there is no local scan/baseline/
// conflict-merge layer to keep separate.
package diffsync

import (
	"encoding/json"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// SourceDef identifies the share being read from.
type SourceDef struct {
	SourceType string // "link" | "friend" | "group"
	SourceID   string
	FilePath   string
	ExtParams  json.RawMessage // provider-specific extra fields merged into transfer calls
}

// TargetDef identifies the destination directory inside the account's
// own drive. The engine never modifies it: syncWithoutHave uses the ID
// that Mkdir returns for each directory it creates, and an empty FileID
// makes the run start by creating FilePath itself.
type TargetDef struct {
	FilePath string
	FileID   string
}

// Options configures one run of the engine.
type Options struct {
	Strategy model.SyncStrategy
	Speed    model.TransferSpeed
	MaxDepth int // 0 means "use the default of 100"
	TaskID   int64
}

// Stats accumulates the counters and error log for one run, and is
// persisted verbatim (as model.TaskNum) into the SyncTask row on
// completion.
type Stats struct {
	FilesProcessed   int64
	FolderCreated    int64
	FilesTransferred int64
	FilesDeleted     int64
	FilesSkipped     int64
	Errors           []string
}

// TaskNum converts Stats to the persisted counter shape.
func (s *Stats) TaskNum() model.TaskNum {
	return model.TaskNum{
		FilesProcessed:   s.FilesProcessed,
		FolderCreated:    s.FolderCreated,
		FilesTransferred: s.FilesTransferred,
		FilesDeleted:     s.FilesDeleted,
		FilesSkipped:     s.FilesSkipped,
		Errors:           s.Errors,
	}
}

// Status reports the terminal SyncTask status implied by the current
// error log: completed iff no errors were collected, else failed, even
// if some files did transfer successfully.
func (s *Stats) Status() model.TaskStatus {
	if len(s.Errors) == 0 {
		return model.TaskCompleted
	}

	return model.TaskFailed
}

const defaultMaxDepth = 100

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return defaultMaxDepth
	}

	return o.MaxDepth
}

// canonicalKey is the map key used to match source and target entries:
// name+"/" for folders (so a folder never collides with a same-named
// file), name alone for files.
func canonicalKey(name string, isDir bool) string {
	if isDir {
		return name + "/"
	}

	return name
}

func indexByKey(items []model.FileInfo) map[string]model.FileInfo {
	m := make(map[string]model.FileInfo, len(items))
	for _, it := range items {
		m[canonicalKey(it.Name, it.IsDir)] = it
	}

	return m
}
