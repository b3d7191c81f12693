// Package model defines the domain entities shared across the store,
// provider adapters, and diff-and-apply core: drive accounts, sync
// configurations, rule templates, and the task/task-item audit trail.
package model

import (
	"encoding/json"
	"time"
)

// ProviderType identifies a cloud-drive backend.
type ProviderType string

const (
	ProviderBaidu ProviderType = "baidu"
	ProviderQuark ProviderType = "quark"
)

// IsValid reports whether p is one of the known provider types.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderBaidu, ProviderQuark:
		return true
	default:
		return false
	}
}

// SyncStrategy selects how the diff-and-apply core reconciles a target
// directory against a share.
type SyncStrategy string

const (
	StrategyIncremental SyncStrategy = "incremental"
	StrategyFull         SyncStrategy = "full"
	StrategyOverwrite    SyncStrategy = "overwrite"
)

func (s SyncStrategy) IsValid() bool {
	switch s {
	case StrategyIncremental, StrategyFull, StrategyOverwrite:
		return true
	default:
		return false
	}
}

// TransferSpeed selects the inter-batch pacing the executor applies.
type TransferSpeed string

const (
	SpeedSlow   TransferSpeed = "slow"
	SpeedNormal TransferSpeed = "normal"
	SpeedFast   TransferSpeed = "fast"
)

// SleepAfterTransfer returns the pause applied after a batched transfer
// call at this speed, per the component design's speed-control table.
func (s TransferSpeed) SleepAfterTransfer() time.Duration {
	switch s {
	case SpeedSlow:
		return 2 * time.Second
	case SpeedFast:
		return 0
	default: // SpeedNormal and unrecognized values fall back to normal
		return 1 * time.Second
	}
}

// SleepAfterDelete returns the pause applied after a batched delete call
// at this speed. Slow speed sleeps longer after a delete than after a
// transfer; normal and fast do not distinguish the two.
func (s TransferSpeed) SleepAfterDelete() time.Duration {
	switch s {
	case SpeedSlow:
		return 3 * time.Second
	case SpeedFast:
		return 0
	default:
		return 1 * time.Second
	}
}

// DriveAccount is a credentialed identity against a provider, used to
// authenticate DriveClient calls on behalf of the sync engine.
type DriveAccount struct {
	ID        int64
	Provider  ProviderType
	Username  string
	Cookies   string // opaque auth blob; never logged verbatim
	IsValid   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncConfig binds a share to a destination path under one account,
// with the strategy, speed, and optional cron schedule to apply it.
type SyncConfig struct {
	ID           int64
	AccountID    int64
	Name         string
	SrcMetaRaw   json.RawMessage
	DstMetaRaw   json.RawMessage
	RuleID       *int64
	Strategy     SyncStrategy
	Speed        TransferSpeed
	Enabled      bool
	Cron         string // empty means "run once on demand only"
	EndTime      *time.Time
	LastSync     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SrcMeta is the parsed form of SyncConfig.SrcMetaRaw: the share being
// read from. source_type selects how the adapter resolves source_id:
// "link" is a public share link/password (ShareID/SharePwdID/ShareStoken
// hold already-resolved credentials, supplied when the config is created
// and never re-resolved by a sync), while "friend"/"group"
// carry no pre-resolved share credentials at all — source_id is the
// sharer's uk or the group's gid, and the adapter walks the relationship
// share list itself on every ListShare call. ExtParams is the base dict
// the diff engine merges under every transferred file's file_ext, per
// spec.md §4.3.1.
type SrcMeta struct {
	SourceType  string          `json:"source_type"`
	SourceID    string          `json:"source_id,omitempty"`
	ExtParams   json.RawMessage `json:"ext_params,omitempty"`
	ShareID     string          `json:"share_id,omitempty"`
	SharePwdID  string          `json:"share_pwd_id,omitempty"`
	ShareStoken string          `json:"share_stoken,omitempty"`
	SourcePath  string          `json:"source_path"`
}

// DstMeta is the parsed form of SyncConfig.DstMetaRaw: the destination
// directory inside the account's own drive.
type DstMeta struct {
	TargetPath string `json:"target_path"`
	TargetID   string `json:"target_id,omitempty"`
}

// ParseSrcMeta parses SyncConfig.SrcMetaRaw. Called at the boundary where
// a SyncConfig is loaded from storage, never propagated as raw JSON into
// the diff-and-apply core.
func (c *SyncConfig) ParseSrcMeta() (SrcMeta, error) {
	var m SrcMeta
	if len(c.SrcMetaRaw) == 0 {
		return m, nil
	}
	err := json.Unmarshal(c.SrcMetaRaw, &m)
	return m, err
}

// ParseDstMeta parses SyncConfig.DstMetaRaw.
func (c *SyncConfig) ParseDstMeta() (DstMeta, error) {
	var m DstMeta
	if len(c.DstMetaRaw) == 0 {
		return m, nil
	}
	err := json.Unmarshal(c.DstMetaRaw, &m)
	return m, err
}

// RuleTarget names the field an exclusion/rename rule matches against.
type RuleTarget string

const (
	TargetName      RuleTarget = "name"
	TargetPath      RuleTarget = "path"
	TargetExtension RuleTarget = "extension"
)

// RuleMode selects the string-matching mode of an exclusion rule.
type RuleMode string

const (
	ModeContains   RuleMode = "contains"
	ModeStartsWith RuleMode = "starts_with"
	ModeEndsWith   RuleMode = "ends_with"
	ModeExact      RuleMode = "exact"
	ModeRegex      RuleMode = "regex"
)

// ItemType restricts an exclusion rule to files, directories, or both.
type ItemType string

const (
	ItemAny    ItemType = "any"
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
)

// ExclusionRule is one entry of a RuleConfig's exclude list.
type ExclusionRule struct {
	Target        RuleTarget `json:"target"`
	Mode          RuleMode   `json:"mode"`
	Pattern       string     `json:"pattern"`
	ItemType      ItemType   `json:"item_type"`
	CaseSensitive bool       `json:"case_sensitive"`
}

// RenameRuleSpec is one entry of a RuleConfig's rename list: a regex
// substitution applied before the equality comparison. TargetScope picks
// what the pattern matches against: TargetName substitutes within the
// file's base name only, TargetPath substitutes across the full relative
// path (letting a rule rewrite an intermediate directory segment).
// TargetExtension is not meaningful here and is rejected by NewRenameRules.
type RenameRuleSpec struct {
	Pattern       string     `json:"match_regex"`
	Replacement   string     `json:"replace_string"`
	TargetScope   RuleTarget `json:"target_scope"`
	CaseSensitive bool       `json:"case_sensitive"`
}

// RuleConfig is the parsed form of RuleTemplate.RuleConfigRaw.
type RuleConfig struct {
	Exclusions []ExclusionRule  `json:"exclusions"`
	Renames    []RenameRuleSpec `json:"renames"`
}

// RuleTemplate is a named, reusable RuleConfig.
type RuleTemplate struct {
	ID            int64
	Name          string
	RuleConfigRaw json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ParseRuleConfig parses RuleTemplate.RuleConfigRaw.
func (t *RuleTemplate) ParseRuleConfig() (RuleConfig, error) {
	var c RuleConfig
	if len(t.RuleConfigRaw) == 0 {
		return c, nil
	}
	err := json.Unmarshal(t.RuleConfigRaw, &c)
	return c, err
}

// TaskStatus is the lifecycle state of a SyncTask.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskNum holds the per-task counters reported in SyncTask.TaskNumRaw.
type TaskNum struct {
	FilesProcessed   int64    `json:"files_processed"`
	FolderCreated    int64    `json:"folder_created"`
	FilesTransferred int64    `json:"files_transferred"`
	FilesDeleted     int64    `json:"files_deleted"`
	FilesSkipped     int64    `json:"files_skipped"`
	Errors           []string `json:"errors"`
}

// SyncTask is one execution cycle of a SyncConfig: the audit header row.
type SyncTask struct {
	ID         int64
	ConfigID   int64
	Status     TaskStatus
	TaskNumRaw json.RawMessage
	ErrMsg     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ParseTaskNum parses SyncTask.TaskNumRaw.
func (t *SyncTask) ParseTaskNum() (TaskNum, error) {
	var n TaskNum
	if len(t.TaskNumRaw) == 0 {
		return n, nil
	}
	err := json.Unmarshal(t.TaskNumRaw, &n)
	return n, err
}

// ItemOpType is the kind of provider operation a SyncTaskItem records.
// Skipped files are never recorded, per the task recorder's volume
// control, so there is no "skip" variant here.
type ItemOpType string

const (
	OpCopy   ItemOpType = "copy"
	OpDelete ItemOpType = "delete"
	OpCreate ItemOpType = "create"
)

// ItemStatus is the terminal result of one SyncTaskItem.
type ItemStatus string

const (
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

// SyncTaskItem is one per-operation audit row within a SyncTask.
type SyncTaskItem struct {
	ID        int64
	TaskID    int64
	Type      ItemOpType
	SrcPath   string
	DstPath   string
	FileName  string
	FileSize  int64
	Status    ItemStatus
	ErrMsg    string
	CreatedAt time.Time
}

// FileInfo is a provider-neutral listing entry returned by DriveClient.
// FileExt is forwarded verbatim between ListShare/ListDisk and Transfer;
// the engine never unmarshals it.
type FileInfo struct {
	ID       string
	Name     string
	Path     string
	IsDir    bool
	Size     int64
	Mtime    time.Time
	FileExt  json.RawMessage
}

// ShareInfo describes a share link: either one being read from (as
// resolved by ListShareInfo and consumed by ListShare/Transfer) or one
// the account itself has created (as returned by ListMyShares and
// consumed by CancelShare). Attributes mirror spec's ShareInfo entity;
// Stoken is an adapter-internal addition — Quark's share API resolves a
// link in two phases (pwd_id, then a stoken scoped to that pwd_id), and
// this is the natural place for the second phase's result to live
// alongside the first, since both travel together through ListShare and
// Transfer calls for the same share.
type ShareInfo struct {
	Title       string
	SourceType  string // "link" | "friend" | "group" — selects how ListShare resolves a path
	SourceID    string // meaning depends on SourceType: share url/id (link), sharer's uk (friend), gid (group)
	ShareID     string
	PwdID       string
	Stoken      string
	URL         string
	Password    string
	ExpiredType int // normalized day count: 0=forever, 1, 7, 30, 365
	ExpiredAt   *time.Time
	ExpiredLeft int // days remaining; negative means already expired
	ViewCount   int64
	AuditStatus int
	Status      int
	FileID      string
	FileSize    int64
	RootPath    string // path_info: the share's root path
	Expired     bool
}
