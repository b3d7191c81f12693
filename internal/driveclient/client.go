package driveclient

import (
	"context"
	"encoding/json"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// ListOptions selects the directory a listing request reads. The Baidu
// and Quark adapters' ListDisk and link-share ListShare each make one
// request per call and do not ask for further pages; PageSize is not
// read by either adapter. Only Baidu's friend/group ListShare pages
// until the provider reports no more entries.
type ListOptions struct {
	Path     string
	PageSize int
}

// TransferRequest batches one or more source entries to copy into a
// destination directory in a single provider call, per the component
// design's batched-transfer contract: FileIDs and FilesExtInfo must be
// index-aligned — FilesExtInfo[i] is the opaque extension blob for
// FileIDs[i], forwarded verbatim from the originating ListShare/ListDisk
// call.
type TransferRequest struct {
	SrcShare      model.ShareInfo
	FileIDs       []string
	FilesExtInfo  []json.RawMessage
	DstPath       string
	DstID         string
}

// TransferResult reports the provider's per-file outcome for one
// TransferRequest, aligned with the request's FileIDs by index.
type TransferResult struct {
	Succeeded []bool
	Errors    []error
}

// DriveClient is the capability set every provider adapter implements.
// Operations are intentionally few and coarse: pagination, retry, and
// auth refresh are internal to the adapter and never leak into this
// interface.
type DriveClient interface {
	// GetUserInfo returns the authenticated account's profile and quota.
	GetUserInfo(ctx context.Context) (*model.DriveAccount, error)

	// ListDisk lists the authenticated account's own drive at opts.Path.
	ListDisk(ctx context.Context, opts ListOptions) ([]model.FileInfo, error)

	// ListShare lists a resolved share's contents at opts.Path, relative
	// to the share root. Ordering is stable across repeated calls for an
	// unchanged share (order-stability invariant).
	ListShare(ctx context.Context, share model.ShareInfo, opts ListOptions) ([]model.FileInfo, error)

	// ListShareInfo resolves a raw share link/password into a ShareInfo,
	// validating the share is still live.
	ListShareInfo(ctx context.Context, rawLink, password string) (*model.ShareInfo, error)

	// ListMyShares pages through shares the authenticated account itself
	// has created — the source_type=local case of spec's
	// list_share_info operation — for maintenance's expiry sweeps.
	ListMyShares(ctx context.Context, page, size int) ([]model.ShareInfo, error)

	// Mkdir creates a directory at path in the authenticated account's
	// own drive, creating intermediate directories as needed, and
	// returns its ID. Idempotent: an existing directory is not an error.
	Mkdir(ctx context.Context, path string) (string, error)

	// Remove deletes the entry at path from the authenticated account's
	// own drive. A 404-equivalent response is treated as success.
	Remove(ctx context.Context, path string) error

	// Transfer copies one or more entries from a share into the
	// authenticated account's own drive in a single batched call.
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// CreateShare publishes a share link for a path in the authenticated
	// account's own drive.
	CreateShare(ctx context.Context, path string) (*model.ShareInfo, error)

	// CancelShare revokes a previously created share.
	CancelShare(ctx context.Context, shareID string) error
}
