// Package errorpolicy implements the adaptive error policy the
// diff-and-apply core consults after every batched transfer or delete
// failure: retry-with-sleep, skip-and-continue, or abort. Grounded on
// the teacher's executor.go classifyError/ErrorTier three-tier shape,
// extended to the four-action table and per-class/global caps this
// system's component design requires. Per the redesign note, classification
// switches on the structured driveclient.ErrorCode every adapter attaches
// to its errors, not on substring matching of provider error text — the
// thresholds and pauses themselves are kept exact.
package errorpolicy

import (
	"errors"
	"time"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
)

// Action is the decision the policy returns for one error occurrence.
type Action int

const (
	// ActionContinue logs the error and proceeds without sleeping.
	ActionContinue Action = iota
	// ActionRetry sleeps for the returned duration, then the caller
	// retries the same batch.
	ActionRetry
	// ActionSkip drops this error and continues without retrying the
	// batch (used for delete failures).
	ActionSkip
	// ActionAbort stops the job; the caller finalizes the task as failed.
	ActionAbort
)

// class buckets one error occurrence into the decision table's rows.
type class int

const (
	classConflict class = iota
	classTransferGeneric
	classDeleteFailure
	classNetwork
	classOther
)

// Policy tracks the consecutive/total error counters the decision table
// requires across one running job. Not safe for concurrent use — a job
// is single-threaded per the component design's concurrency model.
type Policy struct {
	conflictStreak int
	transferStreak int
	networkTotal   int
	globalTotal    int
}

// New returns a Policy with zeroed counters, ready for one job.
func New() *Policy {
	return &Policy{}
}

// Decide classifies err (from a batched transfer or delete call) and
// returns the action to take plus, for ActionRetry, the sleep duration.
// isDelete distinguishes a delete-class call from a transfer-class call,
// since "batch delete failed" maps to skip-and-continue while the same
// underlying network error on a transfer call maps to retry.
func (p *Policy) Decide(err error, isDelete bool) (Action, time.Duration) {
	p.globalTotal++

	c := classify(err, isDelete)
	if c == classDeleteFailure {
		return ActionSkip, 0
	}

	if p.globalTotal >= globalErrorCap {
		return ActionAbort, 0
	}

	switch c {
	case classConflict:
		p.conflictStreak++
		if p.conflictStreak >= conflictCap {
			return ActionAbort, 0
		}

		return ActionRetry, conflictSleep
	case classTransferGeneric:
		p.transferStreak++
		if p.transferStreak >= transferCap {
			return ActionAbort, 0
		}

		return ActionRetry, transferSleep
	case classDeleteFailure:
		return ActionSkip, 0
	case classNetwork:
		p.networkTotal++
		if p.networkTotal >= networkCap {
			return ActionAbort, 0
		}

		return ActionRetry, networkSleep
	default:
		return ActionContinue, 0
	}
}

// Reset clears the conflict/transfer consecutive-error streaks — called
// after a batch that succeeds, so an isolated earlier failure does not
// count toward a later unrelated streak.
func (p *Policy) Reset() {
	p.conflictStreak = 0
	p.transferStreak = 0
}

func classify(err error, isDelete bool) class {
	if isDelete {
		return classDeleteFailure
	}

	var apiErr *driveclient.APIError

	switch {
	case errors.As(err, &apiErr) && apiErr.Code == driveclient.CodeProviderConflict:
		return classConflict
	case errors.Is(err, driveclient.ErrProviderConflict):
		return classConflict
	case errors.Is(err, driveclient.ErrNetwork):
		return classNetwork
	case errors.Is(err, driveclient.ErrRateLimit):
		return classNetwork
	case err != nil:
		return classTransferGeneric
	default:
		return classOther
	}
}

// Decision table constants — thresholds and pauses kept exact per the
// component design: 30s/30s/skip/10s sleeps, 3/3/-/2 per-class caps, 5
// total errors aborts regardless of class.
const (
	conflictSleep  = 30 * time.Second
	conflictCap    = 3
	transferSleep  = 30 * time.Second
	transferCap    = 3
	networkSleep   = 10 * time.Second
	networkCap     = 2
	globalErrorCap = 5
)
