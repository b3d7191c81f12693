package errorpolicy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
)

func TestDecideRetriesConflictUntilCapThenAborts(t *testing.T) {
	p := New()

	for i := 0; i < conflictCap-1; i++ {
		action, sleep := p.Decide(driveclient.ErrProviderConflict, false)
		assert.Equal(t, ActionRetry, action)
		assert.Equal(t, conflictSleep, sleep)
	}

	action, _ := p.Decide(driveclient.ErrProviderConflict, false)
	assert.Equal(t, ActionAbort, action)
}

func TestDecideRetriesGenericTransferErrorUntilCapThenAborts(t *testing.T) {
	p := New()
	generic := errors.New("transfer: unexpected provider response")

	for i := 0; i < transferCap-1; i++ {
		action, sleep := p.Decide(generic, false)
		assert.Equal(t, ActionRetry, action)
		assert.Equal(t, transferSleep, sleep)
	}

	action, _ := p.Decide(generic, false)
	assert.Equal(t, ActionAbort, action)
}

func TestDecideNetworkErrorsCapIndependentlyOfTransferStreak(t *testing.T) {
	p := New()

	for i := 0; i < networkCap-1; i++ {
		action, sleep := p.Decide(driveclient.ErrNetwork, false)
		assert.Equal(t, ActionRetry, action)
		assert.Equal(t, networkSleep, sleep)
	}

	action, _ := p.Decide(driveclient.ErrNetwork, false)
	assert.Equal(t, ActionAbort, action)
}

func TestDecideRateLimitClassifiesAsNetwork(t *testing.T) {
	p := New()

	action, sleep := p.Decide(driveclient.ErrRateLimit, false)
	assert.Equal(t, ActionRetry, action)
	assert.Equal(t, networkSleep, sleep)
}

func TestDecideDeleteFailureAlwaysSkipsRegardlessOfError(t *testing.T) {
	p := New()

	action, sleep := p.Decide(driveclient.ErrNetwork, true)
	assert.Equal(t, ActionSkip, action)
	assert.Equal(t, time.Duration(0), sleep)

	// Skip never advances any streak, so repeating does not abort.
	for i := 0; i < 10; i++ {
		action, _ := p.Decide(errors.New("delete failed"), true)
		assert.Equal(t, ActionSkip, action)
	}
}

func TestResetClearsStreaksButNotGlobalTotal(t *testing.T) {
	p := New()

	p.Decide(driveclient.ErrProviderConflict, false)
	p.Decide(driveclient.ErrProviderConflict, false)
	p.Reset()

	// Streak reset: two more conflicts should not yet abort (cap is 3).
	action, _ := p.Decide(driveclient.ErrProviderConflict, false)
	assert.Equal(t, ActionRetry, action)
	action, _ = p.Decide(driveclient.ErrProviderConflict, false)
	assert.Equal(t, ActionRetry, action)

	// Global total survives Reset: this fifth error aborts with a streak of 1.
	p.Reset()
	action, _ = p.Decide(driveclient.ErrProviderConflict, false)
	assert.Equal(t, ActionAbort, action)
}

func TestDecideAbortsOnGlobalCapAcrossMixedClasses(t *testing.T) {
	p := New()

	// 4 distinct non-conflict, non-network errors keep each per-class
	// streak under its own cap but the global total climbs every call.
	generic := errors.New("misc transient error")

	for i := 0; i < globalErrorCap-1; i++ {
		p.Reset() // keep per-class streaks from capping before the global cap does
		action, _ := p.Decide(generic, false)
		assert.NotEqual(t, ActionAbort, action)
	}

	action, _ := p.Decide(generic, false)
	assert.Equal(t, ActionAbort, action)
}

func TestClassifyAPIErrorWithProviderConflictCode(t *testing.T) {
	p := New()
	apiErr := &driveclient.APIError{Code: driveclient.CodeProviderConflict, Message: "name exists"}

	action, sleep := p.Decide(apiErr, false)
	assert.Equal(t, ActionRetry, action)
	assert.Equal(t, conflictSleep, sleep)
}
