package scheduler

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, expr string) cron.Schedule {
	t.Helper()
	sched, err := parseSchedule(expr)
	require.NoError(t, err)
	return sched
}

func TestPrevAndNextFireFindsRecentFire(t *testing.T) {
	sched := mustParse(t, "*/5 * * * *")

	now := time.Date(2026, 7, 29, 10, 7, 0, 0, time.UTC)
	prev, next, found := prevAndNextFire(sched, now)

	require.True(t, found)
	assert.Equal(t, time.Date(2026, 7, 29, 10, 5, 0, 0, time.UTC), prev)
	assert.Equal(t, time.Date(2026, 7, 29, 10, 10, 0, 0, time.UTC), next)
}

func TestPrevAndNextFireNotFoundBeyondLookback(t *testing.T) {
	// Fires once a year — well outside the 48h lookback window.
	sched := mustParse(t, "0 0 1 1 *")

	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	_, _, found := prevAndNextFire(sched, now)

	assert.False(t, found)
}

func TestEligibleWithinWindowAndNeverRun(t *testing.T) {
	sched := mustParse(t, "*/5 * * * *")
	now := time.Date(2026, 7, 29, 10, 6, 0, 0, time.UTC)

	assert.True(t, eligible(sched, nil, now))
}

func TestEligibleOutsideExecutionWindow(t *testing.T) {
	// Hourly cron: the window after each fire is much shorter than the
	// gap between fires, so checking well past the fire is unambiguous.
	sched := mustParse(t, "0 * * * *")

	withinWindow := time.Date(2026, 7, 29, 10, 3, 0, 0, time.UTC)
	pastWindow := time.Date(2026, 7, 29, 10, 10, 0, 0, time.UTC)

	assert.True(t, eligible(sched, nil, withinWindow))
	assert.False(t, eligible(sched, nil, pastWindow))
}

func TestEligibleAlreadyRunSinceLastFire(t *testing.T) {
	sched := mustParse(t, "*/5 * * * *")
	now := time.Date(2026, 7, 29, 10, 6, 0, 0, time.UTC)
	fireInstant := time.Date(2026, 7, 29, 10, 5, 0, 0, time.UTC)

	assert.False(t, eligible(sched, &fireInstant, now))
}

func TestEligibleLastSyncBeforeFireRunsAgain(t *testing.T) {
	sched := mustParse(t, "*/5 * * * *")
	now := time.Date(2026, 7, 29, 10, 6, 0, 0, time.UTC)
	priorFire := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)

	assert.True(t, eligible(sched, &priorFire, now))
}
