package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both the five-field standard form (minute hour dom
// month dow) and an optional leading seconds field, per spec.md §6
// ("standard 5- or 6-field cron"). SecondOptional lets the same parser
// instance handle whichever field count an operator authored.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// maxLookback bounds how far back prevFire search walks before giving
// up. A SyncConfig whose cron hasn't fired in this window is simply
// never eligible this tick — generous enough for a daily cron, cheap
// enough that a minutely cron only costs a few thousand Schedule.Next
// calls per dispatcher tick.
const maxLookback = 48 * time.Hour

// parseSchedule parses a cron expression with cronParser: five fields,
// or six with a leading seconds field.
func parseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// prevAndNextFire computes prev_fire (the latest scheduled instant ≤
// now) and next_fire (the earliest scheduled instant > now), per
// spec.md §4.6 step 2c. cron.Schedule only exposes Next (forward-only),
// so prev_fire is found by walking fire instants forward from
// now-maxLookback until one exceeds now. prevFound is false if no fire
// occurred within maxLookback — the caller treats that as "not
// eligible this tick" rather than guessing.
func prevAndNextFire(schedule cron.Schedule, now time.Time) (prevFire, nextFire time.Time, prevFound bool) {
	nextFire = schedule.Next(now)

	t := now.Add(-maxLookback)

	for {
		next := schedule.Next(t)
		if next.After(now) {
			break
		}

		prevFire = next
		prevFound = true
		t = next
	}

	return prevFire, nextFire, prevFound
}
