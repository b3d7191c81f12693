package maintenance

import (
	"math/rand"
	"time"
)

// randomBetween returns a uniformly random duration in [min, max), used
// to stagger provider calls per spec.md §4.6's ranges rather than
// hammering every account/page at a fixed interval.
func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	return min + time.Duration(rand.Int63n(int64(max-min)))
}
