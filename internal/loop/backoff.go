package loop

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Backoff produces jittered exponential delays for the failure path of
// the crawl loop. The floor guarantees that even instantaneous failures
// never busy-spin the loop; Reset is called on every success.
type Backoff struct {
	floor   time.Duration
	max     time.Duration
	attempt int
}

// NewBackoff builds a Backoff with the given floor and ceiling.
func NewBackoff(floor, max time.Duration) *Backoff {
	if floor <= 0 {
		floor = time.Second
	}
	if max < floor {
		max = floor
	}
	return &Backoff{floor: floor, max: max}
}

// Next returns the wait duration for the current failure streak and
// advances the streak.
func (b *Backoff) Next() time.Duration {
	delay := float64(b.floor) * math.Pow(2, float64(b.attempt))
	if delay > float64(b.max) {
		delay = float64(b.max)
	}
	b.attempt++

	half := time.Duration(delay / 2)
	wait := half + randomJitter(half)
	if wait < b.floor {
		wait = b.floor
	}
	return wait
}

// Reset clears the failure streak.
func (b *Backoff) Reset() {
	b.attempt = 0
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
