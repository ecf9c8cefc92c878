// Package frontier computes the set of work units not yet covered and
// samples the next unit to attempt.
package frontier

import (
	"time"

	"github.com/geopop/harvester/internal/harvest"
)

// Calendar generates the full daily range [epoch, today] for the timeline
// domain. The range is never materialized as stored state; it is rebuilt
// from the clock on every call so restarts and long-running processes
// always see the current upper bound.
type Calendar struct {
	epoch time.Time
	clock harvest.Clock
}

// NewCalendar builds a Calendar. The epoch is truncated to a UTC date.
func NewCalendar(epoch time.Time, clock harvest.Clock) *Calendar {
	return &Calendar{epoch: harvest.DateOf(epoch), clock: clock}
}

// Epoch returns the first date of the range.
func (c *Calendar) Epoch() time.Time { return c.epoch }

// Today returns the last date of the range.
func (c *Calendar) Today() time.Time { return harvest.DateOf(c.clock.Now()) }

// Contains reports whether d falls inside [epoch, today]. Constant time;
// use this instead of scanning the range when only membership matters.
func (c *Calendar) Contains(d time.Time) bool {
	d = harvest.DateOf(d)
	return !d.Before(c.epoch) && !d.After(c.Today())
}

// Missing returns the dates of [epoch, today] absent from covered, in
// chronological order.
func (c *Calendar) Missing(covered harvest.DateSet) []time.Time {
	today := c.Today()
	var missing []time.Time
	for d := c.epoch; !d.After(today); d = d.AddDate(0, 0, 1) {
		if _, ok := covered[d]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
