package detector

import (
	"sync"
	"time"
)

// nanosecondsPerTick is the 100ns granularity §3 specifies
// for File Event `when` values.
const nanosecondsPerTick = 100

// Clock hands out strictly increasing 100ns-tick timestamps, even when the
// wall clock's resolution is coarser than the tick rate or goes briefly
// backwards (NTP step). §4.C5: "if now <= last_event_time, use
// last_event_time + 1 tick." This is the mechanism that gives the §8
// invariant "locally originated events e1 emitted before e2: e1.when <
// e2.when" its strictness regardless of clock resolution.
type Clock struct {
	mu   sync.Mutex
	last int64
}

// NewClock returns a Clock with no prior timestamp.
func NewClock() *Clock { return &Clock{} }

// Next returns the next event timestamp, guaranteed to exceed every
// timestamp previously returned by this Clock.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano() / nanosecondsPerTick

	if now <= c.last {
		now = c.last + 1
	}

	c.last = now

	return now
}

// Observe records an externally-known timestamp (e.g. the `when` of a
// foreign event just merged) as a floor for future Next() calls, so that
// locally originated events never appear to have happened before a
// recently merged foreign event.
func (c *Clock) Observe(when int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if when > c.last {
		c.last = when
	}
}
