package replica

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing timestamps in Unix
// nanoseconds. It follows the wall clock but never falls
// behind a timestamp it has handed out or observed.
type Clock struct {
	lock *sync.Mutex
	last int64
	wall func() time.Time
}

// NewClock returns a clock driven by time.Now.
func NewClock() *Clock {
	return newClockAt(time.Now)
}

func newClockAt(wall func() time.Time) *Clock {

	return &Clock{
		lock: new(sync.Mutex),
		wall: wall,
	}
}

// Now returns the next timestamp.
func (c *Clock) Now() int64 {

	c.lock.Lock()
	defer c.lock.Unlock()

	ts := c.wall().UnixNano()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts

	return ts
}

// Observe moves the clock past ts, so that operations
// issued afterwards win against everything seen so far.
func (c *Clock) Observe(ts int64) {

	c.lock.Lock()
	defer c.lock.Unlock()

	if ts > c.last {
		c.last = ts
	}
}
