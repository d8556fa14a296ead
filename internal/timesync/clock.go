// Package timesync keeps the pipeline's notion of time close to a
// trusted source without ever touching the host clock. All event and
// row timestamps flow through Clock so a skewed host still produces
// consistent records.
package timesync

import (
	"sync/atomic"
	"time"
)

// Clock is the wall clock plus a correction offset. The offset is the
// measured skew between the host clock and the time source; it is
// replaced, never accumulated, on each probe.
type Clock struct {
	offset atomic.Int64 // nanoseconds
}

func NewClock(offset time.Duration) *Clock {
	c := &Clock{}
	c.offset.Store(int64(offset))
	return c
}

// Now returns the corrected current time.
func (c *Clock) Now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

// SetOffset replaces the correction offset.
func (c *Clock) SetOffset(d time.Duration) {
	c.offset.Store(int64(d))
}

// Offset returns the current correction offset.
func (c *Clock) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}
