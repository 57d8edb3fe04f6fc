package resolver

import "sync/atomic"

// Clock hands out strictly increasing sequence numbers. Fixture events and
// test results are stamped from the same clock so a run has one total order.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
