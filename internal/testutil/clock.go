package testutil

import (
	"sync"
	"time"
)

// StepClock is a wall clock for tests that advances by a fixed step on
// every reading. Passed as runner.WithNow it makes every duration in a
// report a multiple of the step.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewStepClock creates a clock whose first reading is start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, step: step}
}

// Now returns the next reading.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many readings were taken.
func (c *StepClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset makes the next reading start again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
