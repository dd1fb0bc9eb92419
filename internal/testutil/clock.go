package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a SteppingClock reports.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SteppingClock is a deterministic time source for tests.
//
// Every call to Now advances by a fixed step, so rows written one after
// another get distinct, increasing timestamps and golden output is stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewSteppingClock returns a clock starting at Epoch that advances one
// millisecond per call.
func NewSteppingClock() *SteppingClock {
	return &SteppingClock{start: Epoch, step: time.Millisecond}
}

// Now returns the next instant. The first call returns the start time.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Calls reports how many instants have been handed out.
func (c *SteppingClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns the start time.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
