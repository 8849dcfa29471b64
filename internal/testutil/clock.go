package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a StepClock reports.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic clock for tests. Every call to Now advances it
// by Step, so two reads never return the same instant.
//
// Thread-safe: all methods lock an internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewStepClock returns a clock starting at Epoch that advances one
// millisecond per read.
func NewStepClock() *StepClock {
	return &StepClock{now: Epoch, Step: time.Millisecond}
}

// Now advances the clock and returns the new instant.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}

// Freeze stops the clock from advancing, so the next reads collide.
func (c *StepClock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Step = 0
}
