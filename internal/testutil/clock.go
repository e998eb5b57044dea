// Package testutil provides configurable test fakes for the breaker's
// injectable collaborators (Clock, RNG), mirroring the configurable-fake
// style used for FakeProvider-style test doubles in the rest of the
// codebase this package was adapted from.
package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually-advanced breaker.Clock. The zero value starts
// at the zero time.Time (January 1, year 1, UTC); use NewFakeClock or Set
// to pick a more convenient start time.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock starting at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the fake clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
