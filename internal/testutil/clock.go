// Package testutil carries small helpers shared by the vault test suites.
package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock for deterministic rate-limit and
// retention tests. The zero value is not usable; call NewClock.
//
// Safe for concurrent reads; tests advance it between engine calls.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock pinned to a fixed UTC start time.
func NewClock() *Clock {
	return &Clock{
		current: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Now returns the current reading. Its method value satisfies the engine's
// clock hook: Options{Clock: clock.Now}.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}

// Tick advances the clock by one second and returns the new reading.
// Successive writes get distinct timestamps without real sleeping.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(time.Second)

	return c.current
}
