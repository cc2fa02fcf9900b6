// Package clock is the time source of the metering engine. Request log
// timestamps, ledger entry creation times, admin session expiry and the
// day windows of every usage rollup all read it, so tests drive the whole
// pipeline with Fake.
package clock

import (
	"sync"
	"time"
)

// Real reads the wall clock. Times are returned in UTC because every
// store persists UTC.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a controllable clock for tests. Advancing it between charges
// separates ledger entries by creation time and spreads log rows over days.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set jumps to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t.UTC()
}

// Advance moves the clock forward by d and returns the new time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	return f.current
}
