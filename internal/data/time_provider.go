package data

import (
	"sync"
	"time"
)

// TimeProvider supplies timestamps for job records and can be replaced in tests.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider returns the wall clock in UTC truncated to microseconds,
// the resolution every store backend can round-trip.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FixedTimeProvider implements TimeProvider with a settable time for testing.
type FixedTimeProvider struct {
	mu        sync.Mutex
	fixedTime time.Time
	step      time.Duration
}

// NewFixedTimeProvider creates a new FixedTimeProvider with the given time.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{fixedTime: t}
}

// NewSteppingTimeProvider returns a provider that advances by step after every Now call.
func NewSteppingTimeProvider(start time.Time, step time.Duration) *FixedTimeProvider {
	return &FixedTimeProvider{fixedTime: start, step: step}
}

// Now returns the fixed time.
func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.fixedTime
	f.fixedTime = f.fixedTime.Add(f.step)
	return now
}

// SetTime updates the fixed time.
func (f *FixedTimeProvider) SetTime(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedTime = t
}

// AddTime adds a duration to the current fixed time.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedTime = f.fixedTime.Add(d)
}
