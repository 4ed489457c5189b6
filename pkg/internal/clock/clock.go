// Package clock provides the time source used by polling and rate code.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for obtaining monotonic time and waiting on it.
// This abstraction allows for deterministic testing of polling code.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically increasing time values.
	Now() time.Time

	// After returns a channel that delivers the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Monotonic is a Clock backed by the system's monotonic clock.
type Monotonic struct{}

// Now returns the current system time with monotonic clock reading.
func (Monotonic) Now() time.Time {
	return time.Now()
}

// After waits on a real timer.
func (Monotonic) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Mock is a Clock for tests. After advances the mock time by d and fires
// immediately, so polling loops run without real sleeps.
type Mock struct {
	mu      sync.Mutex
	current time.Time
	waits   []time.Duration
}

// NewMock creates a new Mock initialized to the given time.
// If t is zero, it initializes to a reasonable default start time.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0) // 2001-09-09
	}
	return &Mock{current: t}
}

// Now returns the mock clock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// After advances the clock by d and returns an already-fired channel.
func (m *Mock) After(d time.Duration) <-chan time.Time {
	m.Advance(d)
	m.mu.Lock()
	m.waits = append(m.waits, d)
	now := m.current
	m.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward by the given duration.
// Panics if d is negative to maintain monotonicity.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// Waits returns every duration passed to After, in call order.
func (m *Mock) Waits() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.waits...)
}
