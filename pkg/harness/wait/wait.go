// Package wait re-evaluates an assertion until it holds or a timeout
// elapses, absorbing the lag between a UI action and the state it causes.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/thesyncim/confcheck/pkg/harness/verify"
	"github.com/thesyncim/confcheck/pkg/internal/clock"
)

const (
	// DefaultTimeout bounds one For call when no Timeout option is given.
	DefaultTimeout = 10 * time.Second
	// DefaultInterval is the pause between two evaluations.
	DefaultInterval = 250 * time.Millisecond
)

// TimeoutError is returned when the check kept failing for the whole timeout.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	Last     error // last assertion failure observed
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %v (%d attempts): %v", e.Timeout, e.Attempts, e.Last)
}

// Unwrap exposes the last assertion failure to errors.As.
func (e *TimeoutError) Unwrap() error {
	return e.Last
}

type options struct {
	timeout  time.Duration
	interval time.Duration
	clock    clock.Clock
}

// Option configures For.
type Option func(*options)

// Timeout sets the total time budget.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Interval sets the pause between evaluations.
func Interval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithClock replaces the time source. Tests use clock.Mock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// For calls check until it returns nil.
//
// Only *verify.AssertionError failures are retried; any other error is
// returned as soon as it is seen. Once the timeout has elapsed the last
// assertion failure is returned wrapped in a *TimeoutError. Pauses are
// capped at the time left, so the last check starts no later than the
// deadline. With instant checks a failing wait returns after exactly the
// timeout; a slow check overruns it by at most its own duration.
func For(ctx context.Context, check func(context.Context) error, opts ...Option) error {
	o := options{
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
		clock:    clock.Monotonic{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	deadline := o.clock.Now().Add(o.timeout)
	attempts := 0
	for {
		attempts++
		err := check(ctx)
		if err == nil {
			return nil
		}
		if !verify.IsAssertion(err) {
			return err
		}
		left := deadline.Sub(o.clock.Now())
		if left <= 0 {
			return &TimeoutError{Timeout: o.timeout, Attempts: attempts, Last: err}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait cancelled after %d attempts: %w", attempts, ctx.Err())
		case <-o.clock.After(min(o.interval, left)):
		}
	}
}
