package engine

import "time"

// Clock abstracts time so that circuit breakers and samplers can be driven
// deterministically in tests. Production code uses [RealClock].
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock is a zero-value [Clock] backed by the [time] package.
type RealClock struct{}

// Now returns [time.Now].
func (RealClock) Now() time.Time { return time.Now() }

// Since returns [time.Since].
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// clockOrReal returns c, or [RealClock] when c is nil.
//
//nolint:ireturn // Clock is the abstraction
func clockOrReal(c Clock) Clock {
	if c == nil {
		return RealClock{}
	}

	return c
}
