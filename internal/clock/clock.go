// Package clock abstracts wall-clock access so time-sensitive logic stays
// deterministic in tests.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed struct {
	At time.Time
}

// Now implements Clock.
func (f Fixed) Now() time.Time { return f.At }
