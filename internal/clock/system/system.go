// Package system provides crawler.Clock implementations.
package system

import "time"

// Clock reads the wall clock in UTC, the zone generated_at stamps use.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. It pins generated_at when an index
// must be reproducible.
type Fixed struct {
	At time.Time
}

// Now returns f.At in UTC.
func (f Fixed) Now() time.Time {
	return f.At.UTC()
}
