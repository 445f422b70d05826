// Package system provides the wall clock used to stamp published catalogs.
package system

import "time"

// Clock implements catalog.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to milliseconds.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
