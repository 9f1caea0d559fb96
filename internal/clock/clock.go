// Package clock lets services and handlers take the current instant as a dependency.
package clock

import "time"

// Clock returns the reference instant used for date partitioning and timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewSystem returns a clock backed by time.Now in the host's local zone, so
// "today" is the host's calendar day.
func NewSystem() Clock {
	return systemClock{loc: time.Local}
}

// NewSystemIn returns a clock backed by time.Now in loc. A nil loc means the
// host's local zone.
func NewSystemIn(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock pinned to t. Used by tests and the seed tool.
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Func adapts a function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }
