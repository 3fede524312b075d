package fiberevent

import (
	"time"
)

// Deadline bounds a dispatch or a suspension. The zero value is [Immediate].
type Deadline struct {
	at    time.Time
	never bool
}

var (
	// Immediate is the deadline that is always reached: dispatch makes a
	// single pass, and a suspension just yields.
	Immediate = Deadline{}

	// Never is the deadline that is never reached.
	Never = Deadline{never: true}
)

// At returns a deadline at the absolute time t.
func At(t time.Time) Deadline {
	return Deadline{at: t}
}

// After returns a deadline d from now.
func After(d time.Duration) Deadline {
	return Deadline{at: time.Now().Add(d)}
}

// IsImmediate reports whether d is [Immediate].
func (d Deadline) IsImmediate() bool {
	return !d.never && d.at.IsZero()
}

// IsNever reports whether d is [Never].
func (d Deadline) IsNever() bool {
	return d.never
}

// Time returns the absolute time of d, if it has one.
func (d Deadline) Time() (time.Time, bool) {
	if d.never || d.at.IsZero() {
		return time.Time{}, false
	}
	return d.at, true
}

// Reached reports whether d has passed at now.
func (d Deadline) Reached(now time.Time) bool {
	if d.never {
		return false
	}
	return !now.Before(d.at)
}

// Remaining returns the time left until d, zero if it has passed, or a
// negative duration if d is [Never].
func (d Deadline) Remaining(now time.Time) time.Duration {
	if d.never {
		return -1
	}
	if r := d.at.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Before reports whether d is reached strictly earlier than o.
func (d Deadline) Before(o Deadline) bool {
	switch {
	case d.never:
		return false
	case o.never:
		return true
	default:
		return d.at.Before(o.at)
	}
}

func (d Deadline) String() string {
	switch {
	case d.never:
		return "never"
	case d.at.IsZero():
		return "immediate"
	default:
		return d.at.Format(time.RFC3339Nano)
	}
}
