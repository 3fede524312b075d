package fiberevent

import (
	"time"
)

// idler is the per-core wait-for-event primitive.
//
// It behaves like an event register: a signal delivered while nobody waits
// is latched, and makes the next wait return immediately. Waits may also
// return spuriously, so callers must re-check their condition.
type idler interface {
	// signal sets the event register, waking a current or future wait.
	// Safe for concurrent use, and a no-op after close.
	signal()
	// wait blocks until the register is set or timeout elapses, then clears
	// the register. A negative timeout waits indefinitely. It reports
	// whether the register was observed set.
	wait(timeout time.Duration) bool
	close() error
}
