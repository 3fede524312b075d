package fiberevent

import (
	"errors"
)

var (
	// ErrNoSlotsAvailable is returned by [Core.Claim] when every event slot
	// is claimed by some core.
	ErrNoSlotsAvailable = errors.New("fiberevent: no event slots available")

	// ErrAlreadyClaimed is returned by [Core.Claim] when the handle already
	// refers to a claimed slot.
	ErrAlreadyClaimed = errors.New("fiberevent: event already claimed")

	// ErrEventDisabled is returned when watching or waiting on an event that
	// is not claimed by the calling core.
	ErrEventDisabled = errors.New("fiberevent: event is disabled")

	// ErrNotSuspendable is returned when a wait would need to suspend, but
	// the caller has no fiber that can be suspended.
	ErrNotSuspendable = errors.New("fiberevent: caller cannot suspend")

	// ErrTimeout is returned by [WaitUntil] when the deadline is reached
	// before the predicate became definitive.
	ErrTimeout = errors.New("fiberevent: wait deadline reached")

	// ErrClosed is returned by [Core.Dispatch] after [State.Close].
	ErrClosed = errors.New("fiberevent: state is closed")

	// ErrReentrantDispatch is returned when [Core.Dispatch] is called while
	// a dispatch on the same core is already in progress.
	ErrReentrantDispatch = errors.New("fiberevent: dispatch called reentrantly")
)
