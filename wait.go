package fiberevent

import (
	"context"
	"time"
)

// TryFunc is the predicate of a wait. It returns (v, true, nil) on success,
// a non-nil error on definitive failure, and (_, false, nil) when the result
// is not yet known. It must not block, and must read state that producers
// update before calling [State.SetPending].
type TryFunc[T any] func() (T, bool, error)

// WaitState is the state of a [Waiter].
//
// State Machine:
//
//	WaitChecking → WaitDone     [Step, predicate definitive]
//	WaitChecking → WaitWaiting  [Step, predicate indeterminate, watch ok]
//	WaitChecking → WaitDone     [Step, watch failed]
//	WaitWaiting  → WaitChecking [Resumed]
//	WaitChecking, WaitWaiting → WaitDone [Cancel]
//	WaitDone → (terminal)
type WaitState uint8

const (
	WaitChecking WaitState = iota
	WaitWaiting
	WaitDone
)

// String returns a human-readable representation of the state.
func (s WaitState) String() string {
	switch s {
	case WaitChecking:
		return "Checking"
	case WaitWaiting:
		return "Waiting"
	case WaitDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Waiter is the continuation of a fiber parked on an event: the predicate,
// the watcher registration, and the outcome. Most callers should use [Wait]
// or [WaitUntil], which drive a Waiter to completion.
type Waiter[T any] struct {
	core    *Core
	try     TryFunc[T]
	watched Fiber
	value   T
	err     error
	ev      Event
	state   WaitState
}

// NewWaiter returns a Waiter in the WaitChecking state.
func NewWaiter[T any](c *Core, ev Event, try TryFunc[T]) *Waiter[T] {
	return &Waiter[T]{core: c, ev: ev, try: try}
}

// Step advances the machine from WaitChecking, running the predicate and,
// if it is indeterminate, registering f as a watcher. The watcher persists
// across resumes, and is removed once the machine is done. Step is a no-op
// in other states.
func (w *Waiter[T]) Step(f Fiber) WaitState {
	if w.state != WaitChecking {
		return w.state
	}

	v, ok, err := w.try()
	if err != nil || ok {
		w.finish(v, err)
		return w.state
	}

	if w.watched == nil {
		if err := w.core.Watch(w.ev, f); err != nil {
			var zero T
			w.finish(zero, err)
			return w.state
		}
		w.watched = f
	}

	w.state = WaitWaiting
	return w.state
}

// Resumed records that the watching fiber was resumed, moving WaitWaiting
// back to WaitChecking.
func (w *Waiter[T]) Resumed() {
	if w.state == WaitWaiting {
		w.state = WaitChecking
	}
}

// Cancel finishes the machine with err, removing the watcher.
func (w *Waiter[T]) Cancel(err error) {
	if w.state != WaitDone {
		var zero T
		w.finish(zero, err)
	}
}

// State returns the current state.
func (w *Waiter[T]) State() WaitState {
	return w.state
}

// Result returns the outcome, which is only meaningful once done.
func (w *Waiter[T]) Result() (T, error) {
	return w.value, w.err
}

func (w *Waiter[T]) finish(v T, err error) {
	if w.watched != nil {
		w.core.Unwatch(w.ev, w.watched)
		w.watched = nil
	}
	w.value, w.err = v, err
	w.state = WaitDone
}

// Wait blocks the current fiber until try is definitive, suspending between
// attempts. If try succeeds on the first attempt no fiber is needed, and
// nothing is registered. Otherwise the fiber is taken from ctx (see
// [ContextWithFiber]), and [ErrNotSuspendable] is returned if there is none.
// Errors from the suspension (cancellation, kill) are returned as is.
func Wait[T any](ctx context.Context, c *Core, ev Event, try TryFunc[T]) (T, error) {
	return wait(ctx, c, ev, Never, try)
}

// WaitUntil is like [Wait], but gives up with [ErrTimeout] once deadline is
// reached and a final attempt is still indeterminate.
func WaitUntil[T any](ctx context.Context, c *Core, ev Event, deadline Deadline, try TryFunc[T]) (T, error) {
	return wait(ctx, c, ev, deadline, try)
}

func wait[T any](ctx context.Context, c *Core, ev Event, deadline Deadline, try TryFunc[T]) (T, error) {
	if !c.Enabled(ev) {
		var zero T
		return zero, ErrEventDisabled
	}

	f := FiberFromContext(ctx)
	w := NewWaiter(c, ev, try)
	for {
		if w.Step(f) == WaitDone {
			return w.Result()
		}
		if deadline.Reached(time.Now()) {
			w.Cancel(ErrTimeout)
			return w.Result()
		}
		if err := f.Suspend(ctx, deadline); err != nil {
			w.Cancel(err)
			return w.Result()
		}
		w.Resumed()
	}
}

// CanWait reports whether a wait on ev could suspend: ctx carries a
// suspendable fiber, and c holds ev.
func CanWait(ctx context.Context, c *Core, ev Event) bool {
	f := FiberFromContext(ctx)
	return f != nil && f.Suspendable() && c.Enabled(ev)
}
