// Package irq simulates interrupt lines on top of [fiberevent]: a producer
// raises the line from any goroutine (standing in for an interrupt
// handler), and fibers on the owning core wait for it, or run a handler
// fiber every time it triggers.
package irq

import (
	"context"
	"sync/atomic"

	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/go-fiberevent/fiber"
)

// Line is an interrupt line bound to one core.
type Line struct {
	core     *fiberevent.Core
	raised   atomic.Uint64
	disabled atomic.Bool
	// seen is only accessed on the owning core
	seen uint64
	ev   fiberevent.Event
	// signal is the immutable copy of ev used by Raise
	signal fiberevent.Event
}

// Enable claims an event on core, and returns the line using it.
func Enable(core *fiberevent.Core) (*Line, error) {
	l := &Line{core: core}
	if err := core.Claim(&l.ev); err != nil {
		return nil, err
	}
	l.signal = l.ev
	return l, nil
}

// Event returns the event backing the line, unset once disabled.
func (l *Line) Event() fiberevent.Event {
	return l.ev
}

// Raise triggers the line. It is safe to call from any goroutine, never
// blocks, and is ignored once the line is disabled.
func (l *Line) Raise() {
	if l.disabled.Load() {
		return
	}
	l.raised.Add(1)
	l.core.State().SetPending(l.signal)
}

// Raised returns how many times the line was raised.
func (l *Line) Raised() uint64 {
	return l.raised.Load()
}

// Wait blocks the current fiber until the line has been raised since the
// previous Wait returned, and returns how many raises that covers.
func (l *Line) Wait(ctx context.Context) (uint64, error) {
	return fiberevent.Wait(ctx, l.core, l.ev, l.try)
}

// try consumes the raises not yet seen.
func (l *Line) try() (uint64, bool, error) {
	if l.disabled.Load() {
		return 0, false, fiberevent.ErrEventDisabled
	}
	r := l.raised.Load()
	if r == l.seen {
		return 0, false, nil
	}
	n := r - l.seen
	l.seen = r
	return n, true, nil
}

// Disable releases the event, and later waits fail with
// [fiberevent.ErrEventDisabled]. Fibers already waiting are dropped from
// the watchers, and stay suspended until killed (see [Handler.Stop]).
// Calling it more than once is harmless.
func (l *Line) Disable() {
	l.disabled.Store(true)
	l.core.Unclaim(&l.ev)
}

// HandlerFunc is called by a [Handler] with the number of raises covered by
// each trigger. A non-nil error stops the handler.
type HandlerFunc func(ctx context.Context, n uint64) error

// Handler is a fiber that calls a [HandlerFunc] every time its line
// triggers.
type Handler struct {
	s *fiber.Scheduler
	f *fiber.Fiber
}

// Handle starts a handler fiber for l on s, which must drive the core that
// owns l. Once the handler stops, for any reason, cleanup (if not nil) is
// called with the reason, in the handler fiber.
func Handle(ctx context.Context, s *fiber.Scheduler, l *Line, handler HandlerFunc, cleanup func(err error)) *Handler {
	f := s.Spawn(ctx, func(ctx context.Context) (err error) {
		if cleanup != nil {
			defer func() { cleanup(err) }()
		}
		for {
			n, err := l.Wait(ctx)
			if err != nil {
				return err
			}
			if err := handler(ctx, n); err != nil {
				return err
			}
		}
	})
	return &Handler{s: s, f: f}
}

// Stop kills the handler fiber. It must be called from the scheduler
// goroutine or one of its fibers.
func (h *Handler) Stop() {
	h.s.Kill(h.f)
}

// Fiber returns the handler fiber.
func (h *Handler) Fiber() *fiber.Fiber {
	return h.f
}
