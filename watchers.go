package fiberevent

import (
	"context"
	"slices"
)

type (
	// Fiber is a cooperative thread that can park on an event. Values must
	// be comparable, and are typically pointers.
	Fiber interface {
		// Suspendable reports whether the fiber can currently suspend.
		Suspendable() bool
		// Suspend parks the calling fiber until it is resumed, or the
		// deadline is reached. It must be called from the fiber itself.
		Suspend(ctx context.Context, deadline Deadline) error
	}

	// Resumer is implemented by schedulers, and called by [Core.Dispatch]
	// for each watcher of a signalled event. Resume reports whether the
	// fiber was actually resumed.
	Resumer interface {
		Resume(f Fiber) bool
	}

	// ResumerFunc implements [Resumer].
	ResumerFunc func(f Fiber) bool
)

// Resume implements [Resumer].
func (x ResumerFunc) Resume(f Fiber) bool {
	return x(f)
}

type fiberContextKey struct{}

// ContextWithFiber returns a context carrying f as the current fiber.
func ContextWithFiber(ctx context.Context, f Fiber) context.Context {
	return context.WithValue(ctx, fiberContextKey{}, f)
}

// FiberFromContext returns the current fiber, or nil if ctx carries none.
func FiberFromContext(ctx context.Context) Fiber {
	f, _ := ctx.Value(fiberContextKey{}).(Fiber)
	return f
}

// WatcherKind discriminates the watcher entry of a slot.
type WatcherKind uint8

const (
	WatchersNone WatcherKind = iota
	WatchersSingle
	WatchersSet
)

// String returns a human-readable representation of the kind.
func (k WatcherKind) String() string {
	switch k {
	case WatchersNone:
		return "None"
	case WatchersSingle:
		return "Single"
	case WatchersSet:
		return "Set"
	default:
		return "Unknown"
	}
}

// watcherEntry is none (both empty), single (one set) or set (two or more
// in many, in registration order). one and many are never both in use.
type watcherEntry struct {
	one  Fiber
	many []Fiber
}

func (x *watcherEntry) kind() WatcherKind {
	switch {
	case x.one != nil:
		return WatchersSingle
	case len(x.many) != 0:
		return WatchersSet
	default:
		return WatchersNone
	}
}

func (x *watcherEntry) add(f Fiber) {
	switch {
	case x.one == f:
	case x.one != nil:
		x.many = append(x.many[:0], x.one, f)
		x.one = nil
	case len(x.many) != 0:
		if !slices.Contains(x.many, f) {
			x.many = append(x.many, f)
		}
	default:
		x.one = f
	}
}

func (x *watcherEntry) remove(f Fiber) {
	if x.one != nil {
		if x.one == f {
			x.one = nil
		}
		return
	}
	i := slices.Index(x.many, f)
	if i < 0 {
		return
	}
	x.many = slices.Delete(x.many, i, i+1)
	if len(x.many) == 1 {
		x.one = x.many[0]
		x.many = slices.Delete(x.many, 0, 1)
	}
}

func (x *watcherEntry) reset() {
	x.one = nil
	clear(x.many)
	x.many = x.many[:0]
}

// Watch registers f as a watcher of ev on this core. It fails with
// [ErrEventDisabled] if this core does not hold ev, and [ErrNotSuspendable]
// if f is nil or cannot suspend. Registering an existing watcher is a no-op.
func (c *Core) Watch(ev Event, f Fiber) error {
	if !c.Enabled(ev) {
		return ErrEventDisabled
	}
	if f == nil || !f.Suspendable() {
		return ErrNotSuspendable
	}
	c.watchers[ev.Slot()].add(f)
	return nil
}

// Unwatch removes f from the watchers of ev. Unset handles and fibers that
// are not watching are ignored.
func (c *Core) Unwatch(ev Event, f Fiber) {
	if !ev.Valid() || f == nil {
		return
	}
	c.watchers[ev.Slot()].remove(f)
}

// Watchers returns a snapshot of the watchers of ev, in registration order.
func (c *Core) Watchers(ev Event) []Fiber {
	if !ev.Valid() {
		return nil
	}
	e := &c.watchers[ev.Slot()]
	if e.one != nil {
		return []Fiber{e.one}
	}
	return slices.Clone(e.many)
}

// WatcherKind returns the kind of the watcher entry of ev.
func (c *Core) WatcherKind(ev Event) WatcherKind {
	if !ev.Valid() {
		return WatchersNone
	}
	return c.watchers[ev.Slot()].kind()
}

// notify resumes every watcher of slot once, from a snapshot so that
// watchers may unwatch (or watch) during the resume. It reports whether
// any resume happened.
func (c *Core) notify(slot int, r Resumer) bool {
	e := &c.watchers[slot]
	if e.one != nil {
		return c.resume(slot, e.one, r)
	}
	if len(e.many) == 0 {
		return false
	}

	c.scratch = append(c.scratch[:0], e.many...)
	var woke bool
	for _, f := range c.scratch {
		if c.resume(slot, f, r) {
			woke = true
		}
	}
	clear(c.scratch)
	return woke
}

func (c *Core) resume(slot int, f Fiber, r Resumer) bool {
	if r.Resume(f) {
		c.metrics.resume()
		return true
	}
	if _, ok := c.state.limiter.Allow(watcherCategory{core: c.id, slot: slot}); ok {
		c.state.logger.Debug().
			Int("core", c.id).
			Int("slot", slot).
			Log("fiberevent: watcher was not resumable")
	}
	return false
}

type watcherCategory struct {
	core, slot int
}
