package fiberevent

import (
	"context"
	"math/bits"
	"time"
)

// Dispatch runs the dispatch loop of this core: it drains the pending bits
// the core holds, resumes the watchers of each signalled slot in ascending
// slot order, and returns once at least one watcher was resumed. With no
// progress it returns when deadline is reached ([Immediate] makes a single
// pass), or with the context error, and otherwise idles until an event is
// signalled.
//
// Dispatch must be called from the goroutine driving the core, and is not
// reentrant.
func (c *Core) Dispatch(ctx context.Context, deadline Deadline, r Resumer) error {
	if c.dispatching {
		return ErrReentrantDispatch
	}
	c.dispatching = true
	defer func() { c.dispatching = false }()

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, c.idle.signal)
		defer stop()
	}

	s := c.state
	for {
		if s.closed.Load() {
			return ErrClosed
		}

		c.metrics.cycle()

		var woke bool
		active := s.drainAndMask(c.id)
		for w, word := range active {
			for word != 0 {
				b := bits.TrailingZeros64(word)
				word &^= 1 << b
				if c.notify(w*wordBits+b, r) {
					woke = true
				}
			}
		}

		if woke {
			c.metrics.wake()
			return nil
		}
		if deadline.IsImmediate() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()
		if deadline.Reached(now) {
			return nil
		}

		timeout := deadline.Remaining(now)
		s.logger.Trace().
			Int("core", c.id).
			Dur("timeout", timeout).
			Log("fiberevent: idle")
		c.idle.wait(timeout)
		c.metrics.slept(time.Since(now))
	}
}
