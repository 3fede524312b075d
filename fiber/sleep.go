package fiber

import (
	"context"
	"time"

	"github.com/joeycumines/go-fiberevent"
)

// SleepUntil suspends the current fiber until deadline is reached. Early
// resumes (from event watchers the fiber still holds) are absorbed. It
// fails with [fiberevent.ErrNotSuspendable] outside a fiber.
func SleepUntil(ctx context.Context, deadline fiberevent.Deadline) error {
	f := fiberevent.FiberFromContext(ctx)
	if f == nil {
		return fiberevent.ErrNotSuspendable
	}
	if deadline.IsImmediate() {
		return f.Suspend(ctx, deadline)
	}
	for !deadline.Reached(time.Now()) {
		if err := f.Suspend(ctx, deadline); err != nil {
			return err
		}
	}
	return nil
}

// Sleep suspends the current fiber for at least d.
func Sleep(ctx context.Context, d time.Duration) error {
	return SleepUntil(ctx, fiberevent.After(d))
}
