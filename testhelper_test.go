package fiberevent

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// testFiber is a Fiber whose Suspend runs onSuspend inline, standing in for
// a scheduler that parks the fiber and resumes it later.
type testFiber struct {
	onSuspend   func(ctx context.Context, d Deadline) error
	name        string
	suspends    int
	unsuspended bool
}

func (f *testFiber) Suspendable() bool { return !f.unsuspended }

func (f *testFiber) Suspend(ctx context.Context, d Deadline) error {
	f.suspends++
	if f.onSuspend != nil {
		return f.onSuspend(ctx, d)
	}
	return nil
}

// recorder is a Resumer that records every resume attempt.
type recorder struct {
	mu      sync.Mutex
	resumed []Fiber
	reject  map[Fiber]bool
}

func (r *recorder) Resume(f Fiber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject[f] {
		return false
	}
	r.resumed = append(r.resumed, f)
	return true
}

func (r *recorder) count(f Fiber) (n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.resumed {
		if v == f {
			n++
		}
	}
	return n
}

func newTestState(t *testing.T, opts ...Option) *State {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func claim(t *testing.T, c *Core) Event {
	t.Helper()
	var ev Event
	if err := c.Claim(&ev); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	return ev
}

// syncBuffer is a bytes.Buffer that is safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *syncBuffer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(level),
	).Logger()
}
