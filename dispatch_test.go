package fiberevent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatch_CollapsedSignalsWakeOnce(t *testing.T) {
	t.Parallel()

	s := newTestState(t, WithMetrics(true))
	c := s.Core(0)
	ev := claim(t, c)
	a, b := &testFiber{}, &testFiber{}
	_ = c.Watch(ev, a)
	_ = c.Watch(ev, b)

	s.SetPending(ev)
	s.SetPending(ev)

	var r recorder
	if err := c.Dispatch(context.Background(), After(time.Second), &r); err != nil {
		t.Fatal(err)
	}
	if r.count(a) != 1 || r.count(b) != 1 {
		t.Fatalf("expected one resume per watcher, got %d and %d", r.count(a), r.count(b))
	}
	if m := c.Metrics(); m.Wakes != 1 || m.Resumes != 2 {
		t.Errorf("unexpected metrics %+v", m)
	}

	// nothing left pending
	if err := c.Dispatch(context.Background(), Immediate, &r); err != nil {
		t.Fatal(err)
	}
	if len(r.resumed) != 2 {
		t.Fatalf("expected no further resumes, got %d", len(r.resumed))
	}
}

func TestDispatch_UnwatchedFiberNotWoken(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	c := s.Core(0)
	ev := claim(t, c)
	f := &testFiber{}
	_ = c.Watch(ev, f)
	c.Unwatch(ev, f)

	s.SetPending(ev)

	var r recorder
	if err := c.Dispatch(context.Background(), Immediate, &r); err != nil {
		t.Fatal(err)
	}
	if r.count(f) != 0 {
		t.Fatal("canceled watcher was resumed")
	}
}

func TestDispatch_SlotOrder(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	c := s.Core(0)
	var fibers []*testFiber
	var events []Event
	for range 70 {
		ev := claim(t, c)
		f := &testFiber{}
		_ = c.Watch(ev, f)
		events = append(events, ev)
		fibers = append(fibers, f)
	}
	for i := len(events) - 1; i >= 0; i-- {
		if i%3 == 0 {
			s.SetPending(events[i])
		}
	}

	var r recorder
	if err := c.Dispatch(context.Background(), Immediate, &r); err != nil {
		t.Fatal(err)
	}
	var want []Fiber
	for i, f := range fibers {
		if i%3 == 0 {
			want = append(want, f)
		}
	}
	if len(r.resumed) != len(want) {
		t.Fatalf("expected %d resumes, got %d", len(want), len(r.resumed))
	}
	for i := range want {
		if r.resumed[i] != want[i] {
			t.Fatalf("resume %d out of slot order", i)
		}
	}
}

func TestDispatch_IdleUntilDeadline(t *testing.T) {
	t.Parallel()

	s := newTestState(t, WithMetrics(true))
	c := s.Core(0)
	_ = claim(t, c)

	start := time.Now()
	if err := c.Dispatch(context.Background(), After(5*time.Millisecond), &recorder{}); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)
	if elapsed < 5*time.Millisecond {
		t.Fatalf("returned before the deadline: %v", elapsed)
	}
	m := c.Metrics()
	if m.Sleeps == 0 || m.Sleeps > 20 {
		t.Fatalf("expected a few idle sleeps, got %+v", m)
	}
	if m.Idle <= 0 {
		t.Errorf("expected idle time to be recorded, got %v", m.Idle)
	}
}

func TestDispatch_ImmediateSinglePass(t *testing.T) {
	t.Parallel()

	s := newTestState(t, WithMetrics(true))
	c := s.Core(0)
	if err := c.Dispatch(context.Background(), Immediate, &recorder{}); err != nil {
		t.Fatal(err)
	}
	if m := c.Metrics(); m.DispatchCycles != 1 || m.Sleeps != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestDispatch_WakesOnProducer(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	c := s.Core(0)
	ev := claim(t, c)
	f := &testFiber{}
	_ = c.Watch(ev, f)

	go func() {
		time.Sleep(2 * time.Millisecond)
		s.SetPending(ev)
	}()

	var r recorder
	start := time.Now()
	if err := c.Dispatch(context.Background(), After(10*time.Second), &r); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("dispatch did not wake on the signal: %v", elapsed)
	}
	if r.count(f) != 1 {
		t.Fatal("expected the watcher to be resumed")
	}
}

func TestDispatch_OtherCoreSignalDoesNotWake(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	c0 := s.Core(0)
	other := claim(t, s.Core(1))
	s.SetPending(other)

	if err := c0.Dispatch(context.Background(), After(2*time.Millisecond), &recorder{}); err != nil {
		t.Fatal(err)
	}
	if !s.Slot(other.Slot()).Pending {
		t.Fatal("core 0 consumed a bit held by core 1")
	}
}

func TestDispatch_ContextCancel(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	c := s.Core(0)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(2*time.Millisecond, cancel)

	if err := c.Dispatch(ctx, Never, &recorder{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDispatch_Wake(t *testing.T) {
	t.Parallel()

	s := newTestState(t, WithMetrics(true))
	c := s.Core(0)
	c.Wake()
	if err := c.Dispatch(context.Background(), After(20*time.Millisecond), &recorder{}); err != nil {
		t.Fatal(err)
	}
	// a bare wake is not progress, but it does end the first idle wait early
	if m := c.Metrics(); m.Sleeps < 2 {
		t.Fatalf("expected the latched wake to cost an extra sleep, got %+v", m)
	}
}

func TestDispatch_Reentrant(t *testing.T) {
	t.Parallel()

	s := newTestState(t)
	c := s.Core(0)
	ev := claim(t, c)
	_ = c.Watch(ev, &testFiber{})
	s.SetPending(ev)

	var inner error
	r := ResumerFunc(func(Fiber) bool {
		inner = c.Dispatch(context.Background(), Immediate, &recorder{})
		return true
	})
	if err := c.Dispatch(context.Background(), Immediate, r); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, ErrReentrantDispatch) {
		t.Fatalf("expected ErrReentrantDispatch, got %v", inner)
	}
}

func TestDispatch_Closed(t *testing.T) {
	t.Parallel()

	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	if err := s.Core(0).Dispatch(context.Background(), Never, &recorder{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	s.SetPending(Event{})
	s.Core(1).Wake()
}

// TestWait_EndToEnd parks a fiber on an event with the dispatch loop as its
// scheduler, and signals it from another goroutine.
func TestWait_EndToEnd(t *testing.T) {
	t.Parallel()

	s := newTestState(t, WithMetrics(true))
	c := s.Core(0)
	ev := claim(t, c)

	var ready atomic.Bool
	f := &testFiber{}
	f.onSuspend = func(ctx context.Context, d Deadline) error {
		return c.Dispatch(ctx, After(10*time.Second), ResumerFunc(func(g Fiber) bool {
			return g == f
		}))
	}

	go func() {
		time.Sleep(time.Millisecond)
		ready.Store(true)
		s.SetPending(ev)
	}()

	start := time.Now()
	v, err := Wait(ContextWithFiber(context.Background(), f), c, ev, func() (string, bool, error) {
		if ready.Load() {
			return "done", true, nil
		}
		return "", false, nil
	})
	if err != nil || v != "done" {
		t.Fatalf("unexpected result %q %v", v, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("wait took %v", elapsed)
	}
	if c.WatcherKind(ev) != WatchersNone {
		t.Error("expected the watcher to be removed")
	}
}
