package fiber

import (
	"container/heap"
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/logiface"
)

// Scheduler runs fibers on one [fiberevent.Core]. It implements
// [fiberevent.Resumer].
//
// Except for [Scheduler.Submit], methods must be called from the goroutine
// running [Scheduler.Run], from a fiber of this scheduler, or while the
// scheduler is not running.
type Scheduler struct {
	core    *fiberevent.Core
	logger  *logiface.Logger[logiface.Event]
	ready   *queue.Queue
	fibers  map[*Fiber]struct{}
	current *Fiber
	timers  timerHeap
	inbox   []func()
	mu      sync.Mutex
	nextID  uint64
	running atomic.Bool
	ingress ingress
	// ingressEv is owned by the core, signal is an immutable copy for
	// producers
	ingressEv fiberevent.Event
	signal    fiberevent.Event
}

// Fiber is a goroutine backed coroutine, created by [Scheduler.Spawn]. It
// implements [fiberevent.Fiber].
type Fiber struct {
	s       *Scheduler
	fn      func(ctx context.Context) error
	ctx     context.Context
	resume  chan struct{}
	yield   chan struct{}
	done    chan struct{}
	err     error
	id      uint64
	gen     uint64
	state   fastState
	started bool
	killed  bool
}

// ingress is the watcher registered on the scheduler's submit event. It is
// never suspended, resuming it just makes Dispatch return.
type ingress struct {
	s *Scheduler
}

func (*ingress) Suspendable() bool { return true }

func (*ingress) Suspend(context.Context, fiberevent.Deadline) error {
	return fiberevent.ErrNotSuspendable
}

// NewScheduler creates a scheduler for core, claiming one event on it for
// [Scheduler.Submit].
func NewScheduler(core *fiberevent.Core, opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		core:   core,
		logger: cfg.logger,
		ready:  queue.New(),
		fibers: make(map[*Fiber]struct{}),
	}
	s.ingress.s = s

	if err := core.Claim(&s.ingressEv); err != nil {
		return nil, err
	}
	if err := core.Watch(s.ingressEv, &s.ingress); err != nil {
		core.Unclaim(&s.ingressEv)
		return nil, err
	}
	s.signal = s.ingressEv

	return s, nil
}

// Close releases the submit event. The scheduler must not be running.
func (s *Scheduler) Close() {
	s.core.Unclaim(&s.ingressEv)
}

// Core returns the core the scheduler drives.
func (s *Scheduler) Core() *fiberevent.Core {
	return s.core
}

// Current returns the running fiber, or nil if called from outside a fiber.
func (s *Scheduler) Current() *Fiber {
	return s.current
}

// NumFibers returns the number of fibers that have not yet exited.
func (s *Scheduler) NumFibers() int {
	return len(s.fibers)
}

// Spawn creates a fiber running fn, and queues it to run. The context
// passed to fn is derived from ctx, and carries the fiber (see
// [fiberevent.FiberFromContext]).
func (s *Scheduler) Spawn(ctx context.Context, fn func(ctx context.Context) error) *Fiber {
	s.nextID++
	f := &Fiber{
		s:      s,
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		done:   make(chan struct{}),
		id:     s.nextID,
	}
	f.ctx = fiberevent.ContextWithFiber(ctx, f)
	s.fibers[f] = struct{}{}
	s.ready.Add(f)
	return f
}

// Submit queues fn to run on the scheduler goroutine, waking the core if it
// is idle. It is safe to call from any goroutine.
func (s *Scheduler) Submit(fn func()) {
	s.mu.Lock()
	s.inbox = append(s.inbox, fn)
	s.mu.Unlock()
	s.core.State().SetPending(s.signal)
}

// Resume implements [fiberevent.Resumer]. It runs f, if it is a suspended
// fiber of this scheduler, until it suspends again or exits.
func (s *Scheduler) Resume(f fiberevent.Fiber) bool {
	switch f := f.(type) {
	case *ingress:
		return f.s == s
	case *Fiber:
		if f.s != s || f.state.Load() != StateSuspended {
			return false
		}
		s.run(f)
		return true
	default:
		return false
	}
}

// Kill marks f as killed. A suspended fiber is resumed immediately, and its
// pending Suspend returns [ErrKilled], as does every later one. A fiber
// that has not started yet exits with ErrKilled without running.
func (s *Scheduler) Kill(f *Fiber) {
	if f == nil || f.s != s || f.state.Load() == StateDead {
		return
	}
	f.killed = true
	if f.state.Load() == StateSuspended {
		s.run(f)
	}
}

// Run runs fibers until none remain, or ctx is done. On cancellation every
// remaining fiber is killed, and the context error returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}
	defer s.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		s.drainInbox()
		s.fireTimers(time.Now())
		s.runReady()

		if len(s.fibers) == 0 && !s.hasInbox() {
			return nil
		}

		if err := ctx.Err(); err != nil {
			s.killAll()
			return err
		}

		if err := s.core.Dispatch(ctx, s.nextDeadline(), s); err != nil {
			if ctx.Err() != nil {
				s.killAll()
			}
			return err
		}
	}
}

// run hands the baton to f, and takes it back once f suspends or exits.
func (s *Scheduler) run(f *Fiber) {
	prev := s.current
	s.current = f
	f.state.Store(StateRunning)
	if !f.started {
		f.started = true
		go f.main()
	}
	f.resume <- struct{}{}
	<-f.yield
	s.current = prev

	if f.state.Load() == StateDead {
		delete(s.fibers, f)
		if f.err != nil {
			s.logger.Debug().
				Uint64("fiber", f.id).
				Err(f.err).
				Log("fiber: fiber exited with error")
		}
	}
}

func (s *Scheduler) runReady() {
	for n := s.ready.Length(); n > 0; n-- {
		f := s.ready.Remove().(*Fiber)
		if f.state.Load() != StateReady {
			continue
		}
		s.run(f)
	}
}

func (s *Scheduler) makeReady(f *Fiber) {
	if f.state.TryTransition(StateSuspended, StateReady) {
		s.ready.Add(f)
	}
}

func (s *Scheduler) fireTimers(now time.Time) {
	for len(s.timers) != 0 && !now.Before(s.timers[0].when) {
		t := heap.Pop(&s.timers).(timer)
		if t.live() {
			s.makeReady(t.f)
		}
	}
}

func (s *Scheduler) nextDeadline() fiberevent.Deadline {
	if s.ready.Length() != 0 || s.hasInbox() {
		return fiberevent.Immediate
	}
	if len(s.timers) != 0 {
		return fiberevent.At(s.timers[0].when)
	}
	return fiberevent.Never
}

func (s *Scheduler) hasInbox() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbox) != 0
}

func (s *Scheduler) drainInbox() {
	s.mu.Lock()
	tasks := s.inbox
	s.inbox = nil
	s.mu.Unlock()

	for _, fn := range tasks {
		s.safeExecute(fn)
	}
}

func (s *Scheduler) safeExecute(fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Err().
				Any("panic", r).
				Log("fiber: submitted task panicked")
		}
	}()

	fn()
}

// killAll kills every remaining fiber, letting each unwind.
func (s *Scheduler) killAll() {
	for range 3 {
		if len(s.fibers) == 0 {
			return
		}
		for f := range s.fibers {
			s.Kill(f)
		}
		s.runReady()
	}
	if n := len(s.fibers); n != 0 {
		s.logger.Warning().
			Int("fibers", n).
			Log("fiber: fibers did not exit after kill")
	}
}

// ID returns the identifier of the fiber, unique within its scheduler.
func (f *Fiber) ID() uint64 {
	return f.id
}

// State returns the current state. Safe to call from any goroutine.
func (f *Fiber) State() State {
	return f.state.Load()
}

// Done returns a channel closed when the fiber exits.
func (f *Fiber) Done() <-chan struct{} {
	return f.done
}

// Err returns the result of the fiber function. It is only meaningful once
// Done is closed.
func (f *Fiber) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Suspendable implements [fiberevent.Fiber].
func (f *Fiber) Suspendable() bool {
	return f.state.Load() != StateDead
}

// Suspend implements [fiberevent.Fiber], yielding to the scheduler. With
// [fiberevent.Immediate] the fiber is requeued behind the other ready
// fibers. With an absolute deadline it is resumed at the deadline if
// nothing resumes it sooner, and with [fiberevent.Never] only by a resume.
// Cancelling ctx also resumes it, in which case the context error is
// returned.
func (f *Fiber) Suspend(ctx context.Context, deadline fiberevent.Deadline) error {
	s := f.s
	if s.current != f {
		return fiberevent.ErrNotSuspendable
	}
	if f.killed {
		return ErrKilled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.gen++
	gen := f.gen

	if deadline.IsImmediate() {
		f.state.Store(StateReady)
		s.ready.Add(f)
	} else {
		f.state.Store(StateSuspended)
		if at, ok := deadline.Time(); ok {
			heap.Push(&s.timers, timer{when: at, f: f, gen: gen})
		}
	}

	var stop func() bool
	if ctx.Done() != nil {
		stop = context.AfterFunc(ctx, func() {
			s.Submit(func() {
				if f.gen == gen {
					s.makeReady(f)
				}
			})
		})
	}

	f.yield <- struct{}{}
	<-f.resume

	if stop != nil {
		stop()
	}
	if f.killed {
		return ErrKilled
	}
	return ctx.Err()
}

func (f *Fiber) main() {
	<-f.resume
	var err error
	if f.killed {
		err = ErrKilled
	} else {
		err = f.call()
	}
	f.err = err
	f.state.Store(StateDead)
	close(f.done)
	f.yield <- struct{}{}
}

func (f *Fiber) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			f.s.logger.Err().
				Uint64("fiber", f.id).
				Any("panic", r).
				Log("fiber: fiber panicked")
		}
	}()
	return f.fn(f.ctx)
}
