package fiberevent

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

const (
	// NumEvents is the number of event slots shared by all cores.
	NumEvents = 128

	wordBits = 64
	numWords = NumEvents / wordBits
)

// State is the process-wide event state: the claim masks of every core, and
// the pending set. It is created by [New], and must be released by
// [State.Close] once no core is dispatching.
type State struct {
	lock    spinLock
	pending [numWords]uint64
	masks   [][numWords]uint64
	cores   []*Core
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	closed  atomic.Bool
}

// Core is the view of a [State] from one core. Everything but [Core.Wake],
// [Core.Metrics] and the read-only accessors must be called from the
// goroutine driving the core.
type Core struct {
	state       *State
	idle        idler
	metrics     *coreMetrics
	watchers    [NumEvents]watcherEntry
	scratch     []Fiber
	id          int
	dispatching bool
}

// New creates a State with its cores.
func New(opts ...Option) (*State, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &State{
		masks:  make([][numWords]uint64, cfg.cores),
		cores:  make([]*Core, cfg.cores),
		logger: cfg.logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
	s.lock.spins = cfg.spinLimit

	for i := range s.cores {
		idle, err := newIdler()
		if err != nil {
			for _, c := range s.cores[:i] {
				_ = c.idle.close()
			}
			return nil, err
		}
		c := &Core{
			state: s,
			idle:  idle,
			id:    i,
		}
		if cfg.metricsEnabled {
			c.metrics = new(coreMetrics)
		}
		s.cores[i] = c
	}

	return s, nil
}

// Close releases the idle primitives of every core. It must not be called
// while any core is dispatching. Calling it more than once is harmless.
func (s *State) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, c := range s.cores {
		if err := c.idle.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NumCores returns the number of cores.
func (s *State) NumCores() int {
	return len(s.cores)
}

// Core returns the core with index i, panicking if it is out of range.
func (s *State) Core(i int) *Core {
	return s.cores[i]
}

// ID returns the index of the core.
func (c *Core) ID() int {
	return c.id
}

// State returns the state the core belongs to.
func (c *Core) State() *State {
	return c.state
}

// Metrics returns a snapshot of the dispatch metrics, which are all zero
// unless the state was created [WithMetrics].
func (c *Core) Metrics() Metrics {
	return c.metrics.snapshot()
}

// Wake signals the idle primitive of this core only, making a current or
// the next idle wait return. It is safe to call from any goroutine.
func (c *Core) Wake() {
	c.idle.signal()
}
