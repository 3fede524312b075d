package fiberevent

import (
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of the dispatch statistics of a single core.
type Metrics struct {
	// DispatchCycles counts passes over the pending set.
	DispatchCycles uint64
	// Sleeps counts waits on the idle primitive.
	Sleeps uint64
	// Wakes counts Dispatch calls that returned because a watcher resumed.
	Wakes uint64
	// Resumes counts successful watcher resumes.
	Resumes uint64
	// Idle is the total time spent waiting on the idle primitive.
	Idle time.Duration
}

// coreMetrics is updated by the dispatching goroutine, and read from any.
// A nil *coreMetrics records nothing.
type coreMetrics struct {
	cycles  atomic.Uint64
	sleeps  atomic.Uint64
	wakes   atomic.Uint64
	resumes atomic.Uint64
	idle    atomic.Int64
}

func (x *coreMetrics) cycle() {
	if x != nil {
		x.cycles.Add(1)
	}
}

func (x *coreMetrics) wake() {
	if x != nil {
		x.wakes.Add(1)
	}
}

func (x *coreMetrics) resume() {
	if x != nil {
		x.resumes.Add(1)
	}
}

func (x *coreMetrics) slept(d time.Duration) {
	if x != nil {
		x.sleeps.Add(1)
		x.idle.Add(int64(d))
	}
}

func (x *coreMetrics) snapshot() Metrics {
	if x == nil {
		return Metrics{}
	}
	return Metrics{
		DispatchCycles: x.cycles.Load(),
		Sleeps:         x.sleeps.Load(),
		Wakes:          x.wakes.Load(),
		Resumes:        x.resumes.Load(),
		Idle:           time.Duration(x.idle.Load()),
	}
}
