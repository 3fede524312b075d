//go:build !linux

package fiberevent

import (
	"sync"
	"time"
)

// chanIdler implements idler using a single-element channel as the event
// register.
type chanIdler struct {
	ch     chan struct{}
	mu     sync.RWMutex
	closed bool
}

func newIdler() (idler, error) {
	return &chanIdler{ch: make(chan struct{}, 1)}, nil
}

func (x *chanIdler) signal() {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return
	}
	select {
	case x.ch <- struct{}{}:
	default:
	}
}

func (x *chanIdler) wait(timeout time.Duration) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return false
	}
	if timeout < 0 {
		<-x.ch
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-x.ch:
		return true
	case <-timer.C:
		return false
	}
}

func (x *chanIdler) close() error {
	// release any current wait, so the write lock can be acquired
	x.signal()
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}
