package fiber

import (
	"sync/atomic"
)

// State is the lifecycle state of a [Fiber].
//
// State Machine:
//
//	StateReady (0) → StateRunning (1)     [scheduled or resumed]
//	StateRunning (1) → StateSuspended (2) [Suspend with a deadline or Never]
//	StateRunning (1) → StateReady (0)     [Suspend with Immediate]
//	StateSuspended (2) → StateReady (0)   [timer fired]
//	StateSuspended (2) → StateRunning (1) [Resume]
//	StateRunning (1) → StateDead (3)      [function returned]
//	StateDead (3) → (terminal)
type State uint32

const (
	StateReady State = iota
	StateRunning
	StateSuspended
	StateDead
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateSuspended:
		return "Suspended"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// fastState is an atomic state cell, readable from any goroutine, and only
// written by whichever goroutine holds the baton.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) Load() State {
	return State(s.v.Load())
}

func (s *fastState) Store(state State) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
