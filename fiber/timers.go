package fiber

import (
	"time"
)

// timer wakes a suspended fiber at when, unless the fiber has since been
// resumed (gen no longer matches).
type timer struct {
	when time.Time
	f    *Fiber
	gen  uint64
}

// timerHeap is a min-heap of timers
type timerHeap []timer

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = timer{}
	*h = old[:n-1]
	return x
}

func (t timer) live() bool {
	return t.f.gen == t.gen && t.f.state.Load() == StateSuspended
}
