package fiberevent

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// spinLock is the cross-core lock guarding the claim masks and the pending
// words. Critical sections are short straight-line code, and never contain
// a suspension point.
type spinLock struct { // betteralign:ignore
	_     cpu.CacheLinePad
	held  atomic.Uint32
	seq   atomic.Uint64
	spins int
	_     cpu.CacheLinePad
}

// lockToken is the saved state returned by lock, and must be passed back to
// the matching unlock. It stands in for the saved interrupt mask of the
// hardware implementation.
type lockToken struct {
	seq uint64
}

const defaultSpinLimit = 64

// lock acquires the lock, spinning briefly before yielding the processor.
// The lock does not nest.
func (x *spinLock) lock() lockToken {
	limit := x.spins
	if limit <= 0 {
		limit = defaultSpinLimit
	}
	for n := 0; !x.held.CompareAndSwap(0, 1); n++ {
		if n >= limit {
			runtime.Gosched()
			n = 0
		}
	}
	return lockToken{seq: x.seq.Add(1)}
}

// unlock releases the lock, panicking if tok is not the token returned by
// the current holder's lock call.
func (x *spinLock) unlock(tok lockToken) {
	if x.held.Load() != 1 || x.seq.Load() != tok.seq {
		panic("fiberevent: unlock with foreign lock token")
	}
	x.held.Store(0)
}
