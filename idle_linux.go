//go:build linux

package fiberevent

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// eventfdIdler implements idler using a non-blocking eventfd, polled with
// ppoll for the timed wait.
type eventfdIdler struct {
	mu     sync.RWMutex
	fd     int
	closed bool
	buf    [8]byte
}

func newIdler() (idler, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &eventfdIdler{fd: fd}, nil
}

func (x *eventfdIdler) signal() {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return
	}
	// native endianness
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	// EAGAIN means the counter is saturated, which is still "set"
	_, _ = unix.Write(x.fd, buf)
}

func (x *eventfdIdler) wait(timeout time.Duration) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return false
	}

	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	fds := [1]unix.PollFd{{Fd: int32(x.fd), Events: unix.POLLIN}}
	n, err := unix.Ppoll(fds[:], ts, nil)
	if err != nil || n == 0 {
		// EINTR is a spurious wake, a zero count is the timeout
		return false
	}

	return x.drain()
}

// drain consumes the eventfd counter, clearing the register.
func (x *eventfdIdler) drain() bool {
	var set bool
	for {
		if _, err := unix.Read(x.fd, x.buf[:]); err != nil {
			break
		}
		set = true
	}
	return set
}

func (x *eventfdIdler) close() error {
	// release any current wait, so the write lock can be acquired
	x.signal()
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return unix.Close(x.fd)
}
