package fiber

import (
	"errors"
	"fmt"
)

var (
	// ErrKilled is returned from Suspend (and so from waits and sleeps)
	// once the fiber has been killed, see [Scheduler.Kill].
	ErrKilled = errors.New("fiber: killed")

	// ErrSchedulerRunning is returned by [Scheduler.Run] if it is already
	// running.
	ErrSchedulerRunning = errors.New("fiber: scheduler is already running")
)

// PanicError wraps a value recovered from a panicking fiber.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber: panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, so that [errors.Is] and
// [errors.As] see through the panic.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
