package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrOverloaded is returned by Submit when all worker slots are busy
	// and the queue is at capacity.
	ErrOverloaded = errors.New("all workers busy and queue full")

	// ErrTimedOut resolves a request whose deadline expired, either while
	// queued or while its work was running.
	ErrTimedOut = errors.New("request deadline exceeded")

	// ErrStopped is returned once the pool has begun shutting down.
	ErrStopped = errors.New("dispatcher stopped")
)

// WorkError wraps a failure raised by the work function itself, as opposed
// to a dispatch-level outcome like ErrTimedOut or ErrOverloaded.
type WorkError struct {
	RequestID string
	Err       error
}

func (e *WorkError) Error() string {
	return fmt.Sprintf("request %s failed: %v", e.RequestID, e.Err)
}

func (e *WorkError) Unwrap() error {
	return e.Err
}
