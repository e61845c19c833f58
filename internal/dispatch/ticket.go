package dispatch

import (
	"context"
	"time"
)

// Work is one unit of inbound work. It must honor ctx: when the request
// deadline expires the context is cancelled and the slot is reclaimed
// whether or not the function has returned.
type Work func(ctx context.Context) error

// Ticket tracks an admitted request from submission to resolution.
type Ticket struct {
	id       string
	arrived  time.Time
	deadline time.Time
	work     Work

	done chan struct{}
	err  error
}

func (t *Ticket) ID() string {
	return t.id
}

func (t *Ticket) ArrivedAt() time.Time {
	return t.arrived
}

func (t *Ticket) Deadline() time.Time {
	return t.deadline
}

// Wait blocks until the request resolves or ctx is cancelled. It returns
// nil on success, ErrTimedOut, ErrStopped, a *WorkError, or the ctx error.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve must be called exactly once, by the worker that owns the ticket
// or by Stop while draining the queue.
func (t *Ticket) resolve(err error) {
	t.err = err
	close(t.done)
}
