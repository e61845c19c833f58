// Package dispatch bounds concurrent execution of transcription work: a
// fixed pool of worker slots, a bounded FIFO queue with overflow rejection,
// and an absolute per-request deadline enforced on every exit path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	// Workers is the number of concurrent execution slots.
	Workers int
	// QueueSize is how many admitted requests may wait for a slot.
	QueueSize int
	// Timeout is the absolute per-request deadline, counted from arrival.
	// Time spent waiting in the queue counts against it.
	Timeout time.Duration
}

type Pool struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	queue  chan *Ticket
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// admitted counts requests between Submit and slot release; it never
	// exceeds Workers+QueueSize. saturatedSince holds the unix-nano instant
	// admission capacity ran out, 0 while capacity is available.
	admitted       atomic.Int64
	running        atomic.Int64
	saturatedSince atomic.Int64
	lastRelease    atomic.Int64

	stopped atomic.Bool
}

// Stats is a point-in-time snapshot read via atomics; callers (the health
// reporter) never contend with the submit or execution paths.
type Stats struct {
	Workers        int
	QueueCapacity  int
	Running        int
	Queued         int
	SaturatedSince time.Time
	LastRelease    time.Time
}

func (s Stats) Saturated() bool {
	return !s.SaturatedSince.IsZero()
}

func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		// Capacity covers every admitted request, so sends never block.
		queue:  make(chan *Ticket, cfg.Workers+cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i + 1)
	}

	logger.Debug("dispatch pool started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("timeout", cfg.Timeout),
	)

	return p
}

// Submit admits work or rejects it immediately; it never blocks the caller.
// The returned ticket resolves through Wait.
func (p *Pool) Submit(work Work) (*Ticket, error) {
	if work == nil {
		return nil, errors.New("work function is required")
	}
	if p.stopped.Load() {
		return nil, ErrStopped
	}

	limit := int64(p.cfg.Workers + p.cfg.QueueSize)
	for {
		cur := p.admitted.Load()
		if cur >= limit {
			return nil, ErrOverloaded
		}
		if p.admitted.CompareAndSwap(cur, cur+1) {
			if cur+1 == limit {
				p.saturatedSince.CompareAndSwap(0, p.now().UnixNano())
			}
			break
		}
	}

	arrived := p.now()
	t := &Ticket{
		id:       uuid.NewString(),
		arrived:  arrived,
		deadline: arrived.Add(p.cfg.Timeout),
		work:     work,
		done:     make(chan struct{}),
	}

	p.queue <- t
	p.logger.Debug("request admitted", zap.String("request", t.id))
	return t, nil
}

func (p *Pool) Stats() Stats {
	admitted := int(p.admitted.Load())
	running := int(p.running.Load())
	queued := admitted - running
	if queued < 0 {
		queued = 0
	}

	stats := Stats{
		Workers:       p.cfg.Workers,
		QueueCapacity: p.cfg.QueueSize,
		Running:       running,
		Queued:        queued,
	}
	if since := p.saturatedSince.Load(); since != 0 {
		stats.SaturatedSince = time.Unix(0, since)
	}
	if last := p.lastRelease.Load(); last != 0 {
		stats.LastRelease = time.Unix(0, last)
	}
	return stats
}

// Stop rejects new submissions, cancels running work, waits for the
// workers, and resolves anything still queued with ErrStopped.
func (p *Pool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}

	p.cancel()
	p.wg.Wait()

	for {
		select {
		case t := <-p.queue:
			t.resolve(ErrStopped)
			p.release()
		default:
			p.logger.Debug("dispatch pool stopped")
			return
		}
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.queue:
			p.serve(id, t)
		}
	}
}

func (p *Pool) serve(id int, t *Ticket) {
	defer p.release()

	now := p.now()
	if !now.Before(t.deadline) {
		p.logger.Warn("request expired while queued",
			zap.String("request", t.id),
			zap.Duration("waited", now.Sub(t.arrived)),
		)
		t.resolve(ErrTimedOut)
		return
	}

	p.running.Add(1)
	defer p.running.Add(-1)

	ctx, cancel := context.WithDeadline(p.ctx, t.deadline)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &WorkError{RequestID: t.id, Err: fmt.Errorf("work panicked: %v", r)}
			}
		}()
		done <- t.work(ctx)
	}()

	started := p.now()
	select {
	case err := <-done:
		p.finish(id, t, started, err)
	case <-ctx.Done():
		// Slot reclaimed at the deadline even if the work function has
		// not returned; it was handed a cancelled ctx and is on its own.
		if p.ctx.Err() != nil {
			t.resolve(ErrStopped)
			return
		}
		p.logger.Warn("request timed out",
			zap.String("request", t.id),
			zap.Duration("elapsed", p.now().Sub(t.arrived)),
		)
		t.resolve(ErrTimedOut)
	}
}

func (p *Pool) finish(id int, t *Ticket, started time.Time, err error) {
	elapsed := p.now().Sub(started)

	switch {
	case err == nil:
		p.logger.Debug("request completed",
			zap.Int("worker", id),
			zap.String("request", t.id),
			zap.Duration("elapsed", elapsed),
		)
		t.resolve(nil)
	case errors.Is(err, context.DeadlineExceeded):
		t.resolve(ErrTimedOut)
	case errors.Is(err, context.Canceled) && p.ctx.Err() != nil:
		t.resolve(ErrStopped)
	default:
		var werr *WorkError
		if !errors.As(err, &werr) {
			werr = &WorkError{RequestID: t.id, Err: err}
		}
		p.logger.Warn("request failed",
			zap.Int("worker", id),
			zap.String("request", t.id),
			zap.Duration("elapsed", elapsed),
			zap.Error(werr.Err),
		)
		t.resolve(werr)
	}
}

func (p *Pool) release() {
	p.admitted.Add(-1)
	now := p.now().UnixNano()
	p.lastRelease.Store(now)
	p.saturatedSince.Store(0)
}
