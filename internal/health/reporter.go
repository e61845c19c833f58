// Package health answers liveness and readiness polls from pool statistics
// alone. Checks are side-effect-free and never contend for worker slots.
package health

import (
	"fmt"
	"time"

	"github.com/fmueller/whisper-api/internal/dispatch"
)

// Source supplies the pool snapshot the reporter reasons about.
type Source interface {
	Stats() dispatch.Stats
}

// Verdict is the outcome of a single liveness or readiness poll.
type Verdict struct {
	OK     bool
	Reason string
}

type Options struct {
	// ReadinessGrace is how long full saturation is tolerated before the
	// process reports not-ready. Keeps brief bursts from flapping status.
	ReadinessGrace time.Duration
	// StallAfter is how long full saturation may persist before the process
	// reports not-live. Every bound request must resolve within the request
	// timeout, so saturation outliving it with no slot release means the
	// pool is wedged.
	StallAfter time.Duration
}

type Reporter struct {
	source Source
	opts   Options
	now    func() time.Time
}

func NewReporter(source Source, opts Options) *Reporter {
	if opts.ReadinessGrace <= 0 {
		opts.ReadinessGrace = 5 * time.Second
	}
	if opts.StallAfter <= opts.ReadinessGrace {
		opts.StallAfter = opts.ReadinessGrace + 30*time.Second
	}

	return &Reporter{
		source: source,
		opts:   opts,
		now:    time.Now,
	}
}

func (r *Reporter) Live() Verdict {
	stats := r.source.Stats()
	if d := r.saturatedFor(stats); d > r.opts.StallAfter {
		return Verdict{Reason: fmt.Sprintf("no slot released for %s while fully saturated", d.Round(time.Second))}
	}
	return Verdict{OK: true}
}

func (r *Reporter) Ready() Verdict {
	stats := r.source.Stats()
	if d := r.saturatedFor(stats); d > r.opts.ReadinessGrace {
		return Verdict{Reason: fmt.Sprintf("all %d slots busy and queue full for %s", stats.Workers, d.Round(time.Second))}
	}
	return Verdict{OK: true}
}

// Readiness bundles a readiness verdict with pool gauges for /readyz.
type Readiness struct {
	Verdict
	Stats dispatch.Stats
}

func (r *Reporter) Readiness() Readiness {
	return Readiness{Verdict: r.Ready(), Stats: r.source.Stats()}
}

func (r *Reporter) saturatedFor(stats dispatch.Stats) time.Duration {
	if stats.SaturatedSince.IsZero() {
		return 0
	}
	return r.now().Sub(stats.SaturatedSince)
}
