package health

import (
	"testing"
	"time"

	"github.com/fmueller/whisper-api/internal/dispatch"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	stats dispatch.Stats
}

func (s *stubSource) Stats() dispatch.Stats {
	return s.stats
}

func newTestReporter(source Source, opts Options, now time.Time) *Reporter {
	reporter := NewReporter(source, opts)
	reporter.now = func() time.Time { return now }
	return reporter
}

func TestReadyWhenCapacityAvailable(t *testing.T) {
	t.Parallel()

	source := &stubSource{stats: dispatch.Stats{Workers: 2, QueueCapacity: 1, Running: 1}}
	reporter := newTestReporter(source, Options{ReadinessGrace: 5 * time.Second}, time.Now())

	require.True(t, reporter.Ready().OK)
	require.True(t, reporter.Live().OK)
}

func TestReadyToleratesBriefSaturation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	source := &stubSource{stats: dispatch.Stats{
		Workers:        2,
		QueueCapacity:  1,
		Running:        2,
		Queued:         1,
		SaturatedSince: now.Add(-2 * time.Second),
	}}
	reporter := newTestReporter(source, Options{ReadinessGrace: 5 * time.Second}, now)

	require.True(t, reporter.Ready().OK)
}

func TestNotReadyAfterGracePeriod(t *testing.T) {
	t.Parallel()

	now := time.Now()
	source := &stubSource{stats: dispatch.Stats{
		Workers:        2,
		QueueCapacity:  1,
		Running:        2,
		Queued:         1,
		SaturatedSince: now.Add(-10 * time.Second),
	}}
	reporter := newTestReporter(source, Options{ReadinessGrace: 5 * time.Second, StallAfter: time.Minute}, now)

	verdict := reporter.Ready()
	require.False(t, verdict.OK)
	require.Contains(t, verdict.Reason, "slots busy")

	// Saturated but not yet stalled: still live.
	require.True(t, reporter.Live().OK)
}

func TestReadyRecoversOnceCapacityFrees(t *testing.T) {
	t.Parallel()

	now := time.Now()
	source := &stubSource{stats: dispatch.Stats{
		Workers:        2,
		QueueCapacity:  1,
		Running:        2,
		Queued:         1,
		SaturatedSince: now.Add(-time.Minute),
	}}
	reporter := newTestReporter(source, Options{ReadinessGrace: 5 * time.Second, StallAfter: 10 * time.Minute}, now)
	require.False(t, reporter.Ready().OK)

	source.stats = dispatch.Stats{Workers: 2, QueueCapacity: 1, Running: 1, LastRelease: now}
	require.True(t, reporter.Ready().OK)
}

func TestNotLiveWhenPoolIsWedged(t *testing.T) {
	t.Parallel()

	now := time.Now()
	source := &stubSource{stats: dispatch.Stats{
		Workers:        2,
		QueueCapacity:  1,
		Running:        2,
		Queued:         1,
		SaturatedSince: now.Add(-10 * time.Minute),
	}}
	reporter := newTestReporter(source, Options{ReadinessGrace: 5 * time.Second, StallAfter: 5 * time.Minute}, now)

	verdict := reporter.Live()
	require.False(t, verdict.OK)
	require.Contains(t, verdict.Reason, "no slot released")
}

func TestReadinessIncludesPoolGauges(t *testing.T) {
	t.Parallel()

	stats := dispatch.Stats{Workers: 4, QueueCapacity: 8, Running: 3, Queued: 2}
	reporter := newTestReporter(&stubSource{stats: stats}, Options{}, time.Now())

	readiness := reporter.Readiness()
	require.True(t, readiness.OK)
	require.Equal(t, stats, readiness.Stats)
}

func TestStallWindowNeverBelowReadinessGrace(t *testing.T) {
	t.Parallel()

	reporter := NewReporter(&stubSource{}, Options{ReadinessGrace: time.Minute, StallAfter: time.Second})
	require.Equal(t, time.Minute+30*time.Second, reporter.opts.StallAfter)
}
