package cli

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fmueller/whisper-api/internal/dispatch"
	"github.com/fmueller/whisper-api/internal/health"
	"github.com/fmueller/whisper-api/internal/httpapi"
	"github.com/fmueller/whisper-api/internal/whisper"
	"go.uber.org/zap"
)

func (a *appState) runServe(ctx context.Context) error {
	if err := a.cfg.Finalize(); err != nil {
		return err
	}

	store, err := a.modelStore(false)
	if err != nil {
		return err
	}

	engine, err := whisper.NewBundledEngine(a.log())
	if err != nil {
		return err
	}

	pool := dispatch.NewPool(dispatch.Config{
		Workers:   a.cfg.Workers,
		QueueSize: a.cfg.QueueSize,
		Timeout:   a.cfg.RequestTimeout,
	}, a.log())

	reporter := health.NewReporter(pool, health.Options{
		ReadinessGrace: a.cfg.ReadinessGrace,
		StallAfter:     a.cfg.StallAfter,
	})

	server := httpapi.NewServer(httpapi.Options{
		Listen:               a.cfg.Listen,
		Pool:                 pool,
		Reporter:             reporter,
		Store:                store,
		Engine:               engine,
		Logger:               a.log(),
		DefaultModel:         a.cfg.Model,
		Language:             a.cfg.Language,
		Threads:              threadsPerJob(a.cfg.Workers),
		MaxUploadBytes:       a.cfg.MaxUploadBytes,
		SilenceGate:          a.cfg.SilenceGate,
		SilenceThresholdDBFS: a.cfg.SilenceThresholdDBFS,
		ShutdownGrace:        a.cfg.ShutdownGrace,
	})

	a.log().Info("starting whisper-api",
		zap.String("listen", a.cfg.Listen),
		zap.Int("workers", a.cfg.Workers),
		zap.Int("queue_size", a.cfg.QueueSize),
		zap.Duration("request_timeout", a.cfg.RequestTimeout),
		zap.String("default_model", a.cfg.Model),
		zap.String("model_dir", store.Dir()),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx)
}

// threadsPerJob splits the CPU budget across workers so N concurrent
// transcriptions do not oversubscribe the host.
func threadsPerJob(workers int) int {
	if workers < 1 {
		return runtime.NumCPU()
	}

	threads := runtime.NumCPU() / workers
	if threads < 1 {
		threads = 1
	}
	return threads
}
