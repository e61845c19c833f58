// Package httpapi exposes the transcription service over HTTP: POST
// /transcribe for work, GET /health for the orchestrator's poll, plus
// /healthz, /readyz and /models.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fmueller/whisper-api/internal/dispatch"
	"github.com/fmueller/whisper-api/internal/health"
	"github.com/fmueller/whisper-api/internal/whisper"
	"go.uber.org/zap"
)

type Options struct {
	Listen   string
	Pool     *dispatch.Pool
	Reporter *health.Reporter
	Store    *whisper.Store
	Engine   whisper.Engine
	Logger   *zap.Logger

	DefaultModel string
	Language     string
	// Threads is passed to the engine per job so concurrent transcriptions
	// share the CPU budget.
	Threads int

	MaxUploadBytes       int64
	SilenceGate          bool
	SilenceThresholdDBFS float64

	ShutdownGrace time.Duration
}

type Server struct {
	opts   Options
	logger *zap.Logger
	http   *http.Server
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 512 << 20
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}

	s := &Server{opts: opts, logger: opts.Logger}
	s.http = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.HandleFunc("GET /models", s.handleModels)

	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests within the shutdown grace and stops the dispatch pool.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.Duration("grace", s.opts.ShutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownGrace)
	defer cancel()

	err := s.http.Shutdown(shutdownCtx)
	s.opts.Pool.Stop()

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
