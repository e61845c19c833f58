package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fmueller/whisper-api/internal/download"
	"go.uber.org/zap"
)

// ErrModelUnavailable marks a model that cannot be served: not on disk and
// auto-download is off, or the download failed.
var ErrModelUnavailable = errors.New("model unavailable")

// Store resolves catalog models to files on disk, downloading them at most
// once each. Concurrent requests for an absent model trigger one download;
// the rest wait on the per-model lock.
type Store struct {
	dir          string
	autoDownload bool
	showProgress bool
	logger       *zap.Logger

	// fetch is swapped out in tests.
	fetch func(ctx context.Context, model Model, dest string) error

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type StoreOptions struct {
	Dir          string
	AutoDownload bool
	ShowProgress bool
	Logger       *zap.Logger
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("model directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model directory %s: %w", opts.Dir, err)
	}

	s := &Store{
		dir:          opts.Dir,
		autoDownload: opts.AutoDownload,
		showProgress: opts.ShowProgress,
		logger:       opts.Logger,
		locks:        map[string]*sync.Mutex{},
	}
	s.fetch = s.downloadModel

	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the model lives (or would live) on disk.
func (s *Store) Path(model Model) string {
	return filepath.Join(s.dir, model.FileName)
}

// Downloaded reports whether the model file is already present.
func (s *Store) Downloaded(model Model) bool {
	_, err := os.Stat(s.Path(model))
	return err == nil
}

// Ensure resolves a catalog model to a local file path, downloading it
// first when needed and allowed.
func (s *Store) Ensure(ctx context.Context, model Model) (string, error) {
	lock := s.modelLock(model.FileName)
	lock.Lock()
	defer lock.Unlock()

	path := s.Path(model)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat model file: %w", err)
	}

	if !s.autoDownload {
		return "", fmt.Errorf("model %q missing at %s and auto-download is disabled: %w", model.Name, path, ErrModelUnavailable)
	}

	s.logger.Info("model not found, downloading",
		zap.String("model", model.Name),
		zap.String("destination", path),
	)
	if err := s.fetch(ctx, model, path); err != nil {
		return "", fmt.Errorf("download model %q: %v: %w", model.Name, err, ErrModelUnavailable)
	}

	return path, nil
}

func (s *Store) downloadModel(ctx context.Context, model Model, dest string) error {
	return download.DownloadFile(ctx, download.Options{
		URL:            model.URL,
		Destination:    dest,
		ExpectedSHA256: model.SHA256,
		NoProgress:     !s.showProgress,
		Logger:         s.logger,
	})
}

func (s *Store) modelLock(fileName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[fileName]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[fileName] = lock
	}
	return lock
}
