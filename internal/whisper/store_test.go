package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreEnsureReturnsExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	model, _ := LookupModel("tiny")
	require.NoError(t, os.WriteFile(filepath.Join(dir, model.FileName), []byte("ggml"), 0o644))

	store, err := NewStore(StoreOptions{Dir: dir, AutoDownload: false})
	require.NoError(t, err)

	path, err := store.Ensure(context.Background(), model)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, model.FileName), path)
	require.True(t, store.Downloaded(model))
}

func TestStoreEnsureDownloadsMissingModel(t *testing.T) {
	t.Parallel()

	store, err := NewStore(StoreOptions{Dir: t.TempDir(), AutoDownload: true})
	require.NoError(t, err)

	var fetched atomic.Int64
	store.fetch = func(ctx context.Context, model Model, dest string) error {
		fetched.Add(1)
		return os.WriteFile(dest, []byte("ggml"), 0o644)
	}

	model, _ := LookupModel("base")
	path, err := store.Ensure(context.Background(), model)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, int64(1), fetched.Load())
}

func TestStoreEnsureDownloadsAtMostOncePerModel(t *testing.T) {
	t.Parallel()

	store, err := NewStore(StoreOptions{Dir: t.TempDir(), AutoDownload: true})
	require.NoError(t, err)

	var fetched atomic.Int64
	store.fetch = func(ctx context.Context, model Model, dest string) error {
		fetched.Add(1)
		return os.WriteFile(dest, []byte("ggml"), 0o644)
	}

	model, _ := LookupModel("base")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Ensure(context.Background(), model)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), fetched.Load())
}

func TestStoreEnsureWithoutAutoDownload(t *testing.T) {
	t.Parallel()

	store, err := NewStore(StoreOptions{Dir: t.TempDir(), AutoDownload: false})
	require.NoError(t, err)

	model, _ := LookupModel("tiny")
	_, err = store.Ensure(context.Background(), model)
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestStoreEnsureWrapsDownloadFailure(t *testing.T) {
	t.Parallel()

	store, err := NewStore(StoreOptions{Dir: t.TempDir(), AutoDownload: true})
	require.NoError(t, err)

	store.fetch = func(ctx context.Context, model Model, dest string) error {
		return errors.New("registry unreachable")
	}

	model, _ := LookupModel("tiny")
	_, err = store.Ensure(context.Background(), model)
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.Contains(t, err.Error(), "registry unreachable")
}

func TestNewStoreRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewStore(StoreOptions{})
	require.Error(t, err)
}
