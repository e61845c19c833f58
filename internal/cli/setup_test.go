package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupSkipsPresentModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	path := filepath.Join(modelDir, "ggml-tiny.en.bin")
	require.NoError(t, os.WriteFile(path, []byte("model payload"), 0o644))

	stdout, _, err := runCommand(t, []string{"setup", "--model-dir", modelDir, "tiny.en"})
	require.NoError(t, err)
	require.Contains(t, stdout, "already present")
	require.Contains(t, stdout, path)
}

func TestSetupListsKnownModelsOnUnknownName(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, []string{"setup", "--model-dir", t.TempDir(), "gigantic"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown model \"gigantic\"")
	require.Contains(t, err.Error(), "base")
}
