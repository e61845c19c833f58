package whisper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModelEmptyNameUsesDefault(t *testing.T) {
	t.Parallel()

	model, fellBack := ResolveModel("")
	require.Equal(t, DefaultModel, model.Name)
	require.False(t, fellBack)
}

func TestResolveModelKnownName(t *testing.T) {
	t.Parallel()

	model, fellBack := ResolveModel("small.en")
	require.Equal(t, "small.en", model.Name)
	require.Equal(t, "ggml-small.en.bin", model.FileName)
	require.False(t, fellBack)
}

func TestResolveModelUnknownNameFallsBack(t *testing.T) {
	t.Parallel()

	model, fellBack := ResolveModel("super-huge")
	require.Equal(t, DefaultModel, model.Name)
	require.True(t, fellBack)
}

func TestCatalogCoversAllowedModelSet(t *testing.T) {
	t.Parallel()

	allowed := []string{
		"tiny.en", "tiny", "base.en", "base", "small.en", "small",
		"medium.en", "medium", "large", "large-v1", "large-v2", "large-v3",
	}
	for _, name := range allowed {
		model, ok := LookupModel(name)
		require.Truef(t, ok, "model %s should be in the catalog", name)
		require.NotEmpty(t, model.FileName)
		require.NotEmpty(t, model.URL)
	}
	require.Len(t, ModelNames(), len(allowed))
}

func TestLargeAliasesNewestLargeRevision(t *testing.T) {
	t.Parallel()

	large, ok := LookupModel("large")
	require.True(t, ok)
	v3, ok := LookupModel("large-v3")
	require.True(t, ok)
	require.Equal(t, v3.FileName, large.FileName)
	require.Equal(t, v3.SHA256, large.SHA256)
}
