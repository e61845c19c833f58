package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	require.NotNil(t, cmd.Commands())
	require.NotNil(t, cmd.PersistentFlags().Lookup("model"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("model-dir"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("language"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("auto-download"))
	require.Equal(t, "true", cmd.PersistentFlags().Lookup("auto-download").DefValue)

	require.NotNil(t, cmd.Flags().Lookup("listen"))
	require.Equal(t, ":8000", cmd.Flags().Lookup("listen").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("workers"))
	require.Equal(t, "2", cmd.Flags().Lookup("workers").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("queue-size"))
	require.Equal(t, "-1", cmd.Flags().Lookup("queue-size").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("request-timeout"))
	require.Equal(t, "5m0s", cmd.Flags().Lookup("request-timeout").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("silence-gate"))
	require.Equal(t, "true", cmd.Flags().Lookup("silence-gate").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("silence-threshold-dbfs"))
	require.Equal(t, "-65", cmd.Flags().Lookup("silence-threshold-dbfs").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "setup")
	require.Contains(t, out.String(), "models")
	require.Contains(t, out.String(), "transcribe")
	require.Contains(t, out.String(), "healthcheck")
	require.Contains(t, out.String(), "version")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify speech model assets"},
		{name: "models", args: []string{"models", "--help"}, contains: "List known models"},
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe an audio file"},
		{name: "healthcheck", args: []string{"healthcheck", "--help"}, contains: "Probe the running server"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestVersionFlagOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"--version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "whisper-api v"), "expected version prefix, got: %s", stdout)
}

func TestSanitizeLanguage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "auto", sanitizeLanguage(""))
	require.Equal(t, "auto", sanitizeLanguage("  "))
	require.Equal(t, "en", sanitizeLanguage(" EN "))
	require.Equal(t, "de", sanitizeLanguage("de"))
}
