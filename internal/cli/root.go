// Package cli wires the whisper-api commands: the root command runs the
// HTTP server, subcommands cover model setup, one-shot transcription, the
// container health probe, and version output.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/whisper-api/internal/config"
	"github.com/fmueller/whisper-api/internal/logging"
	"github.com/fmueller/whisper-api/internal/platform"
	"github.com/fmueller/whisper-api/internal/version"
	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	cfg     config.Config
	loadErr error

	noProgress bool

	logger *zap.Logger

	serveFn      func(ctx context.Context) error
	transcribeFn func(ctx context.Context, audioPath string) (string, error)
}

func NewRootCmd() *cobra.Command {
	app := &appState{}
	app.cfg, app.loadErr = config.Load()
	if app.loadErr != nil {
		app.cfg = config.Default()
	}

	cmd := &cobra.Command{
		Use:           "whisper-api",
		Short:         "Speech transcription HTTP API backed by a whisper engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if app.loadErr != nil {
				return app.loadErr
			}

			logger, err := logging.New(logging.Options{Verbose: app.cfg.Verbose, JSON: app.cfg.JSONLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.cfg.Language = sanitizeLanguage(app.cfg.Language)
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.runServe
			}
			return serveFn(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindServeFlags(cmd, app)

	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newHealthcheckCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.cfg.Verbose, "verbose", app.cfg.Verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.cfg.JSONLogs, "json", app.cfg.JSONLogs, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.cfg.Model, "model", app.cfg.Model, "Default model name")
	cmd.PersistentFlags().StringVar(&app.cfg.ModelDir, "model-dir", app.cfg.ModelDir, "Directory where models are stored")
	cmd.PersistentFlags().BoolVar(&app.cfg.AutoDownload, "auto-download", app.cfg.AutoDownload, "Automatically download missing models")
	cmd.PersistentFlags().StringVar(&app.cfg.Language, "language", app.cfg.Language, "Language code (auto|en|de|...) for transcription")
}

func bindServeFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.cfg.Listen, "listen", app.cfg.Listen, "Listen address")
	cmd.Flags().IntVar(&app.cfg.Workers, "workers", app.cfg.Workers, "Number of concurrent transcription workers")
	cmd.Flags().IntVar(&app.cfg.QueueSize, "queue-size", app.cfg.QueueSize, "Pending request queue capacity; -1 means twice the worker count")
	cmd.Flags().DurationVar(&app.cfg.RequestTimeout, "request-timeout", app.cfg.RequestTimeout, "Per-request deadline")
	cmd.Flags().Int64Var(&app.cfg.MaxUploadBytes, "max-upload-bytes", app.cfg.MaxUploadBytes, "Upload size cap in bytes")
	cmd.Flags().DurationVar(&app.cfg.ShutdownGrace, "shutdown-grace", app.cfg.ShutdownGrace, "How long to drain in-flight requests on shutdown")
	cmd.Flags().BoolVar(&app.cfg.SilenceGate, "silence-gate", app.cfg.SilenceGate, "Detect near-silent WAV uploads and skip transcription")
	cmd.Flags().Float64Var(&app.cfg.SilenceThresholdDBFS, "silence-threshold-dbfs", app.cfg.SilenceThresholdDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) modelStore(showProgress bool) (*whisper.Store, error) {
	dir, err := a.modelStorageDir()
	if err != nil {
		return nil, err
	}

	return whisper.NewStore(whisper.StoreOptions{
		Dir:          dir,
		AutoDownload: a.cfg.AutoDownload,
		ShowProgress: showProgress,
		Logger:       a.log(),
	})
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
