package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fmueller/whisper-api/internal/download"
	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup [model...]",
		Short: "Download and verify speech model assets",
		Long: "Download and verify speech model assets ahead of serving, " +
			"for image pre-bake or first boot. With no arguments the configured default model is fetched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = []string{app.cfg.Model}
			}

			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			for _, name := range names {
				model, ok := whisper.LookupModel(name)
				if !ok {
					return fmt.Errorf("unknown model %q (known models: %s)", name, strings.Join(whisper.ModelNames(), ", "))
				}

				if err := app.installModel(cmd, model, modelDir); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func (a *appState) installModel(cmd *cobra.Command, model whisper.Model, modelDir string) error {
	path := filepath.Join(modelDir, model.FileName)

	needsDownload := false
	if err := download.VerifyFileChecksum(path, model.SHA256); err != nil {
		a.log().Warn("model missing or failed checksum verification; downloading fresh copy",
			zap.String("model", model.Name), zap.Error(err))
		needsDownload = true
	} else if !fileExists(path) {
		needsDownload = true
	}

	if !needsDownload {
		a.log().Info("model already present", zap.String("model", model.Name), zap.String("path", path))
		fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", model.Name, path)
		return nil
	}

	a.log().Info("downloading model", zap.String("model", model.Name), zap.String("path", path))
	if err := download.DownloadFile(cmd.Context(), download.Options{
		URL:            model.URL,
		Destination:    path,
		ExpectedSHA256: model.SHA256,
		NoProgress:     !a.progressEnabled(),
		Logger:         a.log(),
	}); err != nil {
		return fmt.Errorf("download model %s: %w", model.Name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", model.Name, path)
	return nil
}
