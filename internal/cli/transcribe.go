package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/whisper-api/internal/audio"
	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const blankAudioToken = "[BLANK_AUDIO]"

func newTranscribeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file locally, without the HTTP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcribeFn := app.transcribeFn
			if transcribeFn == nil {
				transcribeFn = app.transcribeAudio
			}

			transcript, err := transcribeFn(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if isBlankTranscript(transcript) {
				app.log().Warn("no speech detected in the audio file")
			}
			return nil
		},
	}
}

func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	if transcript, skipped := a.silenceGateTranscript(audioPath); skipped {
		return transcript, nil
	}

	model, fellBack := whisper.ResolveModel(a.cfg.Model)
	if fellBack {
		a.log().Warn("configured model not in the catalog; using default",
			zap.String("requested", a.cfg.Model), zap.String("fallback", model.Name))
	}

	store, err := a.modelStore(a.progressEnabled())
	if err != nil {
		return "", err
	}

	modelPath, err := store.Ensure(ctx, model)
	if err != nil {
		return "", err
	}

	engine, err := whisper.NewBundledEngine(a.log())
	if err != nil {
		return "", err
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", modelPath), zap.String("language", a.cfg.Language))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	transcript, err := engine.Transcribe(ctx, whisper.TranscriptionRequest{
		AudioPath: audioPath,
		ModelPath: modelPath,
		Language:  a.cfg.Language,
	})
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return transcript, nil
}

func (a *appState) silenceGateTranscript(audioPath string) (string, bool) {
	if !a.cfg.SilenceGate {
		return "", false
	}

	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return "", false
	}

	silent, metrics, err := audio.IsSilentWAV(audioPath, a.cfg.SilenceThresholdDBFS)
	if err != nil {
		a.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return "", false
	}

	if !silent {
		return "", false
	}

	a.log().Info(
		"audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", a.cfg.SilenceThresholdDBFS),
	)

	return blankAudioToken, true
}

func isBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, blankAudioToken)
}
