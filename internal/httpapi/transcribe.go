package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/whisper-api/internal/audio"
	"github.com/fmueller/whisper-api/internal/dispatch"
	"github.com/fmueller/whisper-api/internal/whisper"
	"go.uber.org/zap"
)

type transcribeResponse struct {
	Text      string `json:"text"`
	ModelUsed string `json:"model_used"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "no audio file part in the request")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	requested := r.FormValue("model_name")
	if strings.TrimSpace(requested) == "" {
		requested = s.opts.DefaultModel
	}
	model, fellBack := whisper.ResolveModel(requested)
	if fellBack {
		s.logger.Warn("requested model not allowed, falling back to default",
			zap.String("requested", requested),
			zap.String("fallback", model.Name),
		)
	}

	language := strings.TrimSpace(strings.ToLower(r.FormValue("language")))
	if language == "" {
		language = s.opts.Language
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file part in the request")
		return
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		writeError(w, http.StatusBadRequest, "no selected audio file (empty filename)")
		return
	}

	audioPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("failed to save upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store uploaded audio")
		return
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			s.logger.Warn("failed to remove temp upload", zap.String("path", audioPath), zap.Error(err))
		}
	}()

	if s.silentUpload(audioPath) {
		writeJSON(w, http.StatusOK, transcribeResponse{Text: "", ModelUsed: model.Name})
		return
	}

	var transcript string
	ticket, err := s.pool().Submit(func(ctx context.Context) error {
		modelPath, err := s.opts.Store.Ensure(ctx, model)
		if err != nil {
			return err
		}

		text, err := s.opts.Engine.Transcribe(ctx, whisper.TranscriptionRequest{
			AudioPath: audioPath,
			ModelPath: modelPath,
			Language:  language,
			Threads:   s.opts.Threads,
		})
		if err != nil {
			return err
		}

		transcript = text
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrOverloaded):
			writeError(w, http.StatusServiceUnavailable, "server busy, try again later")
		case errors.Is(err, dispatch.ErrStopped):
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("X-Request-ID", ticket.ID())

	switch err := ticket.Wait(r.Context()); {
	case err == nil:
		writeJSON(w, http.StatusOK, transcribeResponse{Text: transcript, ModelUsed: model.Name})
	case errors.Is(err, dispatch.ErrTimedOut):
		writeError(w, http.StatusGatewayTimeout, "transcription timed out")
	case errors.Is(err, whisper.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("whisper model %q is not available or failed to load", model.Name))
	case errors.Is(err, dispatch.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing left to answer.
		s.logger.Debug("client disconnected before transcription finished", zap.String("request", ticket.ID()))
	default:
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("an internal error occurred during transcription: %v", err))
	}
}

// saveUpload writes the upload to a temp file preserving the original
// extension, which the engine uses to sniff the container format.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".tmp"
	}

	tmp, err := os.CreateTemp("", "whisper-api-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return tmp.Name(), nil
}

// silentUpload runs the silence gate on WAV uploads. Near-silent audio
// resolves immediately with empty text, never consuming a worker slot.
func (s *Server) silentUpload(audioPath string) bool {
	if !s.opts.SilenceGate {
		return false
	}
	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return false
	}

	silent, metrics, err := audio.IsSilentWAV(audioPath, s.opts.SilenceThresholdDBFS)
	if err != nil {
		s.logger.Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return false
	}
	if !silent {
		return false
	}

	s.logger.Info("audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", s.opts.SilenceThresholdDBFS),
	)
	return true
}

func (s *Server) pool() *dispatch.Pool {
	return s.opts.Pool
}
