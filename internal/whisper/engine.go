package whisper

import "context"

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
	// Threads limits the engine's CPU threads for this job; 0 lets the
	// engine decide.
	Threads int
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}
