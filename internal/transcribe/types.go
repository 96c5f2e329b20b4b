// Package transcribe converts flushed WAV segments into text. Two backends
// are supported: OpenAI Whisper and Deepgram prerecorded. The backend is
// selected once at startup from configuration.
package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/omihq/omi-gateway/internal/config"
)

// Backend transcribes a complete WAV container into text
type Backend interface {
	// Transcribe returns the transcript for the given WAV bytes. An empty
	// transcript with a nil error means nothing was said; it is not an
	// error and callers must not record it.
	Transcribe(ctx context.Context, wav []byte) (string, error)

	// Name identifies the backend in logs and metrics
	Name() string
}

// NewBackend selects a transcription backend from configuration
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.TranscribeBackend {
	case "openai":
		return NewOpenAIBackend(cfg), nil
	case "deepgram":
		return NewDeepgramBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend: %q", cfg.TranscribeBackend)
	}
}

// normalize trims provider whitespace; silence-only audio comes back as ""
func normalize(transcript string) string {
	return strings.TrimSpace(transcript)
}
