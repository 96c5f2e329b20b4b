package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/observability"
	"github.com/omihq/omi-gateway/internal/resilience"
)

// OpenAIBackend transcribes audio with the Whisper API
type OpenAIBackend struct {
	client         *openai.Client
	model          string
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
}

// NewOpenAIBackend creates a Whisper-backed transcriber
func NewOpenAIBackend(cfg *config.Config) *OpenAIBackend {
	return &OpenAIBackend{
		client: openai.NewClient(cfg.OpenAIAPIKey),
		model:  cfg.WhisperModel,
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		circuitBreaker: resilience.NewCircuitBreaker(
			"whisper",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// Name implements Backend
func (o *OpenAIBackend) Name() string { return "openai" }

// Transcribe implements Backend
func (o *OpenAIBackend) Transcribe(ctx context.Context, wav []byte) (string, error) {
	log := observability.GetLogger()
	start := time.Now()

	var transcript string
	err := o.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
				Model:    o.model,
				Reader:   bytes.NewReader(wav),
				FilePath: "segment.wav",
			})
			if err != nil {
				return err
			}
			transcript = resp.Text
			return nil
		}, o.retryConfig, resilience.IsRetryableNetworkError)
	})

	elapsed := time.Since(start)
	observability.UpdateCircuitBreakerState("whisper", int(o.circuitBreaker.GetState()))
	observability.RecordTranscription(err == nil, elapsed.Seconds())

	if err != nil {
		observability.IncrementCircuitBreakerFailures("whisper")
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("Whisper transcription failed")
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	log.Debug().Dur("elapsed", elapsed).Int("audio_bytes", len(wav)).Msg("Whisper transcription complete")
	return normalize(transcript), nil
}
