package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/observability"
	"github.com/omihq/omi-gateway/internal/resilience"
)

// DeepgramBackend transcribes audio with Deepgram's prerecorded API
type DeepgramBackend struct {
	client         *prerecorded.Client
	model          string
	language       string
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
}

// NewDeepgramBackend creates a Deepgram-backed transcriber
func NewDeepgramBackend(cfg *config.Config) *DeepgramBackend {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	return &DeepgramBackend{
		client:   prerecorded.New(rest),
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		circuitBreaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// Name implements Backend
func (d *DeepgramBackend) Name() string { return "deepgram" }

// Transcribe implements Backend
func (d *DeepgramBackend) Transcribe(ctx context.Context, wav []byte) (string, error) {
	log := observability.GetLogger()
	start := time.Now()

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	var transcript string
	err := d.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			res, err := d.client.FromStream(ctx, bytes.NewReader(wav), options)
			if err != nil {
				return err
			}

			if res == nil || res.Results == nil ||
				len(res.Results.Channels) == 0 ||
				len(res.Results.Channels[0].Alternatives) == 0 {
				transcript = ""
				return nil
			}

			transcript = res.Results.Channels[0].Alternatives[0].Transcript
			return nil
		}, d.retryConfig, resilience.IsRetryableNetworkError)
	})

	elapsed := time.Since(start)
	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
	observability.RecordTranscription(err == nil, elapsed.Seconds())

	if err != nil {
		observability.IncrementCircuitBreakerFailures("deepgram")
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("Deepgram transcription failed")
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}

	log.Debug().Dur("elapsed", elapsed).Int("audio_bytes", len(wav)).Msg("Deepgram transcription complete")
	return normalize(transcript), nil
}
