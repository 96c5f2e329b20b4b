// Package llm wraps the hosted chat-completion API behind retry and circuit
// breaker protection. All provider failures collapse into one retryable error
// class; callers log and present a generic message.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/observability"
	"github.com/omihq/omi-gateway/internal/resilience"
)

// Message is one prior conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client issues chat completions
type Client struct {
	api            *openai.Client
	model          string
	maxTokens      int
	temperature    float32
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
}

// NewClient creates an LLM client from configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		api:         openai.NewClient(cfg.OpenAIAPIKey),
		model:       cfg.ChatModel,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		circuitBreaker: resilience.NewCircuitBreaker(
			"llm",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// Complete sends a system instruction, optional prior turns, and the user
// content, returning the completion text
func (c *Client) Complete(ctx context.Context, system, user string, history []Message) (string, error) {
	return c.complete(ctx, system, user, history, nil)
}

// CompleteJSON is Complete with the response constrained to a JSON object
func (c *Client) CompleteJSON(ctx context.Context, system, user string, history []Message) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.complete(ctx, system, user, history, format)
}

func (c *Client) complete(ctx context.Context, system, user string, history []Message, format *openai.ChatCompletionResponseFormat) (string, error) {
	log := observability.GetLogger()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	req := openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: format,
	}

	start := time.Now()

	var completion string
	err := c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, req)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}
			completion = resp.Choices[0].Message.Content
			return nil
		}, c.retryConfig, resilience.IsRetryableNetworkError)
	})

	elapsed := time.Since(start)
	observability.UpdateCircuitBreakerState("llm", int(c.circuitBreaker.GetState()))
	observability.RecordLLMRequest(err == nil, elapsed.Seconds())

	if err != nil {
		observability.IncrementCircuitBreakerFailures("llm")
		log.Error().Err(err).Dur("elapsed", elapsed).Str("model", c.model).Msg("Chat completion failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	log.Debug().Dur("elapsed", elapsed).Str("model", c.model).Msg("Chat completion succeeded")
	return completion, nil
}
