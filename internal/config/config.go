package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the omi-gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// OpenAI API configuration (chat completions + Whisper transcription)
	OpenAIAPIKey string  `envconfig:"OPENAI_API_KEY" required:"true"`
	ChatModel    string  `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	WhisperModel string  `envconfig:"WHISPER_MODEL" default:"whisper-1"`
	MaxTokens    int     `envconfig:"MAX_TOKENS" default:"1024"`
	Temperature  float32 `envconfig:"TEMPERATURE" default:"0.7"`

	// Transcription backend selection: "openai" or "deepgram"
	TranscribeBackend string `envconfig:"TRANSCRIBE_BACKEND" default:"openai"`
	DeepgramAPIKey    string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel     string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage  string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Audio session configuration
	AudioSampleRate   int    `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"` // Hz, mono 16-bit PCM
	FlushInterval     int    `envconfig:"FLUSH_INTERVAL" default:"10"`       // Seconds between timer flushes
	SessionIdleLimit  int    `envconfig:"SESSION_IDLE_LIMIT" default:"300"`  // Seconds before a session is swept
	SweepInterval     int    `envconfig:"SWEEP_INTERVAL" default:"60"`       // Seconds between idle sweeps
	ContainerDir      string `envconfig:"CONTAINER_DIR" default:"recordings"`
	TranscriptLogPath string `envconfig:"TRANSCRIPT_LOG_PATH" default:"transcripts.jsonl"`

	// Sanitizer policy configuration
	ReadmeMinLength  int `envconfig:"README_MIN_LENGTH" default:"50"`   // Minimum cleaned README length
	LicenseMinLength int `envconfig:"LICENSE_MIN_LENGTH" default:"200"` // Minimum LICENSE length

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	switch c.TranscribeBackend {
	case "openai":
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when TRANSCRIBE_BACKEND=deepgram")
		}
	default:
		return fmt.Errorf("TRANSCRIBE_BACKEND must be 'openai' or 'deepgram', got %q", c.TranscribeBackend)
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	if c.FlushInterval < 1 {
		return fmt.Errorf("FLUSH_INTERVAL must be at least 1 second, got %d", c.FlushInterval)
	}
	if c.SessionIdleLimit < c.FlushInterval {
		return fmt.Errorf("SESSION_IDLE_LIMIT (%d) must not be shorter than FLUSH_INTERVAL (%d)",
			c.SessionIdleLimit, c.FlushInterval)
	}
	return nil
}

// FlushIntervalDuration returns the flush interval as a time.Duration
func (c *Config) FlushIntervalDuration() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// SessionIdleDuration returns the session idle limit as a time.Duration
func (c *Config) SessionIdleDuration() time.Duration {
	return time.Duration(c.SessionIdleLimit) * time.Second
}

// SweepIntervalDuration returns the idle sweep interval as a time.Duration
func (c *Config) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
