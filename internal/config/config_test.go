package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.OpenAIAPIKey != "test-openai-key" {
		t.Errorf("Expected OpenAIAPIKey 'test-openai-key', got '%s'", cfg.OpenAIAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("OPENAI_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when OPENAI_API_KEY is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("Expected default ChatModel 'gpt-4o-mini', got '%s'", cfg.ChatModel)
	}

	if cfg.WhisperModel != "whisper-1" {
		t.Errorf("Expected default WhisperModel 'whisper-1', got '%s'", cfg.WhisperModel)
	}

	if cfg.TranscribeBackend != "openai" {
		t.Errorf("Expected default TranscribeBackend 'openai', got '%s'", cfg.TranscribeBackend)
	}

	if cfg.AudioSampleRate != 16000 {
		t.Errorf("Expected default AudioSampleRate 16000, got %d", cfg.AudioSampleRate)
	}

	if cfg.FlushInterval != 10 {
		t.Errorf("Expected default FlushInterval 10, got %d", cfg.FlushInterval)
	}

	if cfg.SessionIdleLimit != 300 {
		t.Errorf("Expected default SessionIdleLimit 300, got %d", cfg.SessionIdleLimit)
	}

	if cfg.SweepInterval != 60 {
		t.Errorf("Expected default SweepInterval 60, got %d", cfg.SweepInterval)
	}

	if cfg.ReadmeMinLength != 50 {
		t.Errorf("Expected default ReadmeMinLength 50, got %d", cfg.ReadmeMinLength)
	}

	if cfg.LicenseMinLength != 200 {
		t.Errorf("Expected default LicenseMinLength 200, got %d", cfg.LicenseMinLength)
	}
}

func TestLoad_DeepgramBackendRequiresKey(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("TRANSCRIBE_BACKEND", "deepgram")
	os.Unsetenv("DEEPGRAM_API_KEY")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("TRANSCRIBE_BACKEND")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when TRANSCRIBE_BACKEND=deepgram without DEEPGRAM_API_KEY")
	}

	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed with deepgram key set: %v", err)
	}
	if cfg.TranscribeBackend != "deepgram" {
		t.Errorf("Expected TranscribeBackend 'deepgram', got '%s'", cfg.TranscribeBackend)
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("TRANSCRIBE_BACKEND", "sphinx")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("TRANSCRIBE_BACKEND")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unsupported TRANSCRIBE_BACKEND")
	}
}

func TestLoad_IdleLimitShorterThanFlush(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("FLUSH_INTERVAL", "30")
	os.Setenv("SESSION_IDLE_LIMIT", "10")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("FLUSH_INTERVAL")
	defer os.Unsetenv("SESSION_IDLE_LIMIT")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when SESSION_IDLE_LIMIT is shorter than FLUSH_INTERVAL")
	}
}

func TestDurationHelpers(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.FlushIntervalDuration().Seconds() != 10 {
		t.Errorf("Expected FlushIntervalDuration 10s, got %v", cfg.FlushIntervalDuration())
	}
	if cfg.SessionIdleDuration().Seconds() != 300 {
		t.Errorf("Expected SessionIdleDuration 300s, got %v", cfg.SessionIdleDuration())
	}
	if cfg.SweepIntervalDuration().Seconds() != 60 {
		t.Errorf("Expected SweepIntervalDuration 60s, got %v", cfg.SweepIntervalDuration())
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
