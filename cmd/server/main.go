package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/llm"
	"github.com/omihq/omi-gateway/internal/observability"
	"github.com/omihq/omi-gateway/internal/sanitize"
	"github.com/omihq/omi-gateway/internal/server"
	"github.com/omihq/omi-gateway/internal/session"
	"github.com/omihq/omi-gateway/internal/transcribe"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("chat_model", cfg.ChatModel).
		Str("transcribe_backend", cfg.TranscribeBackend).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Omi Gateway starting")

	// Transcription backend
	transcriber, err := transcribe.NewBackend(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcription backend")
	}

	// Audio container sink and transcript log
	sink, err := session.NewFileSink(cfg.ContainerDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create container sink")
	}
	transcriptLog := session.NewFileTranscriptLog(cfg.TranscriptLogPath)

	// Session accumulator (starts the idle sweeper)
	accumulator := session.New(cfg, transcriber, sink, transcriptLog)

	// LLM client and placeholder validator
	llmClient := llm.NewClient(cfg)
	validator := sanitize.NewValidator(cfg.ReadmeMinLength, cfg.LicenseMinLength)

	handler := server.NewHandler(cfg, llmClient, validator, accumulator)

	// Readiness checks: constructing a backend validates its configuration
	// without spending API calls
	readiness := map[string]observability.HealthCheckFunc{
		"transcriber": func(ctx context.Context) (bool, error) {
			if transcriber == nil {
				return false, fmt.Errorf("transcription backend not configured")
			}
			return true, nil
		},
		"container_sink": func(ctx context.Context) (bool, error) {
			if _, err := os.Stat(cfg.ContainerDir); err != nil {
				return false, fmt.Errorf("container directory unavailable: %w", err)
			}
			return true, nil
		},
	}

	mux := server.NewRouter(handler, readiness)

	if cfg.MetricsEnabled {
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Flush remaining session audio before exit
	accumulator.Stop()

	logger.Info().Msg("Server exited gracefully")
}
