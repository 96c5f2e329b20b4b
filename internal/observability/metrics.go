package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omi_gateway_active_sessions",
		Help: "Number of active audio sessions",
	})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omi_gateway_sessions_total",
		Help: "Total number of audio sessions created",
	})

	sessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omi_gateway_sessions_swept_total",
		Help: "Total number of sessions removed by the idle sweep",
	})

	chunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omi_gateway_audio_chunks_total",
		Help: "Total number of audio chunks received",
	})

	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omi_gateway_audio_bytes_total",
		Help: "Total audio payload bytes received",
	})

	flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omi_gateway_flushes_total",
		Help: "Total number of session buffer flushes",
	}, []string{"status"}) // status: "success", "error", "empty"

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omi_gateway_transcription_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omi_gateway_transcription_latency_seconds",
		Help:    "Transcription request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omi_gateway_llm_requests_total",
		Help: "Total number of LLM completion requests",
	}, []string{"status"})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omi_gateway_llm_latency_seconds",
		Help:    "LLM completion latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Sanitizer metrics
	sanitizerMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omi_gateway_sanitizer_matches_total",
		Help: "Total number of placeholder pattern matches",
	}, []string{"pattern"})

	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omi_gateway_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "omi_gateway_http_latency_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"endpoint"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "omi_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omi_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordSessionCreated records the creation of a new audio session
func RecordSessionCreated() {
	activeSessions.Inc()
	sessionsTotal.Inc()
}

// RecordSessionRemoved records the removal of an audio session
func RecordSessionRemoved(swept bool) {
	activeSessions.Dec()
	if swept {
		sessionsSwept.Inc()
	}
}

// RecordChunk records a received audio chunk
func RecordChunk(bytes int) {
	chunksReceived.Inc()
	audioBytesReceived.Add(float64(bytes))
}

// RecordFlush records the outcome of a session buffer flush
func RecordFlush(status string) {
	flushes.WithLabelValues(status).Inc()
}

// RecordTranscription records a transcription request outcome and latency
func RecordTranscription(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(status).Inc()
	transcriptionLatency.Observe(seconds)
}

// RecordLLMRequest records an LLM request outcome and latency
func RecordLLMRequest(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	llmRequests.WithLabelValues(status).Inc()
	llmLatency.Observe(seconds)
}

// RecordSanitizerMatch records a placeholder pattern match
func RecordSanitizerMatch(patternID string) {
	sanitizerMatches.WithLabelValues(patternID).Inc()
}

// RecordHTTPRequest records an HTTP request outcome and latency
func RecordHTTPRequest(endpoint, status string, seconds float64) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
	httpLatency.WithLabelValues(endpoint).Observe(seconds)
}

// UpdateCircuitBreakerState updates the circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments the circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
