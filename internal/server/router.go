package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omihq/omi-gateway/internal/observability"
)

// NewRouter registers every endpoint on a fresh mux
func NewRouter(h *Handler, readiness map[string]observability.HealthCheckFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/explain", withMetrics("/api/explain", h.HandleExplain))
	mux.HandleFunc("/api/process", withMetrics("/api/process", h.HandleProcess))
	mux.HandleFunc("/api/validate", withMetrics("/api/validate", h.HandleValidate))
	mux.HandleFunc("/api/audio", withMetrics("/api/audio", h.HandleAudioChunk))
	mux.HandleFunc("/api/webhook", withMetrics("/api/webhook", h.HandleWebhook))
	mux.HandleFunc("/api/sessions", withMetrics("/api/sessions", h.HandleSessions))

	// WebSocket route bypasses the metrics wrapper: the recorder would hide
	// the http.Hijacker the upgrade needs
	mux.HandleFunc("/ws/audio", h.HandleAudioWS)

	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(readiness))

	if h.cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}
