// Package server exposes the HTTP boundary: thin JSON handlers that delegate
// to the sanitizer, the session accumulator, and the LLM client. Every
// response carries a status field, even on internal error.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/llm"
	"github.com/omihq/omi-gateway/internal/observability"
	"github.com/omihq/omi-gateway/internal/sanitize"
	"github.com/omihq/omi-gateway/internal/session"
)

const (
	explainSystemPrompt = "You are a helpful assistant that explains technical concepts clearly and concisely. " +
		"Keep explanations short, concrete, and free of filler."

	processSystemPrompt = "You are a helpful assistant. Follow the user's instruction to transform the provided content. " +
		"Return only the transformed content, no commentary."

	maxAudioBodyBytes = 10 << 20 // 10 MiB per chunk request
)

// LLMClient is the completion surface the handlers depend on
type LLMClient interface {
	Complete(ctx context.Context, system, user string, history []llm.Message) (string, error)
	InferIntent(ctx context.Context, transcript string) (*llm.Intent, error)
}

// Accumulator is the session surface the handlers depend on
type Accumulator interface {
	ReceiveChunk(sessionID string, chunk []byte, sampleRate int) int
	EndSession(sessionID string) bool
	Snapshot() []session.SessionInfo
	Count() int
}

// Handler bundles the dependencies behind the HTTP endpoints
type Handler struct {
	cfg       *config.Config
	llm       LLMClient
	validator *sanitize.Validator
	acc       Accumulator
}

// NewHandler wires the endpoint dependencies
func NewHandler(cfg *config.Config, llmClient LLMClient, validator *sanitize.Validator, acc Accumulator) *Handler {
	return &Handler{
		cfg:       cfg,
		llm:       llmClient,
		validator: validator,
		acc:       acc,
	}
}

type explainRequest struct {
	Concept string `json:"concept"`
}

type processRequest struct {
	Content     string `json:"content"`
	Instruction string `json:"instruction,omitempty"`
}

type validateRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// webhookSegment is one speech segment from a wake-word webhook payload
type webhookSegment struct {
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Start   float64 `json:"start,omitempty"`
	End     float64 `json:"end,omitempty"`
}

type webhookRequest struct {
	Segments []webhookSegment `json:"segments"`
}

// HandleExplain forwards a concept to the LLM and returns the explanation
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	concept := strings.TrimSpace(req.Concept)
	if concept == "" {
		writeError(w, http.StatusBadRequest, "concept is required")
		return
	}

	result := sanitize.Detect(concept)
	recordMatches(result)

	explanation, err := h.llm.Complete(r.Context(), explainSystemPrompt, result.CleanedText, nil)
	if err != nil {
		log := observability.GetLogger()
		log.Error().Err(err).Msg("Explain request failed")
		writeError(w, http.StatusInternalServerError, "explanation service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"concept":     result.CleanedText,
		"explanation": explanation,
	})
}

// HandleProcess sanitizes content and applies an LLM instruction to it
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	result := sanitize.Detect(req.Content)
	recordMatches(result)

	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = "Improve the clarity and completeness of this content."
	}

	processed, err := h.llm.Complete(r.Context(), processSystemPrompt,
		instruction+"\n\n"+result.CleanedText, nil)
	if err != nil {
		log := observability.GetLogger()
		log.Error().Err(err).Msg("Process request failed")
		writeError(w, http.StatusInternalServerError, "processing service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "success",
		"result":            processed,
		"hadPlaceholders":   result.HadMatches,
		"matchedPatternIds": result.MatchedPatternIDs,
	})
}

// HandleValidate runs filename-aware placeholder validation. It never fails;
// the validation verdict is the payload.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	verdict := h.validator.Validate(req.Filename, req.Content)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"validation": verdict,
	})
}

// HandleAudioChunk ingests one binary audio chunk. Session id and sample rate
// arrive as query parameters; the body is raw PCM bytes.
func (h *Handler) HandleAudioChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("sid")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sid query parameter is required")
		return
	}

	sampleRate := h.cfg.AudioSampleRate
	if raw := r.URL.Query().Get("sample_rate"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "sample_rate must be a positive integer")
			return
		}
		sampleRate = parsed
	}

	body := http.MaxBytesReader(w, r.Body, maxAudioBodyBytes)
	chunk, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio body exceeds chunk size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read audio body")
		return
	}
	if len(chunk) == 0 {
		writeError(w, http.StatusBadRequest, "audio body is empty")
		return
	}

	count := h.acc.ReceiveChunk(sessionID, chunk, sampleRate)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"sessionId": sessionID,
		"chunks":    count,
	})
}

// HandleWebhook processes a wake-word webhook: concatenate speech segments,
// sanitize the transcript, and infer a structured intent
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("sid")

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	parts := make([]string, 0, len(req.Segments))
	for _, seg := range req.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "segments contain no speech text")
		return
	}

	transcript := sanitize.Clean(strings.Join(parts, " "))

	intent, err := h.llm.InferIntent(r.Context(), transcript)
	if err != nil {
		log := observability.GetLogger()
		log.Error().Err(err).
			Str("session_id", sessionID).
			Msg("Intent inference failed")
		writeError(w, http.StatusInternalServerError, "intent analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"sessionId":  sessionID,
		"transcript": transcript,
		"intent":     intent,
		"device":     llm.ResolveDeviceName(intent.Device),
	})
}

// HandleSessions lists live audio sessions
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	infos := h.acc.Snapshot()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"count":    len(infos),
		"sessions": infos,
	})
}

// recordMatches feeds sanitizer hits into metrics; Detect itself is pure
func recordMatches(result sanitize.Result) {
	for _, id := range result.MatchedPatternIDs {
		observability.RecordSanitizerMatch(id)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log := observability.GetLogger()
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMetrics wraps a handler with request counting and latency observation
func withMetrics(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		observability.RecordHTTPRequest(endpoint, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}
