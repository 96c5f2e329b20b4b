package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/llm"
	"github.com/omihq/omi-gateway/internal/sanitize"
	"github.com/omihq/omi-gateway/internal/session"
)

// stubLLM echoes canned responses and records the last prompt
type stubLLM struct {
	completion string
	intent     *llm.Intent
	err        error
	lastUser   string
}

func (s *stubLLM) Complete(ctx context.Context, system, user string, history []llm.Message) (string, error) {
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	return s.completion, nil
}

func (s *stubLLM) InferIntent(ctx context.Context, transcript string) (*llm.Intent, error) {
	s.lastUser = transcript
	if s.err != nil {
		return nil, s.err
	}
	return s.intent, nil
}

// stubAccumulator records chunk calls
type stubAccumulator struct {
	chunks     [][]byte
	sessionIDs []string
	rates      []int
	ended      []string
	infos      []session.SessionInfo
}

func (s *stubAccumulator) ReceiveChunk(sessionID string, chunk []byte, sampleRate int) int {
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.chunks = append(s.chunks, buf)
	s.sessionIDs = append(s.sessionIDs, sessionID)
	s.rates = append(s.rates, sampleRate)
	return len(s.chunks)
}

func (s *stubAccumulator) EndSession(sessionID string) bool {
	s.ended = append(s.ended, sessionID)
	return true
}

func (s *stubAccumulator) Snapshot() []session.SessionInfo { return s.infos }

func (s *stubAccumulator) Count() int { return len(s.infos) }

func testHandler(llmStub *stubLLM, acc *stubAccumulator) *Handler {
	cfg := &config.Config{
		AudioSampleRate:  16000,
		ReadmeMinLength:  50,
		LicenseMinLength: 200,
	}
	return NewHandler(cfg, llmStub, sanitize.NewValidator(cfg.ReadmeMinLength, cfg.LicenseMinLength), acc)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return body
}

func TestHandleExplain(t *testing.T) {
	llmStub := &stubLLM{completion: "a map is a hash table"}
	h := testHandler(llmStub, &stubAccumulator{})

	req := httptest.NewRequest(http.MethodPost, "/api/explain",
		strings.NewReader(`{"concept":"go maps [YOUR_DETAIL]"}`))
	rec := httptest.NewRecorder()
	h.HandleExplain(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Errorf("expected success status, got %v", body["status"])
	}
	if body["explanation"] != "a map is a hash table" {
		t.Errorf("unexpected explanation: %v", body["explanation"])
	}

	// Placeholders are stripped before the prompt reaches the LLM
	if strings.Contains(llmStub.lastUser, "[YOUR_DETAIL]") {
		t.Errorf("placeholder leaked into LLM prompt: %q", llmStub.lastUser)
	}
}

func TestHandleExplain_MissingConcept(t *testing.T) {
	h := testHandler(&stubLLM{}, &stubAccumulator{})

	for _, payload := range []string{`{}`, `{"concept":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/explain", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.HandleExplain(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: expected 400, got %d", payload, rec.Code)
		}
		if body := decodeBody(t, rec); body["status"] != "error" {
			t.Errorf("payload %q: expected error envelope, got %v", payload, body)
		}
	}
}

func TestHandleExplain_LLMFailure(t *testing.T) {
	h := testHandler(&stubLLM{err: errors.New("rate limited")}, &stubAccumulator{})

	req := httptest.NewRequest(http.MethodPost, "/api/explain",
		strings.NewReader(`{"concept":"channels"}`))
	rec := httptest.NewRecorder()
	h.HandleExplain(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "error" {
		t.Errorf("expected error envelope, got %v", body)
	}
	// Provider internals never leak to the caller
	if msg, _ := body["message"].(string); strings.Contains(msg, "rate limited") {
		t.Errorf("provider error leaked: %q", msg)
	}
}

func TestHandleProcess(t *testing.T) {
	llmStub := &stubLLM{completion: "rewritten"}
	h := testHandler(llmStub, &stubAccumulator{})

	req := httptest.NewRequest(http.MethodPost, "/api/process",
		strings.NewReader(`{"content":"visit example.com for details","instruction":"shorten"}`))
	rec := httptest.NewRecorder()
	h.HandleProcess(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["hadPlaceholders"] != true {
		t.Errorf("expected hadPlaceholders true, got %v", body["hadPlaceholders"])
	}
	if body["result"] != "rewritten" {
		t.Errorf("unexpected result: %v", body["result"])
	}
}

func TestHandleValidate(t *testing.T) {
	h := testHandler(&stubLLM{}, &stubAccumulator{})

	req := httptest.NewRequest(http.MethodPost, "/api/validate",
		strings.NewReader(`{"filename":"README.md","content":""}`))
	rec := httptest.NewRecorder()
	h.HandleValidate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("validation verdicts ride a 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	verdict, ok := body["validation"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing validation object: %v", body)
	}
	if verdict["valid"] != false {
		t.Errorf("empty README must be invalid, got %v", verdict["valid"])
	}
}

func TestHandleAudioChunk(t *testing.T) {
	acc := &stubAccumulator{}
	h := testHandler(&stubLLM{}, acc)

	req := httptest.NewRequest(http.MethodPost, "/api/audio?sid=device-42&sample_rate=8000",
		bytes.NewReader([]byte{1, 2, 3, 4}))
	rec := httptest.NewRecorder()
	h.HandleAudioChunk(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if len(acc.chunks) != 1 || !bytes.Equal(acc.chunks[0], []byte{1, 2, 3, 4}) {
		t.Errorf("chunk not forwarded: %v", acc.chunks)
	}
	if acc.sessionIDs[0] != "device-42" {
		t.Errorf("expected session device-42, got %q", acc.sessionIDs[0])
	}
	if acc.rates[0] != 8000 {
		t.Errorf("expected sample rate 8000, got %d", acc.rates[0])
	}

	body := decodeBody(t, rec)
	if body["chunks"] != float64(1) {
		t.Errorf("expected chunk count 1, got %v", body["chunks"])
	}
}

func TestHandleAudioChunk_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   []byte
	}{
		{"missing sid", "/api/audio", []byte{1}},
		{"empty body", "/api/audio?sid=x", nil},
		{"bad sample rate", "/api/audio?sid=x&sample_rate=zero", []byte{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &stubAccumulator{}
			h := testHandler(&stubLLM{}, acc)

			req := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.HandleAudioChunk(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if len(acc.chunks) != 0 {
				t.Errorf("rejected request must not reach the accumulator")
			}
		})
	}
}

func TestHandleAudioChunk_OversizedBody(t *testing.T) {
	acc := &stubAccumulator{}
	h := testHandler(&stubLLM{}, acc)

	big := bytes.Repeat([]byte{0xAB}, (10<<20)+1)
	req := httptest.NewRequest(http.MethodPost, "/api/audio?sid=x", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	h.HandleAudioChunk(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized chunk, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "error" {
		t.Errorf("expected JSON error envelope, got %v", body)
	}
	// A truncated chunk must never reach the accumulator
	if len(acc.chunks) != 0 {
		t.Errorf("oversized chunk was forwarded: %d chunks", len(acc.chunks))
	}
}

func TestHandleWebhook(t *testing.T) {
	llmStub := &stubLLM{intent: &llm.Intent{
		Action:           llm.ActionTurnOn,
		Device:           "the lamp",
		AssistantMessage: "Turning on the light.",
	}}
	h := testHandler(llmStub, &stubAccumulator{})

	payload := `{"segments":[{"text":"it is too dark"},{"text":"turn on the lamp"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook?sid=device-42", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Segments concatenate in order into one transcript
	if llmStub.lastUser != "it is too dark turn on the lamp" {
		t.Errorf("unexpected transcript: %q", llmStub.lastUser)
	}

	body := decodeBody(t, rec)
	if body["device"] != "room light" {
		t.Errorf("expected canonical device name, got %v", body["device"])
	}
}

func TestHandleWebhook_NoSpeech(t *testing.T) {
	h := testHandler(&stubLLM{}, &stubAccumulator{})

	for _, payload := range []string{`{"segments":[]}`, `{"segments":[{"text":"  "}]}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: expected 400, got %d", payload, rec.Code)
		}
	}
}

func TestHandleSessions(t *testing.T) {
	acc := &stubAccumulator{infos: []session.SessionInfo{
		{ID: "a", ChunkCount: 3},
		{ID: "b", ChunkCount: 7},
	}}
	h := testHandler(&stubLLM{}, acc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	h.HandleSessions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", body["count"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := testHandler(&stubLLM{}, &stubAccumulator{})

	handlers := map[string]http.HandlerFunc{
		"/api/explain":  h.HandleExplain,
		"/api/process":  h.HandleProcess,
		"/api/validate": h.HandleValidate,
		"/api/audio":    h.HandleAudioChunk,
		"/api/webhook":  h.HandleWebhook,
	}

	for path, fn := range handlers {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		fn(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405 for GET, got %d", path, rec.Code)
		}
		if body := decodeBody(t, rec); body["status"] != "error" {
			t.Errorf("%s: expected JSON error envelope", path)
		}
	}
}
