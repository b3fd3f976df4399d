package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/medchat-go/internal/config"
	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

type stubResponder struct {
	mu        sync.Mutex
	result    entities.ResponseResult
	calls     int
	prompt    string
	sessionID string
	requestID string
}

func (s *stubResponder) Respond(ctx context.Context, prompt, sessionID string) entities.ResponseResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompt = prompt
	s.sessionID = sessionID
	s.requestID = RequestID(ctx)
	return s.result
}

func newTestServer(responder Responder, status func() map[string]any) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ServerConfig{Addr: ":0", CORSOrigins: []string{"https://clinic.example"}}
	return NewServer(responder, cfg, status, logger).Handler()
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat_ReturnsResultUnchanged(t *testing.T) {
	responder := &stubResponder{result: entities.ResponseResult{
		ResponseText: "Hello! How can I help?",
		Intent:       entities.IntentGreeting,
		Confidence:   1.0,
	}}
	h := newTestServer(responder, nil)

	rec := postChat(t, h, `{"prompt":"hi","session_id":"s1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got entities.ResponseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, responder.result, got)
	assert.Equal(t, "hi", responder.prompt)
	assert.Equal(t, "s1", responder.sessionID)
}

func TestChat_WireFieldNames(t *testing.T) {
	responder := &stubResponder{result: entities.ResponseResult{
		ResponseText: "x",
		Intent:       entities.IntentMedicalQuestion,
		Confidence:   1.0,
	}}
	h := newTestServer(responder, nil)

	rec := postChat(t, h, `{"prompt":"what is flu","session_id":"s1"}`)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "x", raw["responseText"])
	assert.Equal(t, "medical_question", raw["intent"])
	assert.Equal(t, 1.0, raw["confidence"])
}

func TestChat_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"no session", `{"prompt":"hi"}`},
		{"no prompt", `{"session_id":"s1"}`},
		{"empty prompt", `{"prompt":"","session_id":"s1"}`},
		{"not json", `prompt=hi`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &stubResponder{}
			h := newTestServer(responder, nil)

			rec := postChat(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, MissingFieldsMessage, body["error"])
			assert.Zero(t, responder.calls)
		})
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	h := newTestServer(&stubResponder{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	responder := &stubResponder{}
	h := newTestServer(responder, nil)

	rec := postChat(t, h, `{"prompt":"hi","session_id":"s1"}`)

	id := rec.Header().Get(requestIDHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, id, responder.requestID)
}

func TestRequestID_ClientSupplied(t *testing.T) {
	responder := &stubResponder{}
	h := newTestServer(responder, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"prompt":"hi","session_id":"s1"}`))
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "req-123", responder.requestID)
}

func TestHealth(t *testing.T) {
	h := newTestServer(&stubResponder{}, func() map[string]any {
		return map[string]any{"rules_version": 3}
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["rules_version"])
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestServer(&stubResponder{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://clinic.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(&stubResponder{}, config.ServerConfig{Addr: "127.0.0.1:0"}, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
