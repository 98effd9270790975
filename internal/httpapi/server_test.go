package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/extract"
	"github.com/book-expert/voice-service/internal/httpapi"
	"github.com/book-expert/voice-service/internal/store"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockDependency = errors.New("mock dependency down")

// echoSynthesizer returns each chunk's text as its audio.
type echoSynthesizer struct{}

func (echoSynthesizer) SynthesizeSpeech(_ context.Context, text string, _ core.Voice, _ core.AudioConfig) ([]byte, error) {
	return []byte(text), nil
}

type failingSynthesizer struct{}

func (failingSynthesizer) SynthesizeSpeech(context.Context, string, core.Voice, core.AudioConfig) ([]byte, error) {
	return nil, errMockDependency
}

// panickingPipeline panics on every run.
type panickingPipeline struct{}

func (panickingPipeline) Available() bool { return true }

func (panickingPipeline) SynthesizeSpeech(context.Context, tts.SpeechRequest) (*tts.SynthesisResult, error) {
	panic("boom")
}

func (panickingPipeline) SynthesizeDocument(context.Context, tts.DocumentRequest) (*tts.SynthesisResult, error) {
	panic("boom")
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()

	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config, synthesizer core.Synthesizer) *tts.Pipeline {
	t.Helper()

	log := createTestLogger(t)

	pipeline, err := tts.NewPipeline(cfg, extract.NewDefaultRegistry(cfg, log), synthesizer, log)
	require.NoError(t, err)

	return pipeline
}

func newTestHandler(t *testing.T, cfg *config.Config, deps httpapi.Dependencies) http.Handler {
	t.Helper()

	if deps.Pipeline == nil {
		deps.Pipeline = newTestPipeline(t, cfg, echoSynthesizer{})
	}

	return httpapi.NewServer(cfg, deps, createTestLogger(t)).Handler()
}

func serve(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())

	return body
}

func TestRoot(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, newTestConfig(), httpapi.Dependencies{})

	recorder := serve(t, handler, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "All working", recorder.Body.String())
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, newTestConfig(), httpapi.Dependencies{})

	recorder := serve(t, handler, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, map[string]any{"error": "Route not found", "method": "GET", "path": "/nope"}, decodeBody(t, recorder))

	recorder = serve(t, handler, http.MethodGet, "/synthesize", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)

	recorder = serve(t, handler, http.MethodPost, "/api/payment/order", `{"plan":"pro"}`, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code, "payment routes are not mounted without a payment service")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()

	healthy := newTestHandler(t, cfg, httpapi.Dependencies{
		Pipeline: newTestPipeline(t, cfg, nil),
		Checks: map[string]httpapi.HealthCheck{
			"database": func(context.Context) error { return nil },
		},
	})

	recorder := serve(t, healthy, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["synthesis"])
	assert.Equal(t, map[string]any{"database": "ok"}, body["checks"])

	degraded := newTestHandler(t, cfg, httpapi.Dependencies{
		Checks: map[string]httpapi.HealthCheck{
			"nats": func(context.Context) error { return errMockDependency },
		},
	})

	recorder = serve(t, degraded, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	body = decodeBody(t, recorder)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["synthesis"])
}

func TestStats(t *testing.T) {
	t.Parallel()

	testStore, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testStore.Close() })

	_, err = testStore.UpdatePlan(context.Background(), core.User{ID: "user-1", Plan: "Basic", SubscriptionStatus: "active"})
	require.NoError(t, err)

	handler := newTestHandler(t, newTestConfig(), httpapi.Dependencies{Stats: testStore})

	recorder := serve(t, handler, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"users": float64(1), "transactions": float64(0)}, body["stats"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, newTestConfig(), httpapi.Dependencies{})

	serve(t, handler, http.MethodGet, "/", "", nil)

	recorder := serve(t, handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "voice_service_http_requests_total")
}

func TestCORS(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}

	handler := newTestHandler(t, cfg, httpapi.Dependencies{})

	recorder := serve(t, handler, http.MethodOptions, "/synthesize-file", "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": http.MethodPost,
	})
	require.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "http://localhost:5173", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, recorder.Header().Get("Access-Control-Expose-Headers"), "X-Chunk-Count")

	recorder = serve(t, handler, http.MethodGet, "/", "", map[string]string{"Origin": "https://evil.example"})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, newTestConfig(), httpapi.Dependencies{Pipeline: panickingPipeline{}})

	recorder := serve(t, handler, http.MethodPost, "/synthesize", `{"text":"hello"}`, nil)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "Something went wrong!", decodeBody(t, recorder)["error"])
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.Server.MaxBodyBytes = 64

	handler := newTestHandler(t, cfg, httpapi.Dependencies{})

	recorder := serve(t, handler, http.MethodPost, "/synthesize", `{"text":"`+strings.Repeat("a", 200)+`"}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
	assert.Equal(t, "Request body too large", decodeBody(t, recorder)["error"])
}
