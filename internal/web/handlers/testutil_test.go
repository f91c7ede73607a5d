package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/kozaktomas/face-registry/internal/registry"
	"github.com/kozaktomas/face-registry/internal/store"
)

// mockRegistry is a Registry whose answers are set per test
type mockRegistry struct {
	registerErr  error
	match        registry.Match
	recognizeErr error
	names        []string
	listErr      error
	deleteErr    error
	similar      []registry.Similar
	similarErr   error

	lastRegister  registry.RegisterRequest
	lastRecognize registry.RecognizeRequest
	lastDeleted   string
	lastK         int
}

func (m *mockRegistry) Register(_ context.Context, req registry.RegisterRequest) (*store.Record, error) {
	m.lastRegister = req
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &store.Record{ID: "test-id", Name: req.Name}, nil
}

func (m *mockRegistry) Recognize(_ context.Context, req registry.RecognizeRequest) (registry.Match, error) {
	m.lastRecognize = req
	return m.match, m.recognizeErr
}

func (m *mockRegistry) List(context.Context) ([]string, error) {
	return m.names, m.listErr
}

func (m *mockRegistry) Delete(_ context.Context, name string) error {
	m.lastDeleted = name
	return m.deleteErr
}

func (m *mockRegistry) Similar(_ context.Context, _ string, k int) ([]registry.Similar, error) {
	m.lastK = k
	return m.similar, m.similarErr
}

func newTestHandler(reg *mockRegistry) *FacesHandler {
	return NewFacesHandler(reg, logging.Discard())
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a failure with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result MessageResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result.Success {
		t.Error("expected success false")
	}
	if result.Message != expectedMessage {
		t.Errorf("expected message '%s', got '%s'", expectedMessage, result.Message)
	}
}
