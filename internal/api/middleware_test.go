package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeintel/internal/logging"
)

func TestRequestIDMiddleware_GeneratesWhenAbsent(t *testing.T) {
	var seenID string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID == "" {
		t.Error("expected a generated request ID in context")
	}
	if rec.Header().Get("X-Request-ID") != seenID {
		t.Errorf("X-Request-ID header = %q, want %q", rec.Header().Get("X-Request-ID"), seenID)
	}
}

func TestRequestIDMiddleware_PreservesIncoming(t *testing.T) {
	var seenID string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID != "caller-supplied-id" {
		t.Errorf("seenID = %q, want %q", seenID, "caller-supplied-id")
	}
}

func TestGetRequestID_EmptyWithoutContextValue(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty string", got)
	}
}

func TestCORSMiddleware_HandlesPreflight(t *testing.T) {
	called := false
	handler := CORSMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/sync/run/my-project", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("expected OPTIONS preflight to short-circuit before reaching the next handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS origin header")
	}
}

func TestCORSMiddleware_PassesThroughNonOptions(t *testing.T) {
	called := false
	handler := CORSMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected GET request to reach the next handler")
	}
}

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Format: "json", Level: "error"})
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	wrapped.WriteHeader(http.StatusTeapot)
	if wrapped.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want %d", wrapped.statusCode, http.StatusTeapot)
	}
}

func TestResponseWriter_WriteDefaultsStatusToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: rec, statusCode: 0}

	if _, err := wrapped.Write([]byte("ok")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if wrapped.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", wrapped.statusCode, http.StatusOK)
	}
}

func TestLoggingMiddleware_CallsNextHandler(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Format: "json", Level: "info"})
	called := false
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sync/file", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected the wrapped handler to run")
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}
