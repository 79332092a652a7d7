package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	ciErrors "codeintel/internal/errors"
)

func TestMapErrorCodeToStatus(t *testing.T) {
	tests := []struct {
		code ciErrors.ErrorCode
		want int
	}{
		{ciErrors.ConfigMissing, http.StatusServiceUnavailable},
		{ciErrors.RemoteQuota, http.StatusTooManyRequests},
		{ciErrors.RemoteUnavailable, http.StatusServiceUnavailable},
		{ciErrors.RemoteProtocol, http.StatusBadGateway},
		{ciErrors.MalformedResponse, http.StatusBadGateway},
		{ciErrors.PathViolation, http.StatusForbidden},
		{ciErrors.SyntaxRejection, http.StatusUnprocessableEntity},
		{ciErrors.FileTooLarge, http.StatusRequestEntityTooLarge},
		{ciErrors.MissingIndex, http.StatusNotFound},
		{ciErrors.SyncFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := MapErrorCodeToStatus(tt.code); got != tt.want {
				t.Errorf("MapErrorCodeToStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("boom"), http.StatusInternalServerError)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if resp.Error != "boom" {
		t.Errorf("Error = %q, want %q", resp.Error, "boom")
	}
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want %q", resp.Code, "INTERNAL_ERROR")
	}
}

func TestWriteError_CodeIntelError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := ciErrors.New(ciErrors.PathViolation, "path escapes repo root", nil)
	err.SuggestedFixes = []string{"use a path inside the repo"}

	WriteCodeIntelError(rec, err)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	var resp ErrorResponse
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &resp); decodeErr != nil {
		t.Fatalf("failed to decode response body: %v", decodeErr)
	}
	if resp.Code != string(ciErrors.PathViolation) {
		t.Errorf("Code = %q, want %q", resp.Code, ciErrors.PathViolation)
	}
	if len(resp.SuggestedFixes) != 1 {
		t.Errorf("SuggestedFixes = %v, want 1 entry", resp.SuggestedFixes)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, map[string]string{"status": "ok"}, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestBadRequestNotFoundInternalError(t *testing.T) {
	cases := []struct {
		name       string
		call       func(w http.ResponseWriter)
		wantStatus int
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "missing project_id") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "project not registered") }, http.StatusNotFound},
		{"internal error", func(w http.ResponseWriter) { InternalError(w, "sync failed", errors.New("disk full")) }, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.call(rec)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}
