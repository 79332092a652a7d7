package api

import (
	"encoding/json"
	"net/http"

	"codeintel/internal/errors"
)

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error          string      `json:"error"`
	Code           string      `json:"code"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []string    `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{Error: err.Error()}

	if ciErr, ok := err.(*errors.CodeIntelError); ok {
		resp.Code = string(ciErr.Code)
		resp.Details = ciErr.Details
		resp.SuggestedFixes = ciErr.SuggestedFixes
	} else {
		resp.Code = "INTERNAL_ERROR"
	}

	json.NewEncoder(w).Encode(resp)
}

// WriteCodeIntelError writes a CodeIntelError with automatic status mapping.
func WriteCodeIntelError(w http.ResponseWriter, err *errors.CodeIntelError) {
	status := MapErrorCodeToStatus(err.Code)
	WriteError(w, err, status)
}

// MapErrorCodeToStatus maps the §7 error taxonomy to HTTP status codes.
func MapErrorCodeToStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ConfigMissing:
		return http.StatusServiceUnavailable // 503
	case errors.RemoteQuota:
		return http.StatusTooManyRequests // 429
	case errors.RemoteUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.RemoteProtocol:
		return http.StatusBadGateway // 502
	case errors.MalformedResponse:
		return http.StatusBadGateway // 502
	case errors.PathViolation:
		return http.StatusForbidden // 403
	case errors.SyntaxRejection:
		return http.StatusUnprocessableEntity // 422
	case errors.FileTooLarge:
		return http.StatusRequestEntityTooLarge // 413
	case errors.MissingIndex:
		return http.StatusNotFound // 404
	case errors.SyncFailure:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.SyntaxRejection, message, nil), http.StatusBadRequest)
}

// NotFound writes a 404 Not Found error.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.MissingIndex, message, nil), http.StatusNotFound)
}

// InternalError writes a 500 Internal Server Error.
func InternalError(w http.ResponseWriter, message string, err error) {
	WriteError(w, errors.New(errors.SyncFailure, message, err), http.StatusInternalServerError)
}
