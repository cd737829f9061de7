package http

import (
	"encoding/json"
	"net/http"

	"github.com/siftlog/sift/internal/errors"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error code to its HTTP status.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidCredentials, errors.CodeTokenExpired, errors.CodeTokenInvalid:
		return http.StatusUnauthorized
	case errors.CodeAccessDenied:
		return http.StatusForbidden
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidRequest, errors.CodeInvalidFilter, errors.CodeInvalidCursor:
		return http.StatusBadRequest
	case errors.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to its HTTP status and body. Codes
// outside the taxonomy become opaque 500s so internals never leak.
func writeError(w http.ResponseWriter, err error, requestID string) {
	status := statusFor(err)

	message := err.Error()
	code := errors.GetCode(err)
	if status == http.StatusInternalServerError {
		message = "internal server error"
		code = errors.CodeUnexpected
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID,
	})
}

// writeErrorMessage writes a plain error response with the given status.
func writeErrorMessage(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     message,
		RequestID: requestID,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
