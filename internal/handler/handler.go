// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/zeventbooks/eventpulse/internal/handler/dto"
	"github.com/zeventbooks/eventpulse/internal/middleware"
)

// Error codes used across handlers.
const (
	CodeBadInput    = "BAD_INPUT"
	CodeNotFound    = "NOT_FOUND"
	CodeRateLimited = "RATE_LIMITED"
	CodeInternal    = "INTERNAL"
	CodeContract    = "CONTRACT"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, CodeNotFound, "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, CodeBadInput, "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing left to do.
		_ = err
	}
}

// writeError writes the standard error envelope. The correlation ID
// ties the response to the structured log line for the same request.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		OK:      false,
		Code:    code,
		Message: message,
		CorrID:  middleware.GetRequestID(r.Context()),
	})
}
