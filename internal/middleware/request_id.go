package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey keeps middleware context values from colliding with other
// packages.
type contextKey string

const (
	// RequestIDKey carries the request ID through the context.
	RequestIDKey contextKey = "request_id"
	// TraceIDKey carries an upstream trace ID, when one was supplied.
	TraceIDKey contextKey = "trace_id"
)

// RequestIDHeader is the request/response header for the request ID.
const RequestIDHeader = "X-Request-ID"

// TraceIDHeader is the header for an upstream trace ID.
const TraceIDHeader = "X-Trace-ID"

// RequestID tags every request with an ID, honoring one supplied by the
// caller and generating a UUID otherwise. The ID doubles as the corr_id
// in error envelopes.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		if traceID := r.Header.Get(TraceIDHeader); traceID != "" {
			ctx = context.WithValue(ctx, TraceIDKey, traceID)
			w.Header().Set(TraceIDHeader, traceID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetTraceID returns the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}
