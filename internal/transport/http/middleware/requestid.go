package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/p2repo/cdenrich/internal/transport/http/ctxutil"
)

// contextKey is a custom type to avoid context key collisions.
type contextKey string

// requestIDKey is the context key for storing request ID.
const requestIDKey contextKey = "requestId"

// headerXRequestID is the HTTP header name for request ID.
const headerXRequestID = "X-Request-ID"

// maxRequestIDLength bounds accepted client-provided IDs.
const maxRequestIDLength = 64

// RequestID returns a middleware that generates or passes through a request ID.
// A well-formed incoming X-Request-ID header is used as-is (passthrough);
// anything over 64 characters or outside [A-Za-z0-9._-] is replaced with a
// freshly generated UUID v7. The request ID is injected into the request
// context (shared with logging, tracing, and problem responses) and set in
// the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerXRequestID)

		if !isValidRequestID(requestID) {
			requestID = generateRequestID()
		}

		// Set response header
		w.Header().Set(headerXRequestID, requestID)

		// Inject into both the middleware-local key and the shared
		// request-scoped store consumed by logging and problem responses.
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = ctxutil.SetRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if no request ID is present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ctxutil.GetRequestID(ctx)
}

// isValidRequestID reports whether a client-provided ID is safe to echo
// into logs and response headers.
func isValidRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// generateRequestID creates a new time-ordered UUID (v7). Falls back to a
// random v4 in the unlikely event v7 generation fails.
func generateRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
