package server

import (
	"context"
	"crypto/subtle"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ocrapi/internal/apperr"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request ID set by the RequestID
// middleware, or "unknown" outside a request scope.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return "unknown"
}

// RequestID assigns a UUID to each request, exposing it via context and the
// X-Request-ID response header. An incoming X-Request-ID is honored so
// callers can correlate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth validates a static bearer token when enabled. Failures map to
// AUTHENTICATION_FAILED through the taxonomy.
func Auth(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, r, apperr.AuthenticationFailed("Authentication required"), 0)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, r, apperr.AuthenticationFailed("Invalid or malformed token"), 0)
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				writeError(w, r, apperr.AuthenticationFailed("Invalid or malformed token"), 0)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles requests with a token bucket when enabled. Exceeded
// requests get RATE_LIMIT_EXCEEDED with a retry hint.
func RateLimit(enabled bool, rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			reservation := limiter.Reserve()
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				retryAfter := int(math.Ceil(delay.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				writeError(w, r, apperr.RateLimitExceeded(retryAfter), 0)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
