package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"agentplane/internal/ratelimit"
	"agentplane/pkg/api"
)

// RateLimitMiddleware enforces a fixed-window request limit per client IP.
// It runs before auth so unauthenticated floods are rejected early. When the
// counter store is unreachable the limiter fails open and requests pass.
func RateLimitMiddleware(limiter *ratelimit.Limiter, window time.Duration, maxRequests int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := limiter.Check(r.Context(), clientIP(r), window, int64(maxRequests))
			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(api.RateLimitedResponse{
					Message:    "Too many requests, please try again later.",
					RetryAfter: retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the requester's IP, preferring X-Forwarded-For when a
// proxy set it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
