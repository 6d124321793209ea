package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"admin-auth-service/internal/fingerprint"
	"admin-auth-service/internal/ratelimit"
	"admin-auth-service/internal/util"
)

// RequestContextMiddleware derives the client fingerprint once per request
// and stashes it in the context for handlers and the rate limiter.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := fingerprint.NewRequestContext(r)
		next.ServeHTTP(w, r.WithContext(fingerprint.WithRequestContext(r.Context(), rc)))
	})
}

// RateLimitMiddleware applies the per-endpoint sliding window keyed by the
// client fingerprint. A store outage fails open: degraded limiting beats a
// locked-out dashboard.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := fingerprint.FromContext(r.Context())

			decision, err := limiter.Check(r.Context(), r.URL.Path, rc.Fingerprint, rc.SuspicionScore())
			if err != nil {
				util.Warn("rate limit check failed, allowing request",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime, 10))

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
				writeJSON(w, http.StatusTooManyRequests, errorResponse(
					"rate limit exceeded", "Too many requests, slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
