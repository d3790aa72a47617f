// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/cinecord/internal/logging"
	"github.com/tomtom215/cinecord/internal/metrics"
)

// MiddlewareConfig configures CORS and rate limiting.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// RateLimitRequests per RateLimitWindow per client IP. 0 disables limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultMiddlewareConfig allows no cross-origin reads and 60 requests a
// minute per IP.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  60,
		RateLimitWindow:    time.Minute,
	}
}

// CORS returns a go-chi/cors handler. The API is read-only, so only GET and
// OPTIONS are allowed.
func CORS(cfg *MiddlewareConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         cfg.CORSMaxAge,
	})
}

// RateLimit returns a per-IP httprate limiter, or a pass-through when
// limiting is disabled.
func RateLimit(cfg *MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).TooManyRequests("rate limit exceeded")
		}),
	)
}

// RequestIDWithLogging puts the request ID on the response header and in the
// logging context. An incoming X-Request-ID is kept.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" {
				requestID = logging.GenerateCorrelationID()
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders sets the headers every JSON response carries.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// PrometheusMetrics records request counts and latency by route pattern.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
		})
	}
}
