// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package api serves Cinecord's read-only status API.
//
//	GET /healthz            liveness and Discord connection state
//	GET /readyz             503 until Discord is connected
//	GET /api/v1/presence    latest sync tick snapshot
//	GET /api/v1/cache       rating cache statistics
//	GET /metrics            Prometheus exposition
package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cinecord/internal/config"
)

// Router wires the handler into chi.
type Router struct {
	handler *Handler
	config  *MiddlewareConfig
}

// NewRouter creates a Router. A nil cfg uses DefaultMiddlewareConfig.
func NewRouter(handler *Handler, cfg *MiddlewareConfig) *Router {
	if cfg == nil {
		cfg = DefaultMiddlewareConfig()
	}
	return &Router{handler: handler, config: cfg}
}

// MiddlewareConfigFrom maps the server config section.
func MiddlewareConfigFrom(cfg *config.ServerConfig) *MiddlewareConfig {
	mc := DefaultMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.CORSOrigins
	mc.RateLimitRequests = cfg.RateLimitReqs
	mc.RateLimitWindow = cfg.RateLimitWindow
	return mc
}

// Setup builds the chi handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(router.config))
	r.Use(PrometheusMetrics())

	r.NotFound(router.handler.NotFound)
	r.MethodNotAllowed(router.handler.MethodNotAllowed)

	// Probes are not rate limited.
	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders())
		r.Get("/healthz", router.handler.Health)
		r.Get("/readyz", router.handler.Ready)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(router.config))
		r.Use(SecurityHeaders())
		r.Get("/presence", router.handler.Presence)
		r.Get("/cache", router.handler.CacheStats)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewServer builds the *http.Server for cfg around handler.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
