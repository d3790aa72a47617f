// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package metrics holds Cinecord's Prometheus collectors.
//
// Collectors are registered on the default registry and served by the
// status API at /metrics when the server is enabled.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick outcomes, used as the "outcome" label.
const (
	OutcomePlaying = "playing"
	OutcomeIdle    = "idle"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	// Sync loop
	SyncTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_sync_ticks_total",
			Help: "Total number of sync ticks by outcome",
		},
		[]string{"outcome"}, // playing, idle, skipped, failed
	)

	SyncTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinecord_sync_tick_duration_seconds",
			Help:    "Duration of a full sync tick in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinecord_sync_last_success_timestamp",
			Help: "Unix timestamp of the last tick that reached Discord",
		},
	)

	// Trakt API
	TraktRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_trakt_requests_total",
			Help: "Total number of Trakt API requests",
		},
		[]string{"endpoint", "status"}, // status: HTTP code or "error"
	)

	TraktRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinecord_trakt_request_duration_seconds",
			Help:    "Duration of Trakt API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	TraktRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinecord_trakt_rate_limited_total",
			Help: "Total number of HTTP 429 responses from Trakt",
		},
	)

	// Rating cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinecord_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	// Discord presence
	PresenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_presence_updates_total",
			Help: "Total number of presence operations by kind and result",
		},
		[]string{"op", "result"}, // op: apply, clear; result: success, failure
	)

	PresenceReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinecord_presence_reconnects_total",
			Help: "Total number of Discord reconnects after a failed apply",
		},
	)

	PresenceConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_presence_connect_attempts_total",
			Help: "Total number of Discord IPC connect attempts",
		},
		[]string{"result"},
	)

	PresenceConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinecord_presence_connected",
			Help: "1 when the Discord IPC connection is up, 0 otherwise",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinecord_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinecord_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Status API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinecord_api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinecord_api_request_duration_seconds",
			Help:    "Duration of status API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"route"},
	)

	// Process
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinecord_build_info",
			Help: "Build information, value is always 1",
		},
		[]string{"version", "commit"},
	)
)

// RecordTick records the outcome and duration of one sync tick.
func RecordTick(outcome string, duration time.Duration) {
	SyncTicks.WithLabelValues(outcome).Inc()
	SyncTickDuration.Observe(duration.Seconds())
	if outcome == OutcomePlaying || outcome == OutcomeIdle {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordTraktRequest records one Trakt API call. statusCode 0 means the
// request never produced a response.
func RecordTraktRequest(endpoint string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	TraktRequests.WithLabelValues(endpoint, status).Inc()
	TraktRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss for the named cache.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordPresence records a presence apply or clear.
func RecordPresence(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	PresenceUpdates.WithLabelValues(op, result).Inc()
}

// RecordConnectAttempt records one Discord IPC connect attempt.
func RecordConnectAttempt(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	PresenceConnectAttempts.WithLabelValues(result).Inc()
}

// SetPresenceConnected flips the connected gauge.
func SetPresenceConnected(connected bool) {
	if connected {
		PresenceConnected.Set(1)
		return
	}
	PresenceConnected.Set(0)
}

// RecordAPIRequest records one status API request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
