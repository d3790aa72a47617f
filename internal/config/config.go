// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package config loads Cinecord's configuration.
//
// Sources are layered with koanf, lowest precedence first:
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables, including any loaded from a .env file
//
// Configuration is read once at startup. There is no hot reload.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Discord    DiscordConfig    `koanf:"discord"`
	Trakt      TraktConfig      `koanf:"trakt"`
	Sync       SyncConfig       `koanf:"sync"`
	Presence   PresenceConfig   `koanf:"presence"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// DiscordConfig identifies the Discord application whose assets
// ("movies", "shows", "rating") back the presence images.
type DiscordConfig struct {
	// AppID is the Discord application (client) ID. Required.
	AppID string `koanf:"app_id" validate:"required,snowflake"`
}

// TraktConfig configures the Trakt API client.
type TraktConfig struct {
	// ClientID is the Trakt API application client ID, sent as trakt-api-key.
	ClientID string `koanf:"client_id" validate:"required"`

	// Username is the Trakt user whose watch state is mirrored.
	Username string `koanf:"username" validate:"required"`

	// BaseURL is the API root. Default: https://api.trakt.tv
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// Timeout bounds each request. Default: 5s
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`

	// RateBurst is the token bucket size.
	RateBurst int `koanf:"rate_burst" validate:"gte=1"`

	// EpisodeScopedRatings caches episode ratings per episode instead of per show.
	// Default: false (one rating per show per session)
	EpisodeScopedRatings bool `koanf:"episode_scoped_ratings"`

	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker wrapped around Trakt requests.
type CircuitBreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests" validate:"gte=1"`

	// Interval is the closed-state window after which counts reset.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// MinRequests before FailureRatio is evaluated.
	MinRequests uint32 `koanf:"min_requests" validate:"gte=1"`

	// FailureRatio at or above which the breaker trips.
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// SyncConfig controls the poll loop cadence.
type SyncConfig struct {
	// Interval between ticks. Default: 15s
	Interval time.Duration `koanf:"interval" validate:"gte=1s"`

	// ReconnectDelay is the fixed backoff between Discord connect attempts. Default: 15s
	ReconnectDelay time.Duration `koanf:"reconnect_delay" validate:"gte=0"`
}

// Clear strategies for an idle watch state.
const (
	ClearStrategyClose    = "close"
	ClearStrategyActivity = "activity"
)

// PresenceConfig shapes the Discord activity.
type PresenceConfig struct {
	// Buttons adds IMDB/Trakt link buttons when the IDs are known. Default: true
	Buttons bool `koanf:"buttons"`

	// ClearStrategy is "close" (drop the IPC connection) or "activity"
	// (send an empty activity and keep the connection). Default: close
	ClearStrategy string `koanf:"clear_strategy" validate:"oneof=close activity"`
}

// ServerConfig configures the optional local status API.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host" validate:"required"`
	Port    int    `koanf:"port" validate:"gte=1,lte=65535"`

	// CORSOrigins allowed to read the status API (browser overlays).
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs per RateLimitWindow per client IP. 0 disables limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes file:line in each entry.
	Caller bool `koanf:"caller"`

	// File, when set, tees JSON logs into a size-rotated file.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP/gRPC collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	ServiceName string  `koanf:"service_name" validate:"required"`
	SampleRatio float64 `koanf:"sample_ratio" validate:"gte=0,lte=1"`
	Insecure    bool    `koanf:"insecure"`
}

// SupervisorConfig tunes the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
