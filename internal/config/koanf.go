// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"$XDG_CONFIG_HOME/cinecord/config.yaml",
	"$HOME/.config/cinecord/config.yaml",
	"/etc/cinecord/config.yaml",
}

const (
	// ConfigPathEnvVar overrides the config file path.
	ConfigPathEnvVar = "CONFIG_PATH"

	// DotEnvPathEnvVar overrides the .env file path.
	DotEnvPathEnvVar = "DOTENV_PATH"
)

func defaultConfig() *Config {
	return &Config{
		Trakt: TraktConfig{
			BaseURL:   "https://api.trakt.tv",
			Timeout:   5 * time.Second,
			RateLimit: 1,
			RateBurst: 5,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MaxRequests:  1,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				MinRequests:  5,
				FailureRatio: 0.6,
			},
		},
		Sync: SyncConfig{
			Interval:       15 * time.Second,
			ReconnectDelay: 15 * time.Second,
		},
		Presence: PresenceConfig{
			Buttons:       true,
			ClearStrategy: ClearStrategyClose,
		},
		Server: ServerConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			Port:            8787,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "cinecord",
			SampleRatio: 1.0,
			Insecure:    true,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment (ENV > file > defaults), then validates it.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv populates the environment from a .env file if one exists.
// Variables already set in the environment win.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		expanded := os.ExpandEnv(path)
		if strings.HasPrefix(expanded, "/cinecord") {
			// Unset base directory variable.
			continue
		}
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}

	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"discord_app_id": "discord.app_id",

	"trakt_client_id":              "trakt.client_id",
	"trakt_username":               "trakt.username",
	"trakt_base_url":               "trakt.base_url",
	"trakt_timeout":                "trakt.timeout",
	"trakt_rate_limit":             "trakt.rate_limit",
	"trakt_rate_burst":             "trakt.rate_burst",
	"trakt_episode_scoped_ratings": "trakt.episode_scoped_ratings",

	"trakt_breaker_enabled":       "trakt.circuit_breaker.enabled",
	"trakt_breaker_max_requests":  "trakt.circuit_breaker.max_requests",
	"trakt_breaker_interval":      "trakt.circuit_breaker.interval",
	"trakt_breaker_timeout":       "trakt.circuit_breaker.timeout",
	"trakt_breaker_min_requests":  "trakt.circuit_breaker.min_requests",
	"trakt_breaker_failure_ratio": "trakt.circuit_breaker.failure_ratio",

	"sync_interval":        "sync.interval",
	"sync_reconnect_delay": "sync.reconnect_delay",

	"presence_buttons":        "presence.buttons",
	"presence_clear_strategy": "presence.clear_strategy",

	"server_enabled":           "server.enabled",
	"server_host":              "server.host",
	"server_port":              "server.port",
	"server_cors_origins":      "server.cors_origins",
	"server_rate_limit_reqs":   "server.rate_limit_reqs",
	"server_rate_limit_window": "server.rate_limit_window",
	"server_shutdown_timeout":  "server.shutdown_timeout",

	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
	"log_file":         "logging.file",
	"log_max_size_mb":  "logging.max_size_mb",
	"log_max_backups":  "logging.max_backups",
	"log_max_age_days": "logging.max_age_days",
	"log_compress":     "logging.compress",

	"tracing_enabled":             "tracing.enabled",
	"otel_exporter_otlp_endpoint": "tracing.endpoint",
	"otel_service_name":           "tracing.service_name",
	"tracing_sample_ratio":        "tracing.sample_ratio",
	"tracing_insecure":            "tracing.insecure",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - TRAKT_CLIENT_ID -> trakt.client_id
//   - SYNC_INTERVAL -> sync.interval
//   - OTEL_EXPORTER_OTLP_ENDPOINT -> tracing.endpoint
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
