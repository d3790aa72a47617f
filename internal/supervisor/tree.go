// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

/*
Package supervisor runs Cinecord's services under a suture v4 tree.

	root ("cinecord")
	├── sync-layer
	│   └── presence-sync (sync.Manager)
	└── api-layer
	    └── status-api (optional HTTP server)

The layers restart independently: a crashing status API never interrupts the
presence loop, and the loop's restarts never drop API listeners. Supervisor
events are logged through the zerolog slog bridge.
*/
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/cinecord/internal/config"
)

// TreeConfig holds the restart policy shared by every supervisor.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate, in seconds, at which failures decay.
	FailureDecay float64

	// FailureBackoff is how long a supervisor waits once over threshold.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// TreeConfigFrom maps the supervisor config section.
func TreeConfigFrom(cfg *config.SupervisorConfig) TreeConfig {
	return TreeConfig{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		ShutdownTimeout:  cfg.ShutdownTimeout,
	}
}

// SupervisorTree is the root supervisor and its two layers.
type SupervisorTree struct {
	root   *suture.Supervisor
	sync   *suture.Supervisor
	api    *suture.Supervisor
	logger *slog.Logger
	config TreeConfig
}

// NewSupervisorTree builds the tree. Zero config values take defaults.
func NewSupervisorTree(logger *slog.Logger, cfg TreeConfig) (*SupervisorTree, error) {
	defaults := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = defaults.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = defaults.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	// Children inherit the root's EventHook once added.
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	root := suture.New("cinecord", rootSpec)
	syncLayer := suture.New("sync-layer", childSpec)
	apiLayer := suture.New("api-layer", childSpec)
	root.Add(syncLayer)
	root.Add(apiLayer)

	return &SupervisorTree{
		root:   root,
		sync:   syncLayer,
		api:    apiLayer,
		logger: logger,
		config: cfg,
	}, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddSyncService adds a service to the sync layer.
func (t *SupervisorTree) AddSyncService(svc suture.Service) suture.ServiceToken {
	return t.sync.Add(svc)
}

// AddAPIService adds a service to the API layer.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result when the tree stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
