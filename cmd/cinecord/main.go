// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package main is the entry point for the Cinecord daemon.
//
// Cinecord polls Trakt for what a user is currently watching and mirrors it
// to Discord Rich Presence over the local IPC socket.
//
// # Startup Order
//
//  1. Configuration: defaults, then config.yaml, then .env, then environment (Koanf v2)
//  2. Logging and tracing
//  3. Trakt client chain: HTTP client, circuit breaker, rating cache
//  4. Discord IPC client and presence connection
//  5. Sync manager and optional status API under the supervisor tree
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The sync service stops its
// loop, which closes the Discord connection and clears the presence card.
//
// # Example Usage
//
//	export DISCORD_APP_ID=826189107046121572
//	export TRAKT_CLIENT_ID=your-trakt-client-id
//	export TRAKT_USERNAME=your-trakt-username
//	./cinecord
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cinecord/internal/api"
	"github.com/tomtom215/cinecord/internal/cache"
	"github.com/tomtom215/cinecord/internal/config"
	"github.com/tomtom215/cinecord/internal/discord"
	"github.com/tomtom215/cinecord/internal/logging"
	"github.com/tomtom215/cinecord/internal/metrics"
	"github.com/tomtom215/cinecord/internal/presence"
	"github.com/tomtom215/cinecord/internal/supervisor"
	"github.com/tomtom215/cinecord/internal/supervisor/services"
	"github.com/tomtom215/cinecord/internal/sync"
	"github.com/tomtom215/cinecord/internal/telemetry"
	"github.com/tomtom215/cinecord/internal/trakt"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(loggingConfig(&cfg.Logging))
	defer func() {
		if err := logging.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close log file")
		}
	}()

	logging.Info().
		Str("version", version).
		Str("commit", commit).
		Str("trakt_user", cfg.Trakt.Username).
		Dur("interval", cfg.Sync.Interval).
		Msg("Starting Cinecord")
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, &cfg.Tracing, version)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	ratings := cache.NewRatingCache()
	watch := trakt.NewWatchClient(
		traktAPI(&cfg.Trakt),
		ratings,
		trakt.WithEpisodeScopedRatings(cfg.Trakt.EpisodeScopedRatings),
	)

	ipc, err := discord.NewClient(cfg.Discord.AppID)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create Discord IPC client")
	}
	conn := presence.NewConnection(ipc,
		presence.WithRetryPolicy(presence.RetryPolicy{Delay: cfg.Sync.ReconnectDelay}),
		presence.WithClearStrategy(cfg.Presence.ClearStrategy),
	)
	builder := presence.NewBuilder(presence.WithButtons(cfg.Presence.Buttons))

	snapshots := presence.NewSnapshotStore()
	manager := sync.NewManager(&cfg.Sync, watch, builder, conn, snapshots)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddSyncService(services.NewSyncService(manager))

	if cfg.Server.Enabled {
		handler := api.NewHandler(conn, snapshots, ratings, version)
		router := api.NewRouter(handler, api.MiddlewareConfigFrom(&cfg.Server))
		server := api.NewServer(&cfg.Server, router.Setup())
		tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))
	}

	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for services to stop")
		// The channel receives exactly one value and is never closed.
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Cinecord stopped")
}

// traktAPI builds the HTTP client, wrapped in a circuit breaker when enabled.
func traktAPI(cfg *config.TraktConfig) trakt.API {
	var client trakt.API = trakt.NewClient(cfg, "cinecord/"+version)
	if cfg.CircuitBreaker.Enabled {
		client = trakt.NewCircuitBreakerClient(client, &cfg.CircuitBreaker)
	}
	return client
}

func loggingConfig(cfg *config.LoggingConfig) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Level
	lc.Format = cfg.Format
	lc.Caller = cfg.Caller
	if cfg.File != "" {
		lc.File = logging.FileConfig{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}
	return lc
}
