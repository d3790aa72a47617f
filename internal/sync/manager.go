// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

/*
Package sync runs the poll loop that mirrors Trakt watch state onto Discord.

Every interval the Manager runs one tick:

 1. Fetch the current watch state. Nothing playing (or Trakt unreachable)
    clears the presence.
 2. Build the presence payload; the builder resolves the rating. Media that
    cannot be presented skips the tick.
 3. Apply the payload, reconnecting to Discord at most once.

Ticks are strictly sequential and never overlap. The Discord connection is
established before the first tick; after that, reconnection happens only
inside a tick.
*/
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tomtom215/cinecord/internal/config"
	"github.com/tomtom215/cinecord/internal/logging"
	"github.com/tomtom215/cinecord/internal/metrics"
	"github.com/tomtom215/cinecord/internal/presence"
	"github.com/tomtom215/cinecord/internal/telemetry"
	"github.com/tomtom215/cinecord/internal/trakt"
)

var (
	errAlreadyRunning = errors.New("sync manager is already running")
	errNotRunning     = errors.New("sync manager is not running")
)

// WatchSource supplies watch state and ratings. trakt.WatchClient
// satisfies it.
type WatchSource interface {
	FetchCurrentlyWatching(ctx context.Context) (*trakt.Watching, bool)
	presence.RatingLookup
}

// PayloadBuilder derives a presence payload. presence.Builder satisfies it.
type PayloadBuilder interface {
	Build(ctx context.Context, w *trakt.Watching, ratings presence.RatingLookup) (*presence.Payload, error)
}

// Presence is the Discord side of the loop. presence.Connection satisfies it.
type Presence interface {
	Connect(ctx context.Context) error
	ApplyWithRecovery(ctx context.Context, p *presence.Payload) error
	Clear(ctx context.Context) error
	Close() error
}

// Manager owns the sync loop.
type Manager struct {
	source    WatchSource
	builder   PayloadBuilder
	presence  Presence
	snapshots *presence.SnapshotStore
	interval  time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup

	// lastDetails is only touched by the loop goroutine.
	lastDetails string
}

// NewManager wires a Manager. snapshots may be nil.
func NewManager(
	cfg *config.SyncConfig,
	source WatchSource,
	builder PayloadBuilder,
	p Presence,
	snapshots *presence.SnapshotStore,
) *Manager {
	return &Manager{
		source:    source,
		builder:   builder,
		presence:  p,
		snapshots: snapshots,
		interval:  cfg.Interval,
	}
}

// Start launches the loop in the background and returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errAlreadyRunning
	}

	logging.Info().Dur("interval", m.interval).Msg("Starting sync manager...")

	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.stopChan = make(chan struct{})

	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop signals the loop to exit and waits for it. The presence connection
// is closed on the way out.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return errNotRunning
	}
	m.running = false
	m.cancel()
	close(m.stopChan)
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

// Running reports whether the loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	defer func() {
		if err := m.presence.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close Discord connection")
		}
	}()

	if err := m.presence.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Warn().Err(err).Msg("Discord not connected, will retry on the next update")
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one fetch-build-apply cycle and returns its outcome, one of the
// metrics.Outcome* values.
func (m *Manager) Tick(ctx context.Context) string {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "sync.tick")
	defer span.End()

	start := time.Now()
	outcome, payload, err := m.tick(ctx)
	metrics.RecordTick(outcome, time.Since(start))

	span.SetAttributes(attribute.String("sync.outcome", outcome))
	if err != nil {
		telemetry.RecordError(span, err)
	}

	if m.snapshots != nil {
		snap := presence.Snapshot{
			Outcome:       outcome,
			Payload:       payload,
			CorrelationID: logging.CorrelationIDFromContext(ctx),
		}
		if err != nil {
			snap.Error = err.Error()
		}
		m.snapshots.Record(snap)
	}
	return outcome
}

func (m *Manager) tick(ctx context.Context) (string, *presence.Payload, error) {
	log := logging.Ctx(ctx)

	w, ok := m.source.FetchCurrentlyWatching(ctx)
	if !ok {
		if m.lastDetails != "" {
			log.Info().Msg("Nothing playing, clearing presence")
			m.lastDetails = ""
		}
		if err := m.presence.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear presence")
			return metrics.OutcomeFailed, nil, err
		}
		return metrics.OutcomeIdle, nil, nil
	}

	p, err := m.builder.Build(ctx, w, m.source)
	if err != nil {
		log.Warn().Err(err).Str("type", w.Type).Msg("Skipping update, watch state cannot be presented")
		return metrics.OutcomeSkipped, nil, err
	}

	if err := m.presence.ApplyWithRecovery(ctx, p); err != nil {
		log.Error().Err(err).Msg("Failed to update Discord presence")
		return metrics.OutcomeFailed, p, err
	}

	if p.Details+p.State != m.lastDetails {
		log.Info().
			Str("details", p.Details).
			Str("state", p.State).
			Str("rating", p.SmallText).
			Msg("Now playing")
		m.lastDetails = p.Details + p.State
	}
	return metrics.OutcomePlaying, p, nil
}
