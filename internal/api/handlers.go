// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/cinecord/internal/cache"
	"github.com/tomtom215/cinecord/internal/presence"
)

// ConnectionState reports the Discord connection state.
type ConnectionState interface {
	State() presence.State
}

// SnapshotReader returns the latest sync tick result.
type SnapshotReader interface {
	Latest() (presence.Snapshot, bool)
}

// Handler serves the status endpoints.
type Handler struct {
	conn      ConnectionState
	snapshots SnapshotReader
	stats     cache.StatsProvider
	version   string
	startTime time.Time
}

// NewHandler creates a Handler. stats may be nil when the rating cache does
// not track its own efficiency.
func NewHandler(conn ConnectionState, snapshots SnapshotReader, stats cache.StatsProvider, version string) *Handler {
	return &Handler{
		conn:      conn,
		snapshots: snapshots,
		stats:     stats,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status    string  `json:"status"`
	Discord   string  `json:"discord"`
	Version   string  `json:"version"`
	UptimeSec float64 `json:"uptime_seconds"`
}

// Health reports liveness. The process is alive while it can answer, so the
// status is always 200; "degraded" means Discord is not connected.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.conn.State()
	status := "ok"
	if state != presence.Connected {
		status = "degraded"
	}

	NewResponseWriter(w, r).Success(HealthStatus{
		Status:    status,
		Discord:   state.String(),
		Version:   h.version,
		UptimeSec: time.Since(h.startTime).Seconds(),
	})
}

// Ready returns 503 until Discord is connected.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.conn.State() != presence.Connected {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "discord is not connected")
		return
	}
	rw.Success(map[string]string{"discord": presence.Connected.String()})
}

// Presence returns the latest tick snapshot, or 404 before the first tick.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap, ok := h.snapshots.Latest()
	if !ok {
		rw.NotFound("no sync tick has completed yet")
		return
	}
	rw.Success(snap)
}

// CacheStats returns rating cache efficiency.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.stats == nil {
		rw.NotFound("cache statistics are unavailable")
		return
	}
	rw.Success(h.stats.Stats())
}

// NotFound is the router's fallback.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).NotFound("route not found")
}

// MethodNotAllowed is the router's fallback for known paths.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
}
