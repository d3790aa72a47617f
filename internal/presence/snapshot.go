// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package presence

import (
	"sync"
	"time"
)

// Snapshot is the result of the most recent sync tick.
type Snapshot struct {
	Outcome       string    `json:"outcome"`
	Payload       *Payload  `json:"payload,omitempty"`
	Error         string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	Ticks         uint64    `json:"ticks"`
}

// SnapshotStore holds the latest Snapshot for readers outside the sync loop.
type SnapshotStore struct {
	mu    sync.RWMutex
	last  Snapshot
	ticks uint64
}

// NewSnapshotStore returns an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Record replaces the latest snapshot and bumps the tick counter.
func (s *SnapshotStore) Record(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	snap.Ticks = s.ticks
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	s.last = snap
}

// Latest returns the last snapshot and false if no tick has run yet.
func (s *SnapshotStore) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.ticks > 0
}
