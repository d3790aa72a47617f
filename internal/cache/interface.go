// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package cache provides the in-memory rating cache shared by all Trakt
// rating lookups.
//
// Entries are populated lazily on the first lookup of a key and live for the
// lifetime of the process. There is no TTL and no eviction: a session only
// ever touches a handful of titles, and a rating that is minutes stale is
// indistinguishable from a fresh one on a presence card.
package cache

// RatingCache maps a title key (normally a Trakt slug) to its 0.0-10.0 rating.
//
// Implementations must be safe for concurrent use; the status API reads
// stats while the sync loop writes.
type RatingCache interface {
	// Get returns the cached rating and true, or 0 and false on a miss.
	Get(key string) (float64, bool)

	// Put stores rating under key, replacing any previous value.
	Put(key string, rating float64)
}

// StatsProvider is implemented by caches that track their own efficiency.
type StatsProvider interface {
	Stats() Stats
}

// Stats is a point-in-time view of cache efficiency.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"` // percentage, 0-100
}
