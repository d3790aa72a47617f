// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/cinecord/internal/metrics"
)

// metricsCacheType is the cache_type label for rating cache metrics.
const metricsCacheType = "rating"

// MemoryRatingCache is the process-lifetime RatingCache.
type MemoryRatingCache struct {
	mu      sync.RWMutex
	entries map[string]float64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRatingCache returns an empty MemoryRatingCache.
func NewRatingCache() *MemoryRatingCache {
	return &MemoryRatingCache{entries: make(map[string]float64)}
}

// Get implements RatingCache.
func (c *MemoryRatingCache) Get(key string) (float64, bool) {
	c.mu.RLock()
	rating, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	metrics.RecordCacheLookup(metricsCacheType, ok)

	return rating, ok
}

// Put implements RatingCache.
func (c *MemoryRatingCache) Put(key string, rating float64) {
	c.mu.Lock()
	c.entries[key] = rating
	size := len(c.entries)
	c.mu.Unlock()

	metrics.CacheSize.WithLabelValues(metricsCacheType).Set(float64(size))
}

// Len returns the number of cached ratings.
func (c *MemoryRatingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats implements StatsProvider.
func (c *MemoryRatingCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Entries: c.Len(),
		HitRate: hitRate,
	}
}
