// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package trakt

import (
	"context"
	"fmt"

	"github.com/tomtom215/cinecord/internal/cache"
	"github.com/tomtom215/cinecord/internal/logging"
)

// WatchClient is the failure-absorbing facade the sync loop uses.
//
// Network failures and "nothing playing" are indistinguishable to callers,
// and a rating that cannot be fetched is reported as 0.0. Neither case is
// cached, so the next tick tries again.
type WatchClient struct {
	api   API
	cache cache.RatingCache

	// episodeScoped keys episode ratings by show+season+number instead of by
	// show slug alone.
	episodeScoped bool
}

// WatchOption configures a WatchClient.
type WatchOption func(*WatchClient)

// WithEpisodeScopedRatings caches each episode's rating separately. Without
// it every episode of a show reuses the first episode's rating for the
// rest of the session.
func WithEpisodeScopedRatings(enabled bool) WatchOption {
	return func(wc *WatchClient) {
		wc.episodeScoped = enabled
	}
}

// NewWatchClient returns a WatchClient over api backed by ratings.
func NewWatchClient(api API, ratings cache.RatingCache, opts ...WatchOption) *WatchClient {
	wc := &WatchClient{api: api, cache: ratings}
	for _, opt := range opts {
		opt(wc)
	}
	return wc
}

// FetchCurrentlyWatching returns the user's current watch state and true,
// or nil and false when nothing is playing or the lookup failed.
func (wc *WatchClient) FetchCurrentlyWatching(ctx context.Context) (*Watching, bool) {
	w, err := wc.api.GetWatching(ctx)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Watch state unavailable, treating as idle")
		return nil, false
	}
	if w == nil {
		return nil, false
	}
	return w, true
}

// MovieRating returns the movie's rating, cached by slug. 0.0 on failure.
func (wc *WatchClient) MovieRating(ctx context.Context, slug string) float64 {
	if slug == "" {
		return 0
	}
	return wc.cachedRating(ctx, slug, func() (*Ratings, error) {
		return wc.api.GetMovieRatings(ctx, slug)
	})
}

// EpisodeRating returns the episode's rating. 0.0 on failure.
func (wc *WatchClient) EpisodeRating(ctx context.Context, showSlug string, season, number int) float64 {
	if showSlug == "" {
		return 0
	}
	return wc.cachedRating(ctx, wc.EpisodeCacheKey(showSlug, season, number), func() (*Ratings, error) {
		return wc.api.GetEpisodeRatings(ctx, showSlug, season, number)
	})
}

// EpisodeCacheKey returns the cache key used for an episode rating.
func (wc *WatchClient) EpisodeCacheKey(showSlug string, season, number int) string {
	if !wc.episodeScoped {
		return showSlug
	}
	return fmt.Sprintf("%s/s%02de%02d", showSlug, season, number)
}

func (wc *WatchClient) cachedRating(ctx context.Context, key string, fetch func() (*Ratings, error)) float64 {
	if rating, ok := wc.cache.Get(key); ok {
		return rating
	}

	r, err := fetch()
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("Rating lookup failed, using 0.0")
		return 0
	}

	wc.cache.Put(key, r.Rating)
	logging.Ctx(ctx).Debug().Str("key", key).Float64("rating", r.Rating).Int("votes", r.Votes).Msg("Rating cached")
	return r.Rating
}
