// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

/*
Package trakt talks to the Trakt v2 REST API.

Three layers, innermost first:
  - Client: raw HTTP. Static client-ID headers, a client-side token bucket,
    one span and one metric sample per request. Errors are returned as-is.
  - CircuitBreakerClient: fails fast while Trakt is unhealthy.
  - WatchClient: the sync loop's view. Absorbs every failure into "nothing
    playing" or a 0.0 rating and memoizes ratings in a cache.RatingCache.

Endpoints used:
  - GET /users/{username}/watching (204 when idle)
  - GET /movies/{slug}/ratings
  - GET /shows/{slug}/seasons/{season}/episodes/{number}/ratings
*/
package trakt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cinecord/internal/config"
	"github.com/tomtom215/cinecord/internal/metrics"
	"github.com/tomtom215/cinecord/internal/telemetry"
)

const (
	apiVersion       = "2"
	maxErrorBodySize = 64 * 1024

	endpointWatching       = "watching"
	endpointMovieRatings   = "movie_ratings"
	endpointEpisodeRatings = "episode_ratings"
)

// ErrRateLimited is returned when Trakt answers 429.
var ErrRateLimited = errors.New("trakt rate limit exceeded")

// StatusError is returned for any non-success HTTP status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	RetryAfter string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trakt %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// ClientError reports whether the failure was caused by the request rather
// than by Trakt being unhealthy. 429 counts as unhealthy.
func (e *StatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// API is the raw Trakt surface used by WatchClient. GetWatching returns
// nil, nil when the user is not watching anything.
type API interface {
	GetWatching(ctx context.Context) (*Watching, error)
	GetMovieRatings(ctx context.Context, slug string) (*Ratings, error)
	GetEpisodeRatings(ctx context.Context, showSlug string, season, number int) (*Ratings, error)
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL   string
	clientID  string
	username  string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient builds a Client from config. The HTTP timeout applies to the
// whole exchange, covering both the request write and the response read.
func NewClient(cfg *config.TraktConfig, userAgent string) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		clientID:  cfg.ClientID,
		username:  cfg.Username,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		userAgent: userAgent,
	}
}

// GetWatching implements API.
func (c *Client) GetWatching(ctx context.Context) (*Watching, error) {
	path := "/users/" + url.PathEscape(c.username) + "/watching"

	resp, err := c.get(ctx, endpointWatching, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(endpointWatching, resp)
	}

	var w Watching
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			// Some proxies turn 204 into an empty 200.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode watching response: %w", err)
	}
	return &w, nil
}

// GetMovieRatings implements API.
func (c *Client) GetMovieRatings(ctx context.Context, slug string) (*Ratings, error) {
	path := "/movies/" + url.PathEscape(slug) + "/ratings"
	return c.getRatings(ctx, endpointMovieRatings, path)
}

// GetEpisodeRatings implements API.
func (c *Client) GetEpisodeRatings(ctx context.Context, showSlug string, season, number int) (*Ratings, error) {
	path := "/shows/" + url.PathEscape(showSlug) +
		"/seasons/" + strconv.Itoa(season) +
		"/episodes/" + strconv.Itoa(number) + "/ratings"
	return c.getRatings(ctx, endpointEpisodeRatings, path)
}

func (c *Client) getRatings(ctx context.Context, endpoint, path string) (*Ratings, error) {
	resp, err := c.get(ctx, endpoint, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(endpoint, resp)
	}

	var r Ratings
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return &r, nil
}

// get waits for a rate-limit token, then issues an authenticated GET.
// The caller owns resp.Body.
func (c *Client) get(ctx context.Context, endpoint, path string) (*http.Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "trakt."+endpoint,
		attribute.String("http.method", http.MethodGet),
		attribute.String("trakt.endpoint", endpoint),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("trakt %s: rate limiter: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordTraktRequest(endpoint, 0, time.Since(start))
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("trakt %s: HTTP request failed: %w", endpoint, err)
	}
	metrics.RecordTraktRequest(endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.TraktRateLimited.Inc()
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func newStatusError(endpoint string, resp *http.Response) *StatusError {
	return &StatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
		Body:       string(readBodyForError(resp.Body)),
	}
}

// readBodyForError reads at most maxErrorBodySize bytes for error messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
