// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package trakt

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cinecord/internal/config"
	"github.com/tomtom215/cinecord/internal/logging"
	"github.com/tomtom215/cinecord/internal/metrics"
)

const breakerName = "trakt-api"

// CircuitBreakerClient wraps an API with a circuit breaker. While open,
// calls fail immediately with gobreaker.ErrOpenState instead of waiting
// out the HTTP timeout on every tick.
type CircuitBreakerClient struct {
	api  API
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreakerClient wraps api using the thresholds in cfg.
func NewCircuitBreakerClient(api API, cfg *config.CircuitBreakerConfig) *CircuitBreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	minRequests := cfg.MinRequests
	failureRatio := cfg.FailureRatio

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= failureRatio {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		// 4xx answers (unknown slug, private profile) say nothing about
		// Trakt's health and must not trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.ClientError()
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerClient{api: api, cb: cb, name: breakerName}
}

// State returns the breaker state as closed, half-open or open.
func (cbc *CircuitBreakerClient) State() string {
	return stateToString(cbc.cb.State())
}

func (cbc *CircuitBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Debug().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
			counts := cbc.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)
	return result, nil
}

// castResult converts an execute result back to its concrete type.
// A typed nil (idle GetWatching) passes through as nil.
func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type")
	}
	return typed, nil
}

// GetWatching implements API.
func (cbc *CircuitBreakerClient) GetWatching(ctx context.Context) (*Watching, error) {
	return castResult[Watching](cbc.execute(func() (any, error) {
		return cbc.api.GetWatching(ctx)
	}))
}

// GetMovieRatings implements API.
func (cbc *CircuitBreakerClient) GetMovieRatings(ctx context.Context, slug string) (*Ratings, error) {
	return castResult[Ratings](cbc.execute(func() (any, error) {
		return cbc.api.GetMovieRatings(ctx, slug)
	}))
}

// GetEpisodeRatings implements API.
func (cbc *CircuitBreakerClient) GetEpisodeRatings(ctx context.Context, showSlug string, season, number int) (*Ratings, error) {
	return castResult[Ratings](cbc.execute(func() (any, error) {
		return cbc.api.GetEpisodeRatings(ctx, showSlug, season, number)
	}))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
