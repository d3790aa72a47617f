// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package presence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tomtom215/cinecord/internal/config"
	"github.com/tomtom215/cinecord/internal/discord"
	"github.com/tomtom215/cinecord/internal/logging"
	"github.com/tomtom215/cinecord/internal/metrics"
	"github.com/tomtom215/cinecord/internal/telemetry"
)

// ErrNotConnected is returned by Apply while the connection is down.
var ErrNotConnected = errors.New("presence connection is not established")

// IPC is the Discord client surface used by Connection.
type IPC interface {
	Connect(ctx context.Context) error
	SetActivity(ctx context.Context, activity *discord.Activity) error
	ClearActivity(ctx context.Context) error
	Close() error
}

// State is the connection state.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// RetryPolicy controls Connect. MaxAttempts 0 retries until the context is
// cancelled.
type RetryPolicy struct {
	MaxAttempts uint
	Delay       time.Duration
}

// DefaultRetryPolicy retries forever, 15 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 0, Delay: 15 * time.Second}
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) ConnectionOption {
	return func(c *Connection) {
		c.policy = p
	}
}

// WithClearStrategy selects how an idle watch state clears the presence:
// config.ClearStrategyClose drops the connection, config.ClearStrategyActivity
// sends an empty activity and keeps it.
func WithClearStrategy(strategy string) ConnectionOption {
	return func(c *Connection) {
		c.clearStrategy = strategy
	}
}

// Connection drives the Disconnected/Connected state machine around an IPC
// client. It is meant to be used by one goroutine; State may be read from
// any goroutine.
type Connection struct {
	ipc           IPC
	policy        RetryPolicy
	clearStrategy string

	state atomic.Int32
}

// NewConnection returns a Disconnected connection over ipc.
func NewConnection(ipc IPC, opts ...ConnectionOption) *Connection {
	c := &Connection{
		ipc:           ipc,
		policy:        DefaultRetryPolicy(),
		clearStrategy: config.ClearStrategyClose,
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.SetPresenceConnected(false)
	return c
}

// State returns the current connection state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
	metrics.SetPresenceConnected(s == Connected)
}

// Connect establishes the IPC connection, retrying per the policy. It
// returns early only when ctx is cancelled or a bounded policy runs out.
func (c *Connection) Connect(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "presence.connect")
	defer span.End()

	err := retry.Do(
		func() error {
			err := c.ipc.Connect(ctx)
			metrics.RecordConnectAttempt(err)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.policy.MaxAttempts),
		retry.Delay(c.policy.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.Ctx(ctx).Warn().
				Err(err).
				Uint("attempt", n+1).
				Dur("retry_in", c.policy.Delay).
				Msg("Failed to connect to Discord, retrying")
		}),
	)
	if err != nil {
		c.setState(Disconnected)
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to connect to Discord: %w", err)
	}

	c.setState(Connected)
	logging.Ctx(ctx).Info().Msg("Connected to Discord")
	return nil
}

// Apply publishes p. Any failure leaves the connection Disconnected.
func (c *Connection) Apply(ctx context.Context, p *Payload) error {
	if c.State() != Connected {
		metrics.RecordPresence("apply", ErrNotConnected)
		return ErrNotConnected
	}

	ctx, span := telemetry.StartSpan(ctx, "presence.apply")
	defer span.End()

	err := c.ipc.SetActivity(ctx, p.Activity())
	metrics.RecordPresence("apply", err)
	if err != nil {
		telemetry.RecordError(span, err)
		_ = c.ipc.Close()
		c.setState(Disconnected)
		return fmt.Errorf("failed to set activity: %w", err)
	}
	return nil
}

// ApplyWithRecovery applies p and, on failure, reconnects and tries exactly
// once more. The second error, if any, is returned.
func (c *Connection) ApplyWithRecovery(ctx context.Context, p *Payload) error {
	err := c.Apply(ctx, p)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNotConnected) {
		logging.Ctx(ctx).Debug().Msg("Presence connection closed, reconnecting")
	} else {
		logging.Ctx(ctx).Warn().Err(err).Msg("Presence not applied, reconnecting")
	}

	metrics.PresenceReconnects.Inc()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Apply(ctx, p)
}

// Clear removes the presence according to the clear strategy. Clearing an
// already disconnected connection does nothing.
func (c *Connection) Clear(ctx context.Context) error {
	if c.State() != Connected {
		metrics.RecordPresence("clear", nil)
		return nil
	}

	var err error
	switch c.clearStrategy {
	case config.ClearStrategyActivity:
		if err = c.ipc.ClearActivity(ctx); err != nil {
			_ = c.ipc.Close()
			c.setState(Disconnected)
		}
	default:
		err = c.ipc.Close()
		c.setState(Disconnected)
	}

	metrics.RecordPresence("clear", err)
	if err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

// Close drops the connection for shutdown.
func (c *Connection) Close() error {
	if c.State() != Connected {
		return nil
	}
	c.setState(Disconnected)
	return c.ipc.Close()
}
