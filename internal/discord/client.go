// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

/*
Package discord is a minimal client for the Discord desktop RPC socket.

Only the subset needed for rich presence is implemented: the handshake,
SET_ACTIVITY (including the null activity that clears it), ping/pong and
close. The transport is a unix socket or, on Windows, a named pipe; see
dial_unix.go and dial_windows.go.

A Client holds at most one connection. Any I/O failure drops it, after which
Connected reports false and the caller decides when to Connect again.
*/
package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cinecord/internal/logging"
)

const (
	rpcVersion       = 1
	defaultIOTimeout = 5 * time.Second

	cmdDispatch    = "DISPATCH"
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

var (
	// ErrInvalidAppID is returned by NewClient for an empty or non-snowflake ID.
	ErrInvalidAppID = errors.New("discord: invalid application id")

	// ErrNoSocket is returned when no discord-ipc socket accepts a connection,
	// usually because the desktop client is not running.
	ErrNoSocket = errors.New("discord: no ipc socket available")

	// ErrHandshake is returned when Discord refuses the handshake.
	ErrHandshake = errors.New("discord: handshake rejected")

	// ErrNotConnected is returned by operations that need a live connection.
	ErrNotConnected = errors.New("discord: not connected")

	// ErrActivityRejected is returned when Discord answers SET_ACTIVITY with
	// an ERROR event. The connection stays up.
	ErrActivityRejected = errors.New("discord: activity rejected")

	// ErrClosedByPeer is returned when Discord sends a close frame.
	ErrClosedByPeer = errors.New("discord: connection closed by peer")
)

var appIDPattern = regexp.MustCompile(`^[0-9]{17,20}$`)

// DialFunc opens the raw IPC transport.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the platform socket discovery. Used by tests.
func WithDialer(dial DialFunc) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithPID overrides the process id reported with each activity.
func WithPID(pid int) Option {
	return func(c *Client) {
		c.pid = pid
	}
}

// WithIOTimeout bounds each request/response exchange when the context
// carries no earlier deadline.
func WithIOTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.ioTimeout = d
	}
}

// Client speaks the Discord RPC protocol over a single IPC connection.
// It is safe for concurrent use; calls are serialized.
type Client struct {
	appID     string
	pid       int
	dial      DialFunc
	ioTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewClient validates appID and returns an unconnected Client.
func NewClient(appID string, opts ...Option) (*Client, error) {
	if !appIDPattern.MatchString(appID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAppID, appID)
	}

	c := &Client{
		appID:     appID,
		pid:       os.Getpid(),
		dial:      dialIPC,
		ioTimeout: defaultIOTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the IPC socket and performs the handshake. An existing
// connection is dropped first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	if err := c.exchange(ctx, conn, func() error { return c.handshake(conn) }); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	logging.Ctx(ctx).Debug().Str("app_id", c.appID).Msg("Connected to Discord IPC")
	return nil
}

func (c *Client) handshake(conn net.Conn) error {
	if err := writeFrame(conn, OpHandshake, handshake{Version: rpcVersion, ClientID: c.appID}); err != nil {
		return err
	}

	op, payload, err := readFrame(conn)
	if err != nil {
		return err
	}

	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: malformed reply: %w", ErrHandshake, err)
	}
	if op == OpClose {
		return fmt.Errorf("%w: %d %s", ErrHandshake, resp.Code, resp.Message)
	}
	if op != OpFrame || resp.Cmd != cmdDispatch || resp.Evt != evtReady {
		return fmt.Errorf("%w: unexpected %s reply cmd=%q evt=%q", ErrHandshake, op, resp.Cmd, resp.Evt)
	}
	return nil
}

// SetActivity publishes activity. A nil activity clears the presence.
func (c *Client) SetActivity(ctx context.Context, activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	cmd := command{
		Cmd:   cmdSetActivity,
		Args:  setActivityArgs{PID: c.pid, Activity: activity},
		Nonce: uuid.NewString(),
	}

	var reply response
	conn := c.conn
	err := c.exchange(ctx, conn, func() error {
		if err := writeFrame(conn, OpFrame, cmd); err != nil {
			return err
		}
		var err error
		reply, err = c.awaitReply(conn, cmd.Nonce)
		return err
	})
	if err != nil {
		c.dropLocked()
		return err
	}

	if reply.Evt == evtError {
		var data errorData
		_ = json.Unmarshal(reply.Data, &data)
		return fmt.Errorf("%w: %d %s", ErrActivityRejected, data.Code, data.Message)
	}
	return nil
}

// ClearActivity removes the presence while keeping the connection.
func (c *Client) ClearActivity(ctx context.Context) error {
	return c.SetActivity(ctx, nil)
}

// awaitReply reads frames until the reply matching nonce arrives, answering
// pings on the way. Unrelated dispatches are skipped.
func (c *Client) awaitReply(conn net.Conn, nonce string) (response, error) {
	for {
		op, payload, err := readFrame(conn)
		if err != nil {
			return response{}, err
		}

		switch op {
		case OpPing:
			pong := json.RawMessage(payload)
			if len(pong) == 0 {
				pong = json.RawMessage("{}")
			}
			if err := writeFrame(conn, OpPong, pong); err != nil {
				return response{}, err
			}
			continue
		case OpClose:
			var resp response
			_ = json.Unmarshal(payload, &resp)
			return response{}, fmt.Errorf("%w: %d %s", ErrClosedByPeer, resp.Code, resp.Message)
		case OpFrame:
		default:
			continue
		}

		var resp response
		if err := json.Unmarshal(payload, &resp); err != nil {
			return response{}, fmt.Errorf("failed to decode reply: %w", err)
		}
		if resp.Nonce == nonce {
			return resp, nil
		}
	}
}

// exchange runs fn with conn deadlines derived from ctx and the client's
// I/O timeout. Cancelling ctx interrupts blocked reads and writes.
func (c *Client) exchange(ctx context.Context, conn net.Conn, fn func() error) error {
	deadline := time.Now().Add(c.ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set ipc deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := fn()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close sends a close frame and drops the connection. Closing a
// disconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.ioTimeout))
	writeErr := writeFrame(c.conn, OpClose, struct{}{})
	closeErr := c.conn.Close()
	c.conn = nil
	return errors.Join(writeErr, closeErr)
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
