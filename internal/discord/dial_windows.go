// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

//go:build windows

package discord

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

func dialIPC(ctx context.Context) (net.Conn, error) {
	for i := 0; i < 10; i++ {
		conn, err := winio.DialPipeContext(ctx, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, ErrNoSocket
}
