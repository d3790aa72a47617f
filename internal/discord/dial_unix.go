// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

//go:build !windows

package discord

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Subdirectories used by sandboxed Discord builds.
var sandboxDirs = []string{
	"",
	filepath.Join("app", "com.discordapp.Discord"), // flatpak
	"snap.discord",
}

// socketPaths lists candidate sockets in probe order.
func socketPaths(getenv func(string) string) []string {
	seen := make(map[string]bool)
	var bases []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := getenv(key); dir != "" && !seen[dir] {
			seen[dir] = true
			bases = append(bases, dir)
		}
	}
	if !seen["/tmp"] {
		bases = append(bases, "/tmp")
	}

	paths := make([]string, 0, len(bases)*len(sandboxDirs)*10)
	for _, base := range bases {
		for _, sub := range sandboxDirs {
			for i := 0; i < 10; i++ {
				paths = append(paths, filepath.Join(base, sub, fmt.Sprintf("discord-ipc-%d", i)))
			}
		}
	}
	return paths
}

func dialIPC(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	for _, path := range socketPaths(os.Getenv) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, ErrNoSocket
}
