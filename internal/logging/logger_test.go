// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
	if cfg.File.Path != "" {
		t.Errorf("expected no log file by default, got %q", cfg.File.Path)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// The tests below mutate the global logger and must not run in parallel.

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("slug", "inception-2010").Msg("rating cached")

	out := buf.String()
	for _, want := range []string{`"level":"info"`, `"slug":"inception-2010"`, `"message":"rating cached"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestInitRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Debug().Msg("hidden")
	Info().Msg("hidden too")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info lines should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestInitWithFileTee(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "cinecord.log")

	Init(Config{Level: "info", Format: "console", Output: &buf, File: FileConfig{Path: path}})
	t.Cleanup(func() {
		_ = Close()
		Init(DefaultConfig())
	})

	Info().Msg("to both sinks")
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to both sinks"`) {
		t.Errorf("file should hold JSON lines, got: %s", data)
	}
	if !strings.Contains(buf.String(), "to both sinks") {
		t.Errorf("console output missing message: %s", buf.String())
	}
}

func TestCtxAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithCorrelationID(context.Background(), "abcd1234")
	ctx = ContextWithRequestID(ctx, "req-1")
	Ctx(ctx).Info().Msg("tick")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"abcd1234"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id: %s", out)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if a == b {
		t.Errorf("expected distinct IDs, got %q twice", a)
	}
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context should have no ID, got %q", got)
	}
}
