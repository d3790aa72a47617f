// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package logging provides the process-wide zerolog logger for Cinecord.
//
// The daemon usually runs detached from a terminal, so besides the usual
// JSON/console output on stderr the logger can tee into a size-rotated file.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	    File:   logging.FileConfig{Path: "/var/log/cinecord.log"},
//	})
//
//	logging.Info().Str("user", username).Msg("Polling Trakt")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Tick skipped")
//
// Always terminate event chains with .Msg() or .Send(); an unterminated
// event is never written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures Init. Zero values take the DefaultConfig values, except
// Timestamp and Caller which are plain switches.
type Config struct {
	Level     string // trace, debug, info, warn, error
	Format    string // json or console
	Caller    bool
	Timestamp bool
	Output    io.Writer // stderr when nil

	// File tees JSON into a rotated file when Path is set.
	File FileConfig
}

// FileConfig configures the rotated log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig logs JSON at info to stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger

	// fileWriter is the currently open rotated file, if any.
	fileWriter *lumberjack.Logger

	mu sync.RWMutex
)

//nolint:gochecknoinits // packages log before main calls Init
func init() {
	initLogger(DefaultConfig())
}

// Init replaces the global logger. A log file opened by an earlier Init is
// closed first.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// Close flushes and closes the rotated log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// initLogger requires mu.
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
		}
	}

	if fileWriter != nil {
		_ = fileWriter.Close() //nolint:errcheck // replaced below
		fileWriter = nil
	}
	if cfg.File.Path != "" {
		fileWriter = newFileWriter(cfg.File)
		// The file always receives JSON so it stays machine readable.
		output = zerolog.MultiLevelWriter(output, fileWriter)
	}

	ctx := zerolog.New(output).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log = ctx.Logger()
}

func newFileWriter(fc FileConfig) *lumberjack.Logger {
	if fc.MaxSizeMB <= 0 {
		fc.MaxSizeMB = 10
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}
}

// parseLevel maps a config level to zerolog. "warning" is accepted as an
// alias; anything unparseable falls back to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger swaps the global logger. Tests use it with NewTestLogger.
//
//nolint:gocritic // zerolog.Logger is passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// current returns the logger under the read lock so a concurrent Init
// never tears the value.
func current() *zerolog.Logger {
	l := Logger()
	return &l
}

// With starts a child logger context.
//
//	ipcLogger := logging.With().Str("component", "discord").Logger()
func With() zerolog.Context { return current().With() }

func Debug() *zerolog.Event { return current().Debug() }
func Info() *zerolog.Event  { return current().Info() }
func Warn() *zerolog.Event  { return current().Warn() }
func Error() *zerolog.Event { return current().Error() }

// Fatal logs and then calls os.Exit(1). Deferred functions do not run.
//
//	logging.Fatal().Err(err).Msg("Failed to create Discord IPC client")
func Fatal() *zerolog.Event { return current().Fatal() }

// NewTestLogger returns a JSON logger writing to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
