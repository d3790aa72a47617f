// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package discord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Opcode identifies an IPC frame.
type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

func (op Opcode) String() string {
	switch op {
	case OpHandshake:
		return "handshake"
	case OpFrame:
		return "frame"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(%d)", uint32(op))
	}
}

const (
	headerSize = 8

	// maxFrameSize caps inbound payloads. READY replies carry the user
	// object and config, which stay well below this.
	maxFrameSize = 64 * 1024
)

// ErrFrameTooLarge is returned when a peer announces an oversized payload.
var ErrFrameTooLarge = errors.New("discord ipc: frame too large")

// writeFrame encodes v as JSON and writes it as a single frame.
func writeFrame(w io.Writer, op Opcode, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", op, err)
	}

	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload))) //nolint:gosec // bounded by JSON of our own structs
	copy(buf[headerSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", op, err)
	}
	return nil
}

// readFrame reads one frame and returns its opcode and raw JSON payload.
func readFrame(r io.Reader) (Opcode, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	op := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return op, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return op, nil, fmt.Errorf("failed to read %s payload: %w", op, err)
	}
	return op, payload, nil
}
