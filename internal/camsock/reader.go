// Package camsock receives pre-encoded JPEG frames from the QNX camera over a
// persistent TCP connection. The producer frames each image as an 8-byte
// little-endian length prefix followed by exactly that many JPEG bytes.
package camsock

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/plantbridge/backend/internal/frame"
)

const prefixSize = 8

// DefaultMaxFrameBytes bounds a single frame; a larger prefix means the
// stream is corrupt and the connection is abandoned.
const DefaultMaxFrameBytes int64 = 32 << 20

// Reader speaks the framing protocol over one accepted connection. A fresh
// connection gets a fresh Reader; nothing carries over between connections.
type Reader struct {
	conn     net.Conn
	maxFrame int64
}

func NewReader(conn net.Conn, maxFrame int64) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Reader{conn: conn, maxFrame: maxFrame}
}

func (r *Reader) Name() string { return "socket" }

// CaptureOnce reads one complete frame. The producer hanging up, a partial
// frame at close, or a corrupt length all end this connection with
// ErrSourceClosed; a partial payload is discarded, never delivered.
func (r *Reader) CaptureOnce() (*frame.Encoded, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r.conn, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, frame.ErrSourceClosed
		}
		return nil, fmt.Errorf("read length prefix: %v: %w", err, frame.ErrSourceClosed)
	}

	length := binary.LittleEndian.Uint64(prefix[:])
	if length == 0 {
		// Empty frame; nothing to install this cycle.
		return nil, nil
	}
	if length > uint64(r.maxFrame) {
		return nil, fmt.Errorf("frame length %d exceeds %d: %w", length, r.maxFrame, frame.ErrSourceClosed)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.conn, payload); err != nil {
		return nil, fmt.Errorf("short frame (%d bytes expected): %v: %w", length, err, frame.ErrSourceClosed)
	}

	return &frame.Encoded{JPEG: payload, CapturedAt: time.Now()}, nil
}
