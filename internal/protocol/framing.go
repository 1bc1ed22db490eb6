package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 4

	// DefaultMaxPayloadBytes caps a single message body in either
	// direction. A peer announcing a larger frame is rejected before any
	// body bytes are read.
	DefaultMaxPayloadBytes = 1024 * 1024
)

// ErrNoMessage reports that the peer closed the connection before sending
// a complete frame. It is distinct from a zero-length frame, which
// decodes as an empty payload.
var ErrNoMessage = errors.New("no message")

// WriteFrame writes one length-prefixed frame. Payloads over maxBytes
// are rejected before anything is written to the connection.
func WriteFrame(w io.Writer, payload []byte, maxBytes int) error {
	if len(payload) > maxBytes {
		return fmt.Errorf("payload too large: %d bytes (limit %d)", len(payload), maxBytes)
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	return nil
}

// ReadFrame reads one length-prefixed frame. A clean close before any
// prefix byte, or a close mid-frame, yields ErrNoMessage. The announced
// length is checked against maxBytes before the body is allocated.
func ReadFrame(r io.Reader, maxBytes int) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if int(length) > maxBytes {
		return nil, fmt.Errorf("announced payload too large: %d bytes (limit %d)", length, maxBytes)
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	return payload, nil
}
