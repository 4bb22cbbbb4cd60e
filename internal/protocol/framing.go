// internal/protocol/framing.go
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload. A peer announcing a larger
// frame is misbehaving and its connection is torn down.
const MaxFrameSize = 1 << 20 // 1 MiB

// FramingError reports a stream that ended or broke before a complete frame
// was read. It is fatal to the connection.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing: %s: %v", e.Reason, e.Err)
	}
	return "framing: " + e.Reason
}

func (e *FramingError) Unwrap() error { return e.Err }

// ProtocolError reports a complete frame whose payload could not be decoded.
// It is fatal to the connection.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Encode writes one frame: a 4-byte unsigned big-endian payload length
// followed by the JSON payload.
func Encode(w io.Writer, msg Message) error {
	payload, err := Marshal(msg)
	if err != nil {
		return err
	}
	if len(payload) > MaxFrameSize {
		return &ProtocolError{Reason: fmt.Sprintf("payload of %d bytes exceeds frame limit", len(payload))}
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return &FramingError{Reason: "write length prefix", Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &FramingError{Reason: "write payload", Err: err}
	}
	return nil
}

// Decode reads exactly one frame from r and returns the decoded message.
// io.ReadFull loops over short reads, so a frame split across many TCP
// segments is still assembled whole.
func Decode(r io.Reader) (Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, &FramingError{Reason: "read length prefix", Err: err}
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("frame of %d bytes exceeds limit", n)}
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FramingError{Reason: "read payload", Err: err}
	}
	return Unmarshal(payload)
}
