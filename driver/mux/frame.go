package mux

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dmora/proclink/driver"
)

// Wire protocol constants. Each unit of traffic is a frame: a 2-byte
// big-endian length prefix followed by the payload. Output frames carry a
// 1-byte channel tag ('o' or 'e') before the data; input frames are raw
// data, with a zero-length frame signaling end of input.
const (
	// ProtoVersion is the fixed handshake version token.
	ProtoVersion = "0.0"

	// MaxFrame is the largest payload one frame can carry.
	MaxFrame = 0xFFFF
)

// DecodeError reports a malformed protocol frame. It is fatal to the
// session that received it.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "mux: malformed frame: " + e.Reason
}

// WriteFrame emits one length-prefixed frame. The payload must not exceed
// MaxFrame; Write splits larger chunks before framing.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrame {
		return fmt.Errorf("mux: frame payload %d exceeds %d bytes", len(payload), MaxFrame)
	}
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(prefix[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("mux: short frame: %w", err)
	}
	return payload, nil
}

// decodeOutput strips the channel tag from an output frame.
func decodeOutput(payload []byte) (driver.Tag, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, &DecodeError{Reason: "frame without channel tag"}
	}
	tag := driver.Tag(payload[0])
	if tag != driver.TagOut && tag != driver.TagErr {
		return 0, nil, &DecodeError{Reason: fmt.Sprintf("unknown channel tag %#x", payload[0])}
	}
	return tag, payload[1:], nil
}

// handshakeArgs builds the companion binary's invocation: protocol
// version, stream dispositions, working directory, then the target
// command after the separator.
func handshakeArgs(cmd driver.Command) []string {
	args := []string{"-proto", ProtoVersion}
	if cmd.FeedInput {
		args = append(args, "-in")
	}
	if cmd.DiscardOut {
		args = append(args, "-out", "nil")
	}
	switch {
	case cmd.MergeErr:
		args = append(args, "-err", "out")
	case cmd.DiscardErr:
		args = append(args, "-err", "nil")
	}
	if cmd.Dir != "" {
		args = append(args, "-dir", cmd.Dir)
	}
	args = append(args, "--")
	return append(args, cmd.Argv()...)
}
