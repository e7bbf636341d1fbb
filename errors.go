package proclink

import (
	"errors"
	"strings"

	"github.com/dmora/proclink/driver"
)

// Sentinel errors for engine and driver operations.
var (
	// ErrCommandNotFound indicates a direct-spawn executable could not be
	// resolved on PATH. Surfaced before any session starts.
	ErrCommandNotFound = errors.New("proclink: command not found")

	// ErrTerminated indicates the session has already ended; the operation
	// (Send, SendEOF) cannot reach the process.
	ErrTerminated = errors.New("proclink: session terminated")

	// ErrResultDiscarded indicates Result was requested for a session
	// configured with WithResultDiscard.
	ErrResultDiscarded = errors.New("proclink: result discarded")

	// ErrOutputToOut indicates ToOut was configured as the stdout sink.
	// ToOut merges stderr into the stdout sink; as the stdout sink itself
	// it has nowhere to merge into. Surfaced before any session starts.
	ErrOutputToOut = errors.New("proclink: ToOut is valid only as the stderr sink")

	// ErrChannelClosed indicates a write raced a process that has already
	// exited. The input feeder recovers from this silently; it is surfaced
	// only through Process.Send.
	ErrChannelClosed = driver.ErrChannelClosed

	// ErrEOFUnsupported is returned by Process.SendEOF on drivers that
	// cannot signal end of input (the pipe fallback).
	ErrEOFUnsupported = driver.ErrEOFUnsupported
)

// InvalidOptionsError reports unrecognized configuration keys passed to
// ParseOptionMap. No session is started when option parsing fails.
type InvalidOptionsError struct {
	// Keys holds the offending option keys, sorted.
	Keys []string
}

func (e *InvalidOptionsError) Error() string {
	return "proclink: invalid options: " + strings.Join(e.Keys, ", ")
}
