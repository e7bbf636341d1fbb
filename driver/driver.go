// Package driver defines the process-channel contract between the proclink
// engine and its spawn backends.
//
// A Driver turns a Command into a live Channel: a bidirectional byte
// channel to a spawned OS process that emits data and exit events. The
// engine's session worker is the only consumer of a Channel; implementations
// never share one between sessions.
//
// Two implementations ship with proclink: driver/mux (the full engine, with
// multiplexed framing and end-of-input signaling through a companion
// binary) and driver/pipe (a degraded fallback on plain OS pipes).
package driver

import (
	"context"
	"errors"
)

// Sentinel errors shared by all driver implementations.
var (
	// ErrChannelClosed indicates a write raced a process that has already
	// exited. Callers treat it as normal end of input.
	ErrChannelClosed = errors.New("proclink: process channel closed")

	// ErrEOFUnsupported is returned by SignalEOF on drivers that cannot
	// express end of input.
	ErrEOFUnsupported = errors.New("proclink: driver cannot signal end of input")
)

// Tag identifies which output stream of the target program a chunk of data
// belongs to. The values double as the wire-protocol channel tags of the
// mux driver.
type Tag byte

const (
	// TagOut marks standard output data.
	TagOut Tag = 'o'

	// TagErr marks standard error data.
	TagErr Tag = 'e'
)

// EventKind discriminates the variants of Event.
type EventKind int

const (
	// EventData carries a chunk of process output (Tag, Data valid).
	EventData EventKind = iota

	// EventExit reports the process exit status (Status valid). A negative
	// status means the process terminated without reporting one.
	EventExit

	// EventError reports a session-fatal driver failure (Err valid), such
	// as a malformed protocol frame.
	EventError
)

// Event is one occurrence on a process channel.
type Event struct {
	Kind   EventKind
	Tag    Tag
	Data   []byte
	Status int
	Err    error
}

// Command describes one program invocation. Exactly one of Program or
// Shell is set: Program/Args for a direct spawn (Program already resolved
// to an executable path), Shell for a command line interpreted by the
// system shell.
type Command struct {
	Program string
	Args    []string
	Shell   string

	// Dir is the working directory; empty inherits the parent's.
	Dir string

	// Env holds extra environment variables merged over the parent's.
	Env map[string]string

	// WantInput requests a writable input side. When false the target's
	// stdin is not connected.
	WantInput bool

	// FeedInput reports that a data-carrying input source is configured
	// (as opposed to none or interactive receive). The mux driver
	// announces this to its companion binary during the handshake.
	FeedInput bool

	// DiscardOut and DiscardErr suppress capture of the respective stream.
	DiscardOut bool
	DiscardErr bool

	// MergeErr routes the target's stderr into the stdout stream.
	// The channel then only produces TagOut data events.
	MergeErr bool
}

// Argv returns the effective argument vector of the command, routing Shell
// invocations through the system shell.
func (c Command) Argv() []string {
	if c.Shell != "" {
		return []string{"/bin/sh", "-c", c.Shell}
	}
	return append([]string{c.Program}, c.Args...)
}

// Channel is a live byte channel to a spawned process. Exactly one session
// worker owns a Channel for its entire life; ownership never transfers.
//
// Write and SignalEOF may be called from two goroutines (the worker loop
// and an asynchronous input feeder); implementations must serialize them.
type Channel interface {
	// Events returns the event stream. The driver closes it after the
	// terminal event (EventExit or EventError) has been delivered, or
	// after Kill.
	Events() <-chan Event

	// Write sends input bytes to the process. Returns ErrChannelClosed
	// if the process is already gone.
	Write(p []byte) error

	// SignalEOF tells the process no more input will arrive. Drivers
	// without end-of-input support return ErrEOFUnsupported.
	SignalEOF() error

	// Kill tears the channel down immediately. Idempotent.
	Kill() error
}

// Driver spawns external programs and yields their communication channel.
type Driver interface {
	Open(ctx context.Context, cmd Command) (Channel, error)
}
