//go:build !windows

// Package mux is the full communication driver. It spawns a companion
// binary (cmd/proclink-shim) that multiplexes the target program's stdout
// and stderr over one transport using length-prefixed, channel-tagged
// frames, and relays end-of-input to the target as a zero-length frame.
//
// The companion's address is fixed at driver construction; sessions never
// re-resolve it.
package mux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/dmora/proclink/driver"
)

const defaultEventBuffer = 64

// Driver implements driver.Driver through the companion binary.
type Driver struct {
	shimPath    string
	eventBuffer int
}

var _ driver.Driver = (*Driver)(nil)

// Option configures the driver at construction time.
type Option func(*Driver)

// WithEventBuffer sets the event channel buffer size. Values <= 0 are
// ignored.
func WithEventBuffer(size int) Option {
	return func(d *Driver) {
		if size > 0 {
			d.eventBuffer = size
		}
	}
}

// New creates a mux driver using the companion binary at shimPath.
func New(shimPath string, opts ...Option) *Driver {
	d := &Driver{shimPath: shimPath, eventBuffer: defaultEventBuffer}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// ShimPath returns the companion binary path the driver was built with.
func (d *Driver) ShimPath() string { return d.shimPath }

// Open spawns the companion binary around the command and returns the
// framed channel. The context is reserved; channel lifetime is controlled
// via Kill.
func (d *Driver) Open(_ context.Context, cmd driver.Command) (driver.Channel, error) {
	c := exec.Command(d.shimPath, handshakeArgs(cmd)...)
	c.Env = driver.MergeEnv(os.Environ(), cmd.Env)
	// The shim leads its own process group so Kill can take the target
	// down with it; a SIGKILLed shim gets no chance to forward anything.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// The shim's own stderr carries its diagnostics, not target output.
	c.Stderr = os.Stderr

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mux: stdin: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mux: stdout: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("mux: start: %w", err)
	}

	ch := &channel{
		cmd:    c,
		stdin:  stdin,
		events: make(chan driver.Event, d.eventBuffer),
		killed: make(chan struct{}),
	}
	go ch.pump(bufio.NewReader(stdout))
	return ch, nil
}

// channel implements driver.Channel over the shim's framed stdio.
type channel struct {
	cmd    *exec.Cmd
	events chan driver.Event

	wmu   sync.Mutex
	stdin io.WriteCloser

	killOnce sync.Once
	killed   chan struct{}
}

var _ driver.Channel = (*channel)(nil)

func (ch *channel) Events() <-chan driver.Event { return ch.events }

// Write frames input bytes to the shim, splitting chunks larger than one
// frame can carry.
func (ch *channel) Write(p []byte) error {
	ch.wmu.Lock()
	defer ch.wmu.Unlock()
	for len(p) > 0 {
		n := min(len(p), MaxFrame)
		if err := WriteFrame(ch.stdin, p[:n]); err != nil {
			return ch.mapWriteError(err)
		}
		p = p[n:]
	}
	return nil
}

// SignalEOF sends the zero-length frame that tells the target no more
// input will arrive.
func (ch *channel) SignalEOF() error {
	ch.wmu.Lock()
	defer ch.wmu.Unlock()
	if err := WriteFrame(ch.stdin, nil); err != nil {
		return ch.mapWriteError(err)
	}
	return nil
}

// Kill tears the channel down: signals the shim's process group, which
// takes the target with it, and closes the transport.
func (ch *channel) Kill() error {
	ch.killOnce.Do(func() {
		close(ch.killed)
		ch.wmu.Lock()
		_ = ch.stdin.Close()
		ch.wmu.Unlock()
		if ch.cmd.Process != nil {
			if syscall.Kill(-ch.cmd.Process.Pid, syscall.SIGKILL) != nil {
				_ = ch.cmd.Process.Kill()
			}
		}
	})
	return nil
}

// pump decodes output frames into events until the transport ends, then
// reports the exit status the shim propagated from the target. A decode
// error is fatal to the session: it kills the shim and terminates the
// event stream.
func (ch *channel) pump(r *bufio.Reader) {
	for {
		payload, err := ReadFrame(r)
		if err != nil {
			if isTransportEnd(err) {
				break
			}
			ch.fail(fmt.Errorf("mux: read frame: %w", err))
			return
		}
		tag, data, err := decodeOutput(payload)
		if err != nil {
			ch.fail(err)
			return
		}
		select {
		case ch.events <- driver.Event{Kind: driver.EventData, Tag: tag, Data: data}:
		case <-ch.killed:
			ch.finish(driver.Event{Kind: driver.EventExit, Status: -1})
			return
		}
	}

	err := ch.cmd.Wait()
	ch.finish(driver.Event{Kind: driver.EventExit, Status: exitStatus(err)})
}

// fail kills the shim and delivers the session-fatal error event.
func (ch *channel) fail(err error) {
	_ = ch.Kill()
	_ = ch.cmd.Wait()
	ch.finish(driver.Event{Kind: driver.EventError, Err: err})
}

// finish delivers the terminal event and closes the event stream.
func (ch *channel) finish(ev driver.Event) {
	select {
	case ch.events <- ev:
	case <-ch.killed:
		// The owner is gone; deliver best-effort so a late reader still
		// sees the terminal event.
		select {
		case ch.events <- ev:
		default:
		}
	}
	close(ch.events)
}

func (ch *channel) mapWriteError(err error) error {
	if errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) {
		return driver.ErrChannelClosed
	}
	return fmt.Errorf("mux: write: %w", err)
}

// isTransportEnd reports whether a frame read failed because the shim's
// stdout closed cleanly between frames.
func isTransportEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed)
}

// exitStatus converts cmd.Wait's error into the exit-event status. The
// shim exits with the target's code, so this is the target's status:
// 0 for clean exit, -1 when the shim died without reporting one.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
