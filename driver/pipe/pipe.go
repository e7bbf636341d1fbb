//go:build !windows

// Package pipe is the degraded fallback driver: plain OS pipes, no
// protocol framing, and no way to signal end of input. Stdout and stderr
// are two independent raw byte streams (or one, when merged).
//
// The missing end-of-input signal is a documented limitation: a program
// that fully drains its stdin before producing output will stall forever
// on this driver. Use driver/mux when targets need to see EOF.
package pipe

import (
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

// Default channel configuration values.
const (
	defaultEventBuffer = 64
	defaultReadSize    = 32 * 1024
)

// Options holds resolved construction-time configuration for the driver.
type Options struct {
	// EventBuffer is the channel buffer size for process events.
	EventBuffer int

	// ReadSize is the block size for pipe reads.
	ReadSize int
}

// Option configures the driver at construction time.
type Option func(*Options)

// WithEventBuffer sets the event channel buffer size. Values <= 0 are
// ignored.
func WithEventBuffer(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.EventBuffer = size
		}
	}
}

// WithReadSize sets the pipe read block size. Values <= 0 are ignored.
func WithReadSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ReadSize = size
		}
	}
}

// Driver implements driver.Driver over plain OS pipes.
type Driver struct {
	opts Options
}

var _ driver.Driver = (*Driver)(nil)

// New creates a pipe driver.
func New(opts ...Option) *Driver {
	o := Options{
		EventBuffer: defaultEventBuffer,
		ReadSize:    defaultReadSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Driver{opts: o}
}

// Open spawns the command and returns its channel. The context is
// reserved; channel lifetime is controlled via Kill.
func (d *Driver) Open(_ context.Context, cmd driver.Command) (driver.Channel, error) {
	argv := cmd.Argv()
	c := exec.Command(argv[0], argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = driver.MergeEnv(os.Environ(), cmd.Env)

	ch := &channel{
		cmd:    c,
		events: make(chan driver.Event, d.opts.EventBuffer),
		killed: make(chan struct{}),
	}

	var readers []reader
	if !cmd.DiscardOut {
		stdout, err := c.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("pipe: stdout: %w", err)
		}
		readers = append(readers, reader{r: stdout, tag: driver.TagOut})
	}
	switch {
	case cmd.MergeErr && !cmd.DiscardOut:
		c.Stderr = c.Stdout
	case cmd.MergeErr, cmd.DiscardErr:
		// nil Stderr: the target writes to the null device.
	default:
		stderr, err := c.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("pipe: stderr: %w", err)
		}
		readers = append(readers, reader{r: stderr, tag: driver.TagErr})
	}
	if cmd.WantInput {
		stdin, err := c.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("pipe: stdin: %w", err)
		}
		ch.stdin = stdin
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("pipe: start: %w", err)
	}

	go ch.pump(readers, d.opts.ReadSize)
	return ch, nil
}

type reader struct {
	r   io.ReadCloser
	tag driver.Tag
}

// channel implements driver.Channel for one spawned process.
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

// Write sends input bytes to the target's stdin. A write racing process
// exit surfaces as ErrChannelClosed.
func (ch *channel) Write(p []byte) error {
	ch.wmu.Lock()
	defer ch.wmu.Unlock()
	if ch.stdin == nil {
		return driver.ErrChannelClosed
	}
	if _, err := ch.stdin.Write(p); err != nil {
		if isClosedWrite(err) {
			return driver.ErrChannelClosed
		}
		return fmt.Errorf("pipe: write: %w", err)
	}
	return nil
}

// SignalEOF is unsupported: plain pipes held open for interactive input
// cannot express end of input without tearing the channel down.
func (ch *channel) SignalEOF() error {
	return driver.ErrEOFUnsupported
}

// Kill tears the channel down: kills the process and closes stdin.
// The pump goroutine observes the death and delivers the terminal event.
func (ch *channel) Kill() error {
	ch.killOnce.Do(func() {
		close(ch.killed)
		ch.wmu.Lock()
		if ch.stdin != nil {
			_ = ch.stdin.Close()
		}
		ch.wmu.Unlock()
		if ch.cmd.Process != nil {
			_ = ch.cmd.Process.Kill()
		}
	})
	return nil
}

// pump reads the output pipes until EOF, waits for the process, emits the
// exit event and closes the event stream.
func (ch *channel) pump(readers []reader, readSize int) {
	var wg sync.WaitGroup
	for _, rd := range readers {
		wg.Add(1)
		go func(rd reader) {
			defer wg.Done()
			ch.readStream(rd, readSize)
		}(rd)
	}
	wg.Wait()

	err := ch.cmd.Wait()
	exit := driver.Event{Kind: driver.EventExit, Status: exitStatus(err)}
	select {
	case ch.events <- exit:
	case <-ch.killed:
		// The owner is gone; deliver best-effort so a late reader still
		// sees the terminal event.
		select {
		case ch.events <- exit:
		default:
		}
	}
	close(ch.events)
}

// readStream emits one data event per read until EOF or channel death.
func (ch *channel) readStream(rd reader, readSize int) {
	for {
		buf := make([]byte, readSize)
		n, err := rd.r.Read(buf)
		if n > 0 {
			select {
			case ch.events <- driver.Event{Kind: driver.EventData, Tag: rd.tag, Data: buf[:n]}:
			case <-ch.killed:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// exitStatus converts cmd.Wait's error into the exit-event status:
// 0 for clean exit, the reported code for failures, -1 when the process
// died without reporting one (signal-killed).
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

// isClosedWrite reports whether a stdin write failed because the reader
// side is gone.
func isClosedWrite(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE)
}
