package proclink

import (
	"context"
	"sync"

	"github.com/dmora/proclink/driver"
)

// fakeChannel is a scriptable driver.Channel.
// Shared across root-package test files.
type fakeChannel struct {
	events chan driver.Event

	writeFn func(p []byte) error
	eofFn   func() error
	killFn  func() error

	mu       sync.Mutex
	writes   [][]byte
	eofCount int
	killed   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan driver.Event, 16)}
}

func (c *fakeChannel) Events() <-chan driver.Event { return c.events }

func (c *fakeChannel) Write(p []byte) error {
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.mu.Unlock()
	if c.writeFn != nil {
		return c.writeFn(p)
	}
	return nil
}

func (c *fakeChannel) SignalEOF() error {
	c.mu.Lock()
	c.eofCount++
	c.mu.Unlock()
	if c.eofFn != nil {
		return c.eofFn()
	}
	return nil
}

func (c *fakeChannel) Kill() error {
	c.mu.Lock()
	c.killed = true
	c.mu.Unlock()
	if c.killFn != nil {
		return c.killFn()
	}
	return nil
}

// out emits a data event on the out channel.
func (c *fakeChannel) out(data string) {
	c.events <- driver.Event{Kind: driver.EventData, Tag: driver.TagOut, Data: []byte(data)}
}

// errOut emits a data event on the err channel.
func (c *fakeChannel) errOut(data string) {
	c.events <- driver.Event{Kind: driver.EventData, Tag: driver.TagErr, Data: []byte(data)}
}

// exit emits the terminal exit event and closes the stream.
func (c *fakeChannel) exit(status int) {
	c.events <- driver.Event{Kind: driver.EventExit, Status: status}
	close(c.events)
}

// fail emits the terminal error event and closes the stream.
func (c *fakeChannel) fail(err error) {
	c.events <- driver.Event{Kind: driver.EventError, Err: err}
	close(c.events)
}

func (c *fakeChannel) recordedWrites() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeChannel) recordedEOFs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eofCount
}

func (c *fakeChannel) wasKilled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.killed
}

// fakeDriver is a scriptable driver.Driver.
type fakeDriver struct {
	openFn func(ctx context.Context, cmd driver.Command) (driver.Channel, error)

	mu   sync.Mutex
	cmds []driver.Command
}

func (d *fakeDriver) Open(ctx context.Context, cmd driver.Command) (driver.Channel, error) {
	d.mu.Lock()
	d.cmds = append(d.cmds, cmd)
	d.mu.Unlock()
	if d.openFn != nil {
		return d.openFn(ctx, cmd)
	}
	ch := newFakeChannel()
	ch.exit(0)
	return ch, nil
}

func (d *fakeDriver) openedCommands() []driver.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.Command(nil), d.cmds...)
}
