//go:build !windows

// Package drivertest provides a compliance suite for driver implementations.
//
// Both bundled drivers are expected to pass it; third-party drivers can run
// it against themselves to verify the Channel behavioral contract:
//
//	func TestMyDriver(t *testing.T) {
//		drivertest.RunDriverTests(t, func(t *testing.T) driver.Driver {
//			return mydriver.New()
//		})
//	}
//
// Enhanced capabilities (end-of-input signaling) are discovered by probing
// SignalEOF, the same way the engine degrades per driver.
package drivertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmora/proclink/driver"
)

// eventTimeout bounds every wait on a channel's event stream so a broken
// driver fails the suite instead of hanging it.
const eventTimeout = 10 * time.Second

// RunDriverTests runs the full Channel compliance suite. The factory is
// called once per subtest so each session gets a fresh driver.
func RunDriverTests(t *testing.T, factory func(t *testing.T) driver.Driver) {
	t.Helper()

	t.Run("Stdout", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{Program: "echo", Args: []string{"-n", "hello"}})
		res := collect(t, ch)
		require.True(t, res.exited)
		require.Equal(t, 0, res.status)
		require.Equal(t, "hello", res.out.String())
		require.Empty(t, res.errOut.String())
	})

	t.Run("SeparateStderr", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{
			Program: "sh",
			Args:    []string{"-c", "printf out; printf err 1>&2"},
		})
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Equal(t, "out", res.out.String())
		require.Equal(t, "err", res.errOut.String())
	})

	t.Run("MergeStderr", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{
			Program:  "sh",
			Args:     []string{"-c", "printf err 1>&2"},
			MergeErr: true,
		})
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Equal(t, "err", res.out.String(), "merged stderr must arrive on the out channel")
		require.Empty(t, res.errOut.String())
	})

	t.Run("DiscardStdout", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{
			Program:    "sh",
			Args:       []string{"-c", "printf gone; printf kept 1>&2"},
			DiscardOut: true,
		})
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Empty(t, res.out.String())
		require.Equal(t, "kept", res.errOut.String())
	})

	t.Run("Shell", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{Shell: "printf one && printf two"})
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Equal(t, "onetwo", res.out.String())
	})

	t.Run("ExitStatus", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{Shell: "exit 7"})
		res := collect(t, ch)
		require.True(t, res.exited)
		require.Equal(t, 7, res.status)
	})

	t.Run("Env", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{
			Program: "sh",
			Args:    []string{"-c", `printf %s "$DRIVERTEST_VALUE"`},
			Env:     map[string]string{"DRIVERTEST_VALUE": "42"},
		})
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Equal(t, "42", res.out.String())
	})

	t.Run("Dir", func(t *testing.T) {
		dir := t.TempDir()
		resolved, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)

		ch := open(t, factory(t), driver.Command{Program: "pwd", Dir: dir})
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Equal(t, resolved+"\n", res.out.String())
	})

	t.Run("Kill", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{Program: "sleep", Args: []string{"60"}})
		require.NoError(t, ch.Kill())
		res := collect(t, ch)
		if res.exited {
			require.NotEqual(t, 0, res.status, "a killed session must not report success")
		}
	})

	t.Run("KillTerminatesTarget", func(t *testing.T) {
		// The target reports its own pid, then ignores all I/O. Killing
		// the channel must terminate the target itself, not just the
		// driver's side of the transport.
		ch := open(t, factory(t), driver.Command{Shell: "echo $$ && exec sleep 60"})
		pid := awaitPid(t, ch)
		require.NoError(t, ch.Kill())
		collect(t, ch)
		require.Eventually(t, func() bool { return processGone(pid) },
			eventTimeout, 10*time.Millisecond,
			"target process survived Kill")
	})

	t.Run("WriteAfterKill", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{Program: "cat", WantInput: true, FeedInput: true})
		require.NoError(t, ch.Kill())
		require.ErrorIs(t, ch.Write([]byte("late")), driver.ErrChannelClosed)
		collect(t, ch)
	})

	t.Run("Input", func(t *testing.T) {
		ch := open(t, factory(t), driver.Command{Program: "cat", WantInput: true, FeedInput: true})
		require.NoError(t, ch.Write([]byte("hello")))

		if err := ch.SignalEOF(); errors.Is(err, driver.ErrEOFUnsupported) {
			// Degraded transport: the session can only end by explicit kill.
			require.NoError(t, ch.Kill())
			collect(t, ch)
			return
		}
		res := collect(t, ch)
		require.Equal(t, 0, res.status)
		require.Equal(t, "hello", res.out.String())
	})
}

// sessionResult accumulates a channel's event stream to completion.
type sessionResult struct {
	out    bytes.Buffer
	errOut bytes.Buffer
	exited bool
	status int
	err    error
}

// awaitPid reads the target's first output line, which the caller
// arranges to be the target's own pid.
func awaitPid(t *testing.T, ch driver.Channel) int {
	t.Helper()
	var buf bytes.Buffer
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-ch.Events():
			require.True(t, ok, "channel closed before the target reported its pid")
			if ev.Kind != driver.EventData || ev.Tag != driver.TagOut {
				continue
			}
			buf.Write(ev.Data)
			if i := bytes.IndexByte(buf.Bytes(), '\n'); i >= 0 {
				pid, err := strconv.Atoi(strings.TrimSpace(string(buf.Bytes()[:i])))
				require.NoError(t, err)
				return pid
			}
		case <-deadline:
			t.Fatal("timed out waiting for the target's pid")
		}
	}
}

// processGone reports whether pid is dead. A zombie counts as dead: it
// has been killed but not yet reaped by its new parent.
func processGone(pid int) bool {
	if syscall.Kill(pid, 0) != nil {
		return true
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	if i := bytes.LastIndexByte(stat, ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] == 'Z'
	}
	return false
}

func open(t *testing.T, d driver.Driver, cmd driver.Command) driver.Channel {
	t.Helper()
	ch, err := d.Open(context.Background(), cmd)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Kill() })
	return ch
}

// collect drains the event stream until the driver closes it.
func collect(t *testing.T, ch driver.Channel) *sessionResult {
	t.Helper()
	res := &sessionResult{}
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return res
			}
			switch ev.Kind {
			case driver.EventData:
				if ev.Tag == driver.TagErr {
					res.errOut.Write(ev.Data)
				} else {
					res.out.Write(ev.Data)
				}
			case driver.EventExit:
				res.exited = true
				res.status = ev.Status
			case driver.EventError:
				res.err = ev.Err
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel events")
		}
	}
}
