//go:build !windows

package proclink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmora/proclink/driver/mux"
	"github.com/dmora/proclink/driver/pipe"
)

// pipeEngine builds an engine pinned to the degraded pipe driver so the
// integration tests run without the companion binary installed.
func pipeEngine(t *testing.T) *Engine {
	t.Helper()
	return New(WithDriver(pipe.New()))
}

func TestNew_DriverSelection(t *testing.T) {
	t.Run("ExplicitDriver", func(t *testing.T) {
		d := &fakeDriver{}
		e := New(WithDriver(d))
		require.Same(t, d, e.Driver().(*fakeDriver))
	})

	t.Run("ExplicitShimPath", func(t *testing.T) {
		e := New(WithShimPath("/opt/proclink/proclink-shim"))
		m, ok := e.Driver().(*mux.Driver)
		require.True(t, ok)
		require.Equal(t, "/opt/proclink/proclink-shim", m.ShimPath())
	})

	t.Run("FallbackWithoutShim", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		e := New()
		_, ok := e.Driver().(*pipe.Driver)
		require.True(t, ok)
	})
}

func TestEngine_Validate(t *testing.T) {
	e := New(WithShimPath(filepath.Join(t.TempDir(), "absent-shim")))
	require.ErrorIs(t, e.Validate(), ErrCommandNotFound)

	require.NoError(t, pipeEngine(t).Validate())
}

func TestRun_Identity(t *testing.T) {
	res, err := pipeEngine(t).Run(testContext(t), "echo", []string{"-n", "Hello world!"})
	require.NoError(t, err)
	require.True(t, res.Success())
	require.Equal(t, 0, res.Status)

	text, ok := res.Out.Text()
	require.True(t, ok)
	require.Equal(t, "Hello world!", text)
	require.True(t, res.Err.IsNone(), "stderr defaults to discard")
}

func TestRun_CommandNotFound(t *testing.T) {
	_, err := pipeEngine(t).Run(testContext(t), "definitely-not-a-real-binary-4c1f", nil)
	require.ErrorIs(t, err, ErrCommandNotFound)
}

func TestRun_InvalidEnv(t *testing.T) {
	_, err := pipeEngine(t).Run(testContext(t), "true", nil,
		WithEnv(map[string]string{"BAD=NAME": "v"}),
	)
	require.Error(t, err)
}

func TestRun_ToOutAsStdoutRejected(t *testing.T) {
	// ToOut merges stderr into stdout; as the stdout sink it would drop
	// every byte, so the invocation fails before any process starts.
	d := &fakeDriver{}
	e := New(WithDriver(d))

	_, err := e.RunShell(testContext(t), "printf kept", WithOutput(ToOut()))
	require.ErrorIs(t, err, ErrOutputToOut)
	require.Empty(t, d.openedCommands())

	_, err = e.SpawnShell(testContext(t), "printf kept", WithOutput(ToOut()))
	require.ErrorIs(t, err, ErrOutputToOut)
	require.Empty(t, d.openedCommands())
}

func TestRun_ExitStatus(t *testing.T) {
	res, err := pipeEngine(t).RunShell(testContext(t), "exit 11")
	require.NoError(t, err)
	require.False(t, res.Success())
	require.Equal(t, 11, res.Status)
	require.False(t, res.Stopped)
}

func TestRun_Env(t *testing.T) {
	res, err := pipeEngine(t).RunShell(testContext(t), `printf %s "$PROCLINK_TEST"`,
		WithEnv(map[string]string{"PROCLINK_TEST": "propagated"}),
	)
	require.NoError(t, err)
	text, _ := res.Out.Text()
	require.Equal(t, "propagated", text)
}

func TestRun_Dir(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	res, err := pipeEngine(t).Run(testContext(t), "pwd", nil, WithDir(dir))
	require.NoError(t, err)
	text, _ := res.Out.Text()
	require.Equal(t, resolved+"\n", text)
}

func TestRun_StderrCapture(t *testing.T) {
	res, err := pipeEngine(t).RunShell(testContext(t), "printf out; printf err 1>&2",
		WithStderr(Capture()),
	)
	require.NoError(t, err)

	text, _ := res.Out.Text()
	require.Equal(t, "out", text)
	text, _ = res.Err.Text()
	require.Equal(t, "err", text)
}

func TestRun_StderrMerge(t *testing.T) {
	res, err := pipeEngine(t).RunShell(testContext(t), "printf err 1>&2",
		WithStderr(ToOut()),
	)
	require.NoError(t, err)
	text, _ := res.Out.Text()
	require.Equal(t, "err", text)
}

func TestRun_InputLiteral(t *testing.T) {
	// head exits on its own after 5 bytes, so the session completes even
	// though the pipe driver cannot signal end of input.
	res, err := pipeEngine(t).Run(testContext(t), "head", []string{"-c", "5"},
		WithInput(InputString("hello world")),
		WithAsyncInput(),
	)
	require.NoError(t, err)
	text, _ := res.Out.Text()
	require.Equal(t, "hello", text)
}

func TestRun_OutputToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captured.txt")
	res, err := pipeEngine(t).Run(testContext(t), "echo", []string{"-n", "to disk"},
		WithOutput(ToPath(path)),
	)
	require.NoError(t, err)

	got, ok := res.Out.Path()
	require.True(t, ok)
	require.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "to disk", string(data))
}

func TestRun_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := pipeEngine(t).Run(ctx, "sleep", []string{"60"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, res.Stopped)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestSpawn_Streaming(t *testing.T) {
	e := pipeEngine(t)
	proc, err := e.SpawnShell(testContext(t), `printf 'Hello\n'; sleep 0.1; printf 'World\n'`,
		WithOutput(Stream()),
	)
	require.NoError(t, err)
	require.NotEmpty(t, proc.ID())

	stream, ok := proc.Out().Stream()
	require.True(t, ok)

	var got []byte
	for chunk := range stream.Chunks() {
		got = append(got, chunk...)
	}
	require.Equal(t, "Hello\nWorld\n", string(got))

	res, err := proc.Result(testContext(t))
	require.NoError(t, err)
	require.True(t, res.Success())
	require.False(t, proc.Alive())
}

func TestSpawn_Stop(t *testing.T) {
	proc, err := pipeEngine(t).Spawn(testContext(t), "sleep", []string{"60"})
	require.NoError(t, err)
	require.True(t, proc.Alive())

	res, err := proc.Stop(testContext(t))
	require.NoError(t, err)
	require.True(t, res.Stopped)
	require.False(t, res.Success())
}

func TestSpawn_SendInteractive(t *testing.T) {
	ctx := testContext(t)
	proc, err := pipeEngine(t).Spawn(ctx, "cat", nil,
		WithInput(ReceiveInput()),
		WithOutput(Stream()),
	)
	require.NoError(t, err)

	stream, _ := proc.Out().Stream()
	require.NoError(t, proc.Send(ctx, []byte("ping\n")))

	chunk, more := stream.Next()
	require.True(t, more)
	require.Equal(t, "ping\n", string(chunk))

	// The pipe transport cannot express end of input.
	require.ErrorIs(t, proc.SendEOF(ctx), ErrEOFUnsupported)

	res, err := proc.Stop(ctx)
	require.NoError(t, err)
	require.True(t, res.Stopped)
}

func TestSpawn_ResultDiscard(t *testing.T) {
	proc, err := pipeEngine(t).Spawn(testContext(t), "true", nil, WithResultDiscard())
	require.NoError(t, err)

	<-proc.Done()
	_, err = proc.Result(testContext(t))
	require.ErrorIs(t, err, ErrResultDiscarded)
}

func TestSpawn_ResultToMailbox(t *testing.T) {
	results := make(chan Result, 1)
	proc, err := pipeEngine(t).Spawn(testContext(t), "echo", []string{"-n", "mailed"},
		WithResultTo(results),
	)
	require.NoError(t, err)

	select {
	case res := <-results:
		require.True(t, res.Success())
		text, _ := res.Out.Text()
		require.Equal(t, "mailed", text)
	case <-time.After(10 * time.Second):
		t.Fatal("result was not delivered")
	}
	<-proc.Done()
}

func TestEngine_OpenCommandShape(t *testing.T) {
	d := &fakeDriver{}
	e := New(WithDriver(d))

	mailbox := make(chan Chunk, 1)
	_, err := e.RunShell(testContext(t), "exit 0",
		WithInput(InputString("x")),
		WithOutput(Discard()),
		WithStderr(SendTo(mailbox)),
		WithDir("/tmp"),
	)
	require.NoError(t, err)

	cmds := d.openedCommands()
	require.Len(t, cmds, 1)
	cmd := cmds[0]
	require.Equal(t, "exit 0", cmd.Shell)
	require.Equal(t, "/tmp", cmd.Dir)
	require.True(t, cmd.WantInput)
	require.True(t, cmd.FeedInput)
	require.True(t, cmd.DiscardOut)
	require.False(t, cmd.DiscardErr)
	require.False(t, cmd.MergeErr)
}

func TestEngine_MergeFlagFromSink(t *testing.T) {
	d := &fakeDriver{}
	e := New(WithDriver(d))

	_, err := e.RunShell(testContext(t), "exit 0", WithStderr(ToOut()))
	require.NoError(t, err)

	cmds := d.openedCommands()
	require.Len(t, cmds, 1)
	require.True(t, cmds[0].MergeErr)
	require.False(t, cmds[0].WantInput)
	require.False(t, cmds[0].FeedInput)
}

func TestEngine_ShellSkipsPathLookup(t *testing.T) {
	d := &fakeDriver{}
	e := New(WithDriver(d))

	_, err := e.RunShell(testContext(t), "definitely-not-a-real-binary-4c1f")
	require.NoError(t, err, "shell command lines are not pre-resolved")
}
