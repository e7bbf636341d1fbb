package proclink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func spawnFake(t *testing.T, ch *fakeChannel, opts ...Option) *Process {
	t.Helper()
	w := newWorker(ch, resolveOptions(deliverKeep, opts...))
	go w.run()
	return newProcess("test-session", w)
}

func TestProcess_ID(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch)
	require.Equal(t, "test-session", p.ID())
	ch.exit(0)
}

func TestProcess_AliveTracksSession(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch)
	require.True(t, p.Alive())

	ch.exit(0)
	<-p.Done()
	require.False(t, p.Alive())
}

func TestProcess_ResultRepeatable(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch)
	ch.out("kept")
	ch.exit(0)

	ctx := testContext(t)
	first, err := p.Result(ctx)
	require.NoError(t, err)
	second, err := p.Result(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)

	text, _ := first.Out.Text()
	require.Equal(t, "kept", text)
}

func TestProcess_StreamOutputAvailableImmediately(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch, WithOutput(Stream()))

	stream, ok := p.Out().Stream()
	require.True(t, ok, "stream output must be usable before the session ends")
	require.True(t, p.ErrOut().IsNone())

	ch.out("live")
	chunk, more := stream.Next()
	require.True(t, more)
	require.Equal(t, "live", string(chunk))

	ch.exit(0)
	_, more = stream.Next()
	require.False(t, more)
}

func TestProcess_BufferedOutputArrivesWithResult(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch)

	// Accumulating sinks have no pre-finalization value.
	require.True(t, p.Out().IsNone())

	ch.out("buffered")
	ch.exit(0)
	res, err := p.Result(testContext(t))
	require.NoError(t, err)
	text, _ := res.Out.Text()
	require.Equal(t, "buffered", text)
}

func TestProcess_SendAndEOF(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch, WithInput(ReceiveInput()))
	ctx := testContext(t)

	require.NoError(t, p.Send(ctx, []byte("typed input")))
	require.NoError(t, p.SendEOF(ctx))
	require.Equal(t, [][]byte{[]byte("typed input")}, ch.recordedWrites())
	require.Equal(t, 1, ch.recordedEOFs())

	ch.exit(0)
}

func TestProcess_SendAfterExit(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch, WithInput(ReceiveInput()))
	ch.exit(0)
	<-p.Done()

	require.ErrorIs(t, p.Send(testContext(t), []byte("late")), ErrTerminated)
}

func TestProcess_Stop(t *testing.T) {
	ch := newFakeChannel()
	p := spawnFake(t, ch)

	res, err := p.Stop(testContext(t))
	require.NoError(t, err)
	require.True(t, res.Stopped)
	require.True(t, ch.wasKilled())

	// Stop after the fact returns the same finalized Result.
	again, err := p.Stop(testContext(t))
	require.NoError(t, err)
	require.Equal(t, res, again)
}
