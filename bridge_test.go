package proclink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOutStream_DrainAfterFinish(t *testing.T) {
	s := newOutStream()
	s.push([]byte("one"))
	s.push([]byte("two"))
	s.finish()

	chunk, ok := s.Next()
	require.True(t, ok)
	require.Equal(t, "one", string(chunk))

	chunk, ok = s.Next()
	require.True(t, ok)
	require.Equal(t, "two", string(chunk))

	_, ok = s.Next()
	require.False(t, ok)
}

func TestOutStream_NextBlocksForPush(t *testing.T) {
	s := newOutStream()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.push([]byte("late"))
		s.finish()
	}()

	chunk, ok := s.Next()
	require.True(t, ok)
	require.Equal(t, "late", string(chunk))

	_, ok = s.Next()
	require.False(t, ok)
}

func TestOutStream_FinishIdempotent(t *testing.T) {
	s := newOutStream()
	s.push([]byte("x"))
	s.finish()
	s.finish()

	_, ok := s.Next()
	require.True(t, ok)
	_, ok = s.Next()
	require.False(t, ok)
	// Exhausted streams stay exhausted.
	_, ok = s.Next()
	require.False(t, ok)
}

func TestOutStream_ChunksIterator(t *testing.T) {
	s := newOutStream()
	s.push([]byte("a"))
	s.push([]byte("b"))
	s.push([]byte("c"))
	s.finish()

	var got []string
	for chunk := range s.Chunks() {
		got = append(got, string(chunk))
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestOutStream_ChunksEarlyBreak(t *testing.T) {
	s := newOutStream()
	s.push([]byte("a"))
	s.push([]byte("b"))
	s.finish()

	for range s.Chunks() {
		break
	}
	// The iterator consumed one chunk; the rest remain pullable.
	chunk, ok := s.Next()
	require.True(t, ok)
	require.Equal(t, "b", string(chunk))
}

// Chunks must come out exactly as pushed: same count, same order, same
// bytes, regardless of whether the consumer runs behind or ahead of the
// producer.
func TestOutStream_OrderPreserved(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(rt, "chunks")
		pushed := make([]string, n)
		for i := range pushed {
			pushed[i] = rapid.StringMatching(`[a-z]{0,12}`).Draw(rt, "chunk")
		}
		concurrent := rapid.Bool().Draw(rt, "concurrent")

		s := newOutStream()
		produce := func() {
			for _, chunk := range pushed {
				s.push([]byte(chunk))
			}
			s.finish()
		}

		if concurrent {
			go produce()
		} else {
			produce()
		}

		var got []string
		for {
			chunk, ok := s.Next()
			if !ok {
				break
			}
			got = append(got, string(chunk))
		}
		if len(got) != len(pushed) {
			rt.Fatalf("got %d chunks, pushed %d", len(got), len(pushed))
		}
		for i := range got {
			if got[i] != pushed[i] {
				rt.Fatalf("chunk %d: got %q, pushed %q", i, got[i], pushed[i])
			}
		}
	})
}
