package proclink

import (
	"iter"
	"sync"
)

// OutStream is the consumer side of a [Stream] sink: a blocking
// single-producer/single-consumer chunk queue. The session worker pushes
// chunks in arrival order; the consumer pulls them lazily with [OutStream.Next]
// or ranges over [OutStream.Chunks].
//
// Once the producer finishes, Next drains any buffered chunks in order and
// then reports the end of the stream forever. No chunk is ever dropped or
// reordered.
type OutStream struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    [][]byte
	finished bool
}

func newOutStream() *OutStream {
	s := &OutStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push appends a chunk and wakes a blocked consumer. Producer side only.
func (s *OutStream) push(chunk []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, chunk)
	s.mu.Unlock()
	s.cond.Signal()
}

// finish marks that no more chunks will arrive. Idempotent. Buffered
// chunks remain pullable.
func (s *OutStream) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Next blocks until a chunk is available or the stream has finished.
// It returns (chunk, true) for each chunk in arrival order, then
// (nil, false) on every call after the stream is exhausted.
func (s *OutStream) Next() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.finished {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, false
	}
	chunk := s.queue[0]
	s.queue = s.queue[1:]
	return chunk, true
}

// Chunks returns the stream as a lazy sequence. Iteration blocks on the
// producer the same way Next does and ends when the stream is exhausted.
func (s *OutStream) Chunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			chunk, ok := s.Next()
			if !ok {
				return
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
