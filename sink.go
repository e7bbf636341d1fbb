package proclink

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dmora/proclink/driver"
)

// Sink describes where a program's output or error stream goes. It is a
// closed set of variants; construct values with [Discard], [Capture],
// [CaptureBytes], [ToFile], [ToPath], [AppendPath], [Stream], [SendTo]
// or [ToOut].
type Sink interface {
	sink()
}

type discardSink struct{}

type bufferSink struct {
	raw bool
}

type fileSink struct {
	f *os.File
}

type pathSink struct {
	path     string
	appendTo bool
}

type streamSink struct{}

type mailboxSink struct {
	ch chan<- Chunk
}

type toOutSink struct{}

func (discardSink) sink() {}
func (bufferSink) sink()  {}
func (fileSink) sink()    {}
func (pathSink) sink()    {}
func (streamSink) sink()  {}
func (mailboxSink) sink() {}
func (toOutSink) sink()   {}

// Chunk is one unit of process output delivered to a [SendTo] sink.
type Chunk struct {
	// Tag identifies the stream the chunk came from.
	Tag driver.Tag

	// Data is the chunk payload.
	Data []byte
}

// Discard drops the stream.
func Discard() Sink { return discardSink{} }

// Capture accumulates chunks in arrival order; the finalized value is the
// concatenation decoded as text.
func Capture() Sink { return bufferSink{} }

// CaptureBytes accumulates chunks in arrival order; the finalized value is
// the concatenated raw bytes.
func CaptureBytes() Sink { return bufferSink{raw: true} }

// ToFile writes chunks to an open file. The caller retains ownership of
// the handle; finalization returns it without closing.
func ToFile(f *os.File) Sink { return fileSink{f: f} }

// ToPath writes chunks to the file at path, truncating any existing
// content. The file is opened lazily on the first chunk and never created
// if no chunk arrives.
func ToPath(path string) Sink { return pathSink{path: path} }

// AppendPath is ToPath in append mode.
func AppendPath(path string) Sink { return pathSink{path: path, appendTo: true} }

// Stream delivers chunks through an [OutStream] the consumer pulls lazily.
func Stream() Sink { return streamSink{} }

// SendTo delivers each chunk to the given channel as it arrives. The
// session worker blocks on the send, so the destination should be buffered
// or actively drained.
func SendTo(ch chan<- Chunk) Sink { return mailboxSink{ch: ch} }

// ToOut merges the error stream into the output sink. Valid only as the
// stderr sink of an invocation; configuring it as the stdout sink fails
// with [ErrOutputToOut] before the session starts.
func ToOut() Sink { return toOutSink{} }

// sinkState holds one sink's per-session accumulation. The accumulation is
// append-only; it is converted to a terminal value exactly once, by
// flatten, which memoizes its result so repeat calls have no further side
// effects.
type sinkState struct {
	spec Sink
	tag  driver.Tag

	buf    bytes.Buffer
	file   *os.File // lazily opened for pathSink, borrowed for fileSink
	opened bool     // pathSink: file was created
	bridge *OutStream

	flattened bool
	final     Output
	finalErr  error
}

func newSinkState(spec Sink, tag driver.Tag) *sinkState {
	st := &sinkState{spec: spec, tag: tag}
	if _, ok := spec.(streamSink); ok {
		st.bridge = newOutStream()
	}
	if f, ok := spec.(fileSink); ok {
		st.file = f.f
	}
	return st
}

// writeChunk routes one chunk of process output into the sink. Exhaustive
// over the Sink variants.
func (st *sinkState) writeChunk(data []byte) error {
	switch s := st.spec.(type) {
	case discardSink:
		return nil
	case bufferSink:
		st.buf.Write(data)
		return nil
	case fileSink:
		_, err := st.file.Write(data)
		return err
	case pathSink:
		if !st.opened {
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if s.appendTo {
				flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			f, err := os.OpenFile(s.path, flags, 0o644)
			if err != nil {
				return fmt.Errorf("proclink: open sink %s: %w", s.path, err)
			}
			st.file = f
			st.opened = true
		}
		_, err := st.file.Write(data)
		return err
	case streamSink:
		st.bridge.push(data)
		return nil
	case mailboxSink:
		s.ch <- Chunk{Tag: st.tag, Data: data}
		return nil
	case toOutSink:
		// The worker routes merged stderr through the out state; this
		// state never receives chunks.
		return nil
	}
	return fmt.Errorf("proclink: unhandled sink variant %T", st.spec)
}

// flatten converts the accumulated state into its terminal value.
// Idempotent: the first call closes lazily opened files and signals stream
// finish; repeat calls return the memoized value.
func (st *sinkState) flatten() (Output, error) {
	if st.flattened {
		return st.final, st.finalErr
	}
	st.flattened = true

	switch s := st.spec.(type) {
	case discardSink, mailboxSink, toOutSink:
		st.final = Output{}
	case bufferSink:
		if s.raw {
			st.final = Output{kind: outputBytes, data: st.buf.Bytes()}
		} else {
			st.final = Output{kind: outputText, text: st.buf.String()}
		}
	case fileSink:
		st.final = Output{kind: outputFile, file: st.file}
	case pathSink:
		if st.opened {
			st.finalErr = st.file.Close()
		}
		st.final = Output{kind: outputPath, path: s.path}
	case streamSink:
		st.bridge.finish()
		st.final = Output{kind: outputStream, stream: st.bridge}
	default:
		st.finalErr = fmt.Errorf("proclink: unhandled sink variant %T", st.spec)
	}
	return st.final, st.finalErr
}
