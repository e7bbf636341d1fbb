package proclink

import "os"

type outputKind int

const (
	outputNone outputKind = iota
	outputText
	outputBytes
	outputPath
	outputFile
	outputStream
)

// Output is the finalized value of an output sink, produced exactly once
// per session when the result is finalized. Its dynamic shape follows the
// sink that produced it:
//
//   - Capture        → Text
//   - CaptureBytes   → Bytes
//   - ToPath         → Path (the file, if one was created, is closed)
//   - ToFile         → File (the caller's handle, left open)
//   - Stream         → Stream (the still-lazy chunk sequence)
//   - Discard, SendTo, ToOut → none
type Output struct {
	kind   outputKind
	text   string
	data   []byte
	path   string
	file   *os.File
	stream *OutStream
}

// Text returns the accumulated output decoded as text, for Capture sinks.
func (o Output) Text() (string, bool) {
	return o.text, o.kind == outputText
}

// Bytes returns the accumulated raw output, for CaptureBytes sinks.
func (o Output) Bytes() ([]byte, bool) {
	return o.data, o.kind == outputBytes
}

// Path returns the destination path, for ToPath sinks.
func (o Output) Path() (string, bool) {
	return o.path, o.kind == outputPath
}

// File returns the destination handle, for ToFile sinks.
func (o Output) File() (*os.File, bool) {
	return o.file, o.kind == outputFile
}

// Stream returns the lazy chunk sequence, for Stream sinks.
func (o Output) Stream() (*OutStream, bool) {
	return o.stream, o.kind == outputStream
}

// IsNone reports whether the sink produced no terminal value
// (Discard, SendTo and merged-stderr sinks).
func (o Output) IsNone() bool { return o.kind == outputNone }
