package proclink

import (
	"iter"
	"os"
)

// Source describes where a program's input comes from. It is a closed set
// of variants; construct values with [NoInput], [ReceiveInput], [Input],
// [InputString], [InputFile], [InputPath] or [InputChunks]. A Source is
// immutable once a session starts.
type Source interface {
	source()
}

type noInput struct{}

type receiveInput struct{}

type literalInput struct {
	data []byte
}

type fileInput struct {
	f *os.File
}

type pathInput struct {
	path string
}

type chunkInput struct {
	chunks iter.Seq[[]byte]
}

func (noInput) source()      {}
func (receiveInput) source() {}
func (literalInput) source() {}
func (fileInput) source()    {}
func (pathInput) source()    {}
func (chunkInput) source()   {}

// NoInput connects nothing to the program's input. On the enhanced driver
// end of input is signaled immediately.
func NoInput() Source { return noInput{} }

// ReceiveInput keeps the input open for interactive feeding via
// [Process.Send] and [Process.SendEOF]. No feeder runs for this source.
func ReceiveInput() Source { return receiveInput{} }

// Input feeds the given bytes, then signals end of input.
func Input(data []byte) Source { return literalInput{data: data} }

// InputString feeds the given string, then signals end of input.
func InputString(s string) Source { return literalInput{data: []byte(s)} }

// InputFile feeds the contents of an open file in fixed-size blocks,
// bounding memory regardless of file size. The caller retains ownership
// of the handle.
func InputFile(f *os.File) Source { return fileInput{f: f} }

// InputPath opens the file at path and feeds its contents in fixed-size
// blocks. The file is opened when the session starts and closed when the
// feeder finishes.
func InputPath(path string) Source { return pathInput{path: path} }

// InputChunks feeds each chunk produced by the sequence as one write, then
// signals end of input. The sequence is pulled lazily as writes complete.
func InputChunks(chunks iter.Seq[[]byte]) Source { return chunkInput{chunks: chunks} }

// feedsData reports whether the source carries data the input feeder must
// deliver before signaling end of input.
func feedsData(src Source) bool {
	switch src.(type) {
	case literalInput, fileInput, pathInput, chunkInput:
		return true
	}
	return false
}

// wantsFeeder reports whether a feeder runs for the source at all. Receive
// sources have no feeder; input arrives through Process.Send.
func wantsFeeder(src Source) bool {
	_, receive := src.(receiveInput)
	return !receive
}

// wantsInput reports whether the target's input side must be connected.
func wantsInput(src Source) bool {
	_, none := src.(noInput)
	return !none
}
