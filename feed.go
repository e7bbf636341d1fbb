package proclink

import (
	"errors"
	"io"
	"os"

	"github.com/dmora/proclink/driver"
)

// feedBlockSize bounds memory per read when feeding file sources.
const feedBlockSize = 1 << 20 // 1 MiB

// feedInput drives a Source into the process channel, then signals end of
// input. A write that races a process which already exited is treated as
// normal input exhaustion, not an error. Drivers that cannot signal end
// of input report ErrEOFUnsupported, which the feeder swallows; their
// contract is documented on the driver.
func feedInput(ch driver.Channel, src Source) {
	switch s := src.(type) {
	case noInput:
		// Nothing to feed; close the input side promptly.
	case literalInput:
		if writeFeed(ch, s.data) != nil {
			return
		}
	case fileInput:
		if copyFeed(ch, s.f) != nil {
			return
		}
	case pathInput:
		f, err := os.Open(s.path)
		if err != nil {
			break
		}
		copyErr := copyFeed(ch, f)
		_ = f.Close()
		if copyErr != nil {
			return
		}
	case chunkInput:
		for chunk := range s.chunks {
			if writeFeed(ch, chunk) != nil {
				return
			}
		}
	case receiveInput:
		// Interactive: the caller feeds input via Process.Send and ends
		// it via Process.SendEOF.
		return
	}
	_ = ch.SignalEOF()
}

// writeFeed writes one chunk, folding the write-after-exit race into a
// terminal condition.
func writeFeed(ch driver.Channel, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return ch.Write(data)
}

// copyFeed pumps r into the channel in fixed-size blocks until EOF or a
// read error.
func copyFeed(ch driver.Channel, r io.Reader) error {
	buf := make([]byte, feedBlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := ch.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Read errors end the feed; end of input is still signaled.
			return nil
		}
	}
}
