//go:build !windows

// Command proclink-shim is the companion binary spawned by the mux driver.
// It sits between the engine and the target program, multiplexing the
// target's stdout and stderr onto its own stdout as tagged frames and
// demultiplexing framed input from its own stdin into the target's stdin.
//
// Invocation:
//
//	proclink-shim -proto 0.0 [-in] [-out nil] [-err nil|out] [-dir path] -- cmd args...
//
// Every frame is a 2-byte big-endian length prefix followed by the payload.
// Output frames carry a leading channel tag byte ('o' for stdout, 'e' for
// stderr). Input frames are raw data; a zero-length frame closes the
// target's stdin. The shim exits with the target's exit code, or 128 plus
// the signal number when the target was killed by a signal.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/dmora/proclink/driver"
	"github.com/dmora/proclink/driver/mux"
)

func main() {
	proto := flag.String("proto", "", "protocol version negotiated by the engine")
	flag.Bool("in", false, "engine will feed framed input")
	outMode := flag.String("out", "", "stdout disposition: empty or nil")
	errMode := flag.String("err", "", "stderr disposition: empty, nil, or out")
	dir := flag.String("dir", "", "working directory for the target")
	flag.Parse()

	if *proto != mux.ProtoVersion {
		fmt.Fprintf(os.Stderr, "proclink-shim: unsupported protocol %q (want %s)\n", *proto, mux.ProtoVersion)
		os.Exit(2)
	}
	argv := flag.Args()
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "proclink-shim: no target command after --")
		os.Exit(2)
	}

	child := exec.Command(argv[0], argv[1:]...)
	child.Dir = *dir

	// The target's stdin is always a pipe so that a zero-length input
	// frame can close it regardless of whether input was announced.
	stdin, err := child.StdinPipe()
	if err != nil {
		fatal(err)
	}

	var stdout, stderr io.ReadCloser
	if *outMode != "nil" {
		if stdout, err = child.StdoutPipe(); err != nil {
			fatal(err)
		}
	}
	switch *errMode {
	case "nil":
	case "out":
		// Merged stderr shares the target's stdout descriptor, so the
		// interleaving is the target's own.
		child.Stderr = child.Stdout
	default:
		if stderr, err = child.StderrPipe(); err != nil {
			fatal(err)
		}
	}

	if err := child.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "proclink-shim: %v\n", err)
		os.Exit(127)
	}

	go feedStdin(stdin)

	var outMu sync.Mutex
	var wg sync.WaitGroup
	if stdout != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay(&outMu, driver.TagOut, stdout)
		}()
	}
	if stderr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay(&outMu, driver.TagErr, stderr)
		}()
	}
	wg.Wait()

	os.Exit(waitStatus(child))
}

// feedStdin deframes the engine's input stream into the target's stdin.
// A zero-length frame, or the engine going away, closes the target's
// stdin. Write errors are swallowed so a target that stopped reading does
// not wedge the input stream.
func feedStdin(stdin io.WriteCloser) {
	defer stdin.Close()
	r := bufio.NewReader(os.Stdin)
	for {
		payload, err := mux.ReadFrame(r)
		if err != nil {
			return
		}
		if len(payload) == 0 {
			return
		}
		if _, err := stdin.Write(payload); err != nil {
			// Keep draining frames so the engine's writes still land.
			io.Copy(io.Discard, r)
			return
		}
	}
}

// relay frames one of the target's output streams onto stdout. Reads are
// capped so the tag byte plus data always fit a single frame.
func relay(mu *sync.Mutex, tag driver.Tag, r io.Reader) {
	buf := make([]byte, mux.MaxFrame-1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			frame := make([]byte, 1+n)
			frame[0] = byte(tag)
			copy(frame[1:], buf[:n])
			mu.Lock()
			werr := mux.WriteFrame(os.Stdout, frame)
			mu.Unlock()
			if werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// waitStatus reaps the target and maps its termination to an exit code,
// using the shell convention of 128+signal for signal deaths.
func waitStatus(child *exec.Cmd) int {
	err := child.Wait()
	if err == nil {
		return 0
	}
	ee, ok := err.(*exec.ExitError)
	if !ok {
		fmt.Fprintf(os.Stderr, "proclink-shim: %v\n", err)
		return 1
	}
	if code := ee.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "proclink-shim: %v\n", err)
	os.Exit(2)
}
