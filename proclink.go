// Package proclink runs external OS programs and exchanges data with them.
//
// proclink supports two usage modes: a blocking call that waits for the
// program to finish ([Engine.Run], [Engine.RunShell]) and a spawn mode that
// returns a live [Process] handle for streaming interaction while the
// program runs ([Engine.Spawn], [Engine.SpawnShell]).
//
// # Core Types
//
//   - [Engine] — entry point; resolves the communication driver once
//   - [Source] — where a program's input comes from
//   - [Sink] — where a program's output and error streams go
//   - [Process] — a live handle to a spawned program
//   - [Result] — exit status plus finalized output values
//   - [OutStream] — a blocking chunk queue exposed as a lazy sequence
//
// # Drivers
//
// Sessions are carried by a [Driver], the abstraction over the OS process
// channel. Two implementations ship with the library:
//
//   - driver/mux — the full engine. It spawns a companion binary
//     (cmd/proclink-shim) that multiplexes the target's stdout and stderr
//     over one transport using length-prefixed frames, and supports
//     signaling end of input to the target.
//   - driver/pipe — a degraded fallback on plain OS pipes. It has no
//     protocol framing and cannot signal end of input: a program that
//     drains its stdin before producing output will stall on this driver.
//     This is a documented limitation of the fallback, not a bug.
//
// [New] selects the mux driver when the companion binary is found on PATH
// and falls back to the pipe driver otherwise.
//
// # Quick Start
//
//	engine := proclink.New()
//	res, err := engine.Run(ctx, "grep", []string{"hello"},
//	    proclink.WithInput(proclink.InputString("hello world\n")),
//	)
//	if err != nil { log.Fatal(err) }
//	text, _ := res.Out.Text()
//	fmt.Println(res.Status, text)
//
// Streaming spawn:
//
//	proc, err := engine.Spawn(ctx, "cat", nil,
//	    proclink.WithInput(proclink.ReceiveInput()),
//	    proclink.WithOutput(proclink.Stream()),
//	)
//	stream, _ := proc.Out().Stream()
//	go func() {
//	    proc.Send(ctx, []byte("Hello"))
//	    proc.SendEOF(ctx)
//	}()
//	for chunk := range stream.Chunks() {
//	    fmt.Printf("%s", chunk)
//	}
//	res, err := proc.Result(ctx)
package proclink

import "github.com/dmora/proclink/driver"

// Driver is the abstraction over the OS process channel. See the driver
// package for the contract and the bundled implementations.
type Driver = driver.Driver

// Stream tags carried by [Chunk] values delivered to [SendTo] sinks.
const (
	TagOut = driver.TagOut
	TagErr = driver.TagErr
)
