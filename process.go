package proclink

import "context"

// Process is a live handle to a spawned program. Its lifetime ends when
// the session worker terminates, after natural finalization or a stop.
type Process struct {
	id     string
	w      *worker
	out    Output
	errOut Output
}

func newProcess(id string, w *worker) *Process {
	p := &Process{id: id, w: w}
	// Stream sinks resolve immediately: the lazy sequence is usable
	// while the program runs. Other sink values arrive with the Result.
	if w.outState.bridge != nil {
		p.out = Output{kind: outputStream, stream: w.outState.bridge}
	}
	if w.errState.bridge != nil {
		p.errOut = Output{kind: outputStream, stream: w.errState.bridge}
	}
	return p
}

// ID returns the session's unique identifier.
func (p *Process) ID() string { return p.id }

// Out returns the resolved stdout value. For Stream sinks this is the
// lazy chunk sequence, available immediately; for accumulating sinks the
// value is only produced at finalization and arrives in the Result.
func (p *Process) Out() Output { return p.out }

// ErrOut returns the resolved stderr value, with the same semantics as Out.
func (p *Process) ErrOut() Output { return p.errOut }

// Send writes an input chunk directly to the process channel. Intended
// for sessions configured with ReceiveInput. Returns ErrTerminated if the
// session has ended, ErrChannelClosed if the write raced process exit.
func (p *Process) Send(ctx context.Context, data []byte) error {
	return p.w.inject(ctx, data, false)
}

// SendEOF signals that no more input will be sent. Returns
// ErrEOFUnsupported on drivers that cannot express end of input.
func (p *Process) SendEOF(ctx context.Context) error {
	return p.w.inject(ctx, nil, true)
}

// Stop closes the process channel immediately and finalizes the session
// with absent exit status. Safe to call at any time, including after the
// session has ended; it always returns the session's one Result.
func (p *Process) Stop(ctx context.Context) (Result, error) {
	p.w.requestStop()
	return p.w.result(ctx)
}

// Result blocks until the session finalizes and returns its Result.
// Under the default keep mode the value is retained indefinitely, so
// Result may be called any number of times and from any goroutine.
// Sessions configured with WithResultDiscard return ErrResultDiscarded.
func (p *Process) Result(ctx context.Context) (Result, error) {
	return p.w.result(ctx)
}

// Done returns a channel closed when the session has finalized.
func (p *Process) Done() <-chan struct{} { return p.w.done }

// Alive reports whether the session is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.w.done:
		return false
	default:
		return true
	}
}
