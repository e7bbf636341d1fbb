package proclink

import (
	"context"
	"errors"

	"github.com/dmora/proclink/driver"
)

// inputReq is an externally injected input chunk (or end-of-input signal)
// from Process.Send / Process.SendEOF.
type inputReq struct {
	data  []byte
	eof   bool
	reply chan error
}

// worker drives one session to completion. It exclusively owns the
// process channel; its event loop is single-threaded and blocks only on
// the next of {channel event, injected input, stop request}. The one
// exception is asynchronous input mode, where a feeder goroutine writes
// to the channel concurrently; the driver serializes those writes.
//
// The worker is a future for its Result: finalization stores the Result
// and closes done, after which res and err are immutable. There is no
// built-in timeout; callers needing bounded waits issue an explicit stop.
type worker struct {
	ch       driver.Channel
	src      Source
	outState *sinkState
	errState *sinkState
	mergeErr bool
	async    bool

	mode     deliveryMode
	resultCh chan<- Result

	input chan inputReq
	stop  chan chan struct{}
	done  chan struct{}

	// Set by finish before done closes; read-only afterwards.
	res Result
	err error
}

func newWorker(ch driver.Channel, opts Options) *worker {
	_, mergeErr := opts.Err.(toOutSink)
	return &worker{
		ch:       ch,
		src:      opts.In,
		outState: newSinkState(opts.Out, driver.TagOut),
		errState: newSinkState(opts.Err, driver.TagErr),
		mergeErr: mergeErr,
		async:    opts.AsyncInput,
		mode:     opts.mode,
		resultCh: opts.resultCh,
		input:    make(chan inputReq),
		stop:     make(chan chan struct{}),
		done:     make(chan struct{}),
	}
}

// run feeds input and executes the event loop until finalization.
// It is the session's single goroutine; in asynchronous input mode the
// feeder runs as a second goroutine alongside it.
func (w *worker) run() {
	if wantsFeeder(w.src) {
		if w.async {
			go feedInput(w.ch, w.src)
		} else {
			// Synchronous mode sends all input before any output is
			// read. Programs that interleave reads and writes can
			// deadlock here; callers opt into AsyncInput for those.
			feedInput(w.ch, w.src)
		}
	}
	w.loop()
}

func (w *worker) loop() {
	for {
		select {
		case ev, ok := <-w.ch.Events():
			if !ok {
				// Channel failed without a terminal event: exit with
				// no status.
				w.finish(0, true, nil)
				return
			}
			switch ev.Kind {
			case driver.EventData:
				st := w.outState
				if ev.Tag == driver.TagErr && !w.mergeErr {
					st = w.errState
				}
				if err := st.writeChunk(ev.Data); err != nil {
					_ = w.ch.Kill()
					w.finish(0, true, err)
					return
				}
			case driver.EventExit:
				if ev.Status < 0 {
					w.finish(0, true, nil)
				} else {
					w.finish(ev.Status, false, nil)
				}
				return
			case driver.EventError:
				_ = w.ch.Kill()
				w.finish(0, true, ev.Err)
				return
			}

		case req := <-w.input:
			if req.eof {
				req.reply <- w.ch.SignalEOF()
			} else {
				req.reply <- w.ch.Write(req.data)
			}

		case ack := <-w.stop:
			_ = w.ch.Kill()
			w.finish(0, true, nil)
			close(ack)
			return
		}
	}
}

// finish finalizes the session exactly once: flattens the sinks into the
// Result, stores it, closes done, and delivers per the configured mode.
func (w *worker) finish(status int, stopped bool, cause error) {
	res, err := finalize(status, stopped, w.outState, w.errState)
	if cause != nil {
		err = errors.Join(cause, err)
	}

	if w.mode == deliverDiscard {
		res = Result{}
	}
	w.res = res
	w.err = err
	close(w.done)

	// Mailbox delivery happens after done closes so a stuck destination
	// never wedges Stop or Result callers.
	if w.mode == deliverSend {
		w.resultCh <- res
	}
}

// requestStop closes the channel and finalizes with absent status. Safe
// to call at any time; if the session already finalized it is a no-op.
// Returns once finalization is complete.
func (w *worker) requestStop() {
	ack := make(chan struct{})
	select {
	case w.stop <- ack:
		// done closes before mailbox delivery, so a stuck destination
		// must not hold the stop caller hostage either.
		select {
		case <-ack:
		case <-w.done:
		}
	case <-w.done:
	}
}

// inject writes an input chunk (or end-of-input) through the worker so
// the write is serialized with the event loop.
func (w *worker) inject(ctx context.Context, data []byte, eof bool) error {
	// reply is buffered so the worker never blocks on it if the caller
	// abandons the wait.
	req := inputReq{data: data, eof: eof, reply: make(chan error, 1)}
	select {
	case w.input <- req:
		select {
		case err := <-req.reply:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-w.done:
		return ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// result blocks until finalization.
func (w *worker) result(ctx context.Context) (Result, error) {
	select {
	case <-w.done:
		if w.mode == deliverDiscard {
			return Result{}, ErrResultDiscarded
		}
		return w.res, w.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
