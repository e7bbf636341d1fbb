package proclink

import "errors"

// Result is the terminal value of one session. It is created exactly once,
// at finalization; no partial Result is ever delivered.
type Result struct {
	// Status is the process-reported exit status: 0 on success, nonzero
	// for a reported failure. Meaningless when Stopped is true.
	Status int

	// Stopped reports that the session ended without an exit status —
	// terminated via Stop, or the channel failed before the process
	// reported one.
	Stopped bool

	// Out is the finalized stdout sink value.
	Out Output

	// Err is the finalized stderr sink value.
	Err Output
}

// Success reports a clean exit: a reported status of zero.
func (r Result) Success() bool { return !r.Stopped && r.Status == 0 }

// finalize converts accumulated sink state into the externally visible
// Result, applying the flatten rule to each side independently.
func finalize(status int, stopped bool, outState, errState *sinkState) (Result, error) {
	out, outErr := outState.flatten()
	errOut, errErr := errState.flatten()
	return Result{
		Status:  status,
		Stopped: stopped,
		Out:     out,
		Err:     errOut,
	}, errors.Join(outErr, errErr)
}
