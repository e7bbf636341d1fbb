package proclink

import (
	"fmt"
	"sort"
)

// deliveryMode selects how a session's Result reaches the caller.
type deliveryMode int

const (
	// deliverSync hands the Result to the blocking Run caller.
	deliverSync deliveryMode = iota

	// deliverKeep retains the Result for retrieval via Process.Result.
	// Default for spawn mode.
	deliverKeep

	// deliverDiscard computes the Result and drops it.
	deliverDiscard

	// deliverSend pushes the Result to a caller-provided channel.
	deliverSend
)

// Options holds the resolved configuration of one invocation.
// Build it with Option functions or ParseOptionMap.
type Options struct {
	// In is the input source. Defaults to NoInput.
	In Source

	// Out is the stdout sink. Defaults to Capture.
	Out Sink

	// Err is the stderr sink. Defaults to Discard.
	Err Sink

	// AsyncInput runs the input feeder concurrently with the output loop,
	// required for full-duplex interaction. When false all input is fed
	// before any output is read, which can deadlock with programs that
	// interleave reads and writes.
	AsyncInput bool

	// Dir is the working directory for the program.
	Dir string

	// Env holds extra environment variables for the program.
	Env map[string]string

	mode     deliveryMode
	resultCh chan<- Result
}

// Option configures one invocation of Run or Spawn.
type Option func(*Options)

func resolveOptions(mode deliveryMode, opts ...Option) Options {
	o := Options{
		In:   NoInput(),
		Out:  Capture(),
		Err:  Discard(),
		mode: mode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithInput sets the input source.
func WithInput(src Source) Option {
	return func(o *Options) {
		if src != nil {
			o.In = src
		}
	}
}

// WithOutput sets the stdout sink.
func WithOutput(sink Sink) Option {
	return func(o *Options) {
		if sink != nil {
			o.Out = sink
		}
	}
}

// WithStderr sets the stderr sink. Use ToOut to merge stderr into the
// stdout sink.
func WithStderr(sink Sink) Option {
	return func(o *Options) {
		if sink != nil {
			o.Err = sink
		}
	}
}

// WithAsyncInput runs the input feeder concurrently with the output loop.
func WithAsyncInput() Option {
	return func(o *Options) {
		o.AsyncInput = true
	}
}

// WithDir sets the working directory for the program.
func WithDir(dir string) Option {
	return func(o *Options) {
		o.Dir = dir
	}
}

// WithEnv sets extra environment variables passed to the program.
// Entries override inherited variables of the same name.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithResultDiscard computes the session result and drops it.
// Spawn mode only; Run ignores it.
func WithResultDiscard() Option {
	return func(o *Options) {
		if o.mode != deliverSync {
			o.mode = deliverDiscard
		}
	}
}

// WithResultTo pushes the session result to ch when the session ends.
// The worker blocks on the send, so ch should be buffered or drained.
// Spawn mode only; Run ignores it.
func WithResultTo(ch chan<- Result) Option {
	return func(o *Options) {
		if o.mode != deliverSync && ch != nil {
			o.mode = deliverSend
			o.resultCh = ch
		}
	}
}

// Option-map keys accepted by ParseOptionMap.
const (
	optIn         = "in"
	optOut        = "out"
	optErr        = "err"
	optAsyncInput = "async_input"
	optDir        = "dir"
	optEnv        = "env"
	optResult     = "result"
)

// ParseOptionMap converts a loosely typed option map into Option values,
// for callers that assemble invocations from dynamic configuration.
// Unrecognized keys fail with *InvalidOptionsError; recognized keys with
// values of the wrong type fail with a descriptive error.
//
// Accepted values: "in" → Source; "out"/"err" → Sink; "async_input" →
// bool; "dir" → string; "env" → map[string]string; "result" → "keep",
// "discard" or a chan<- Result.
func ParseOptionMap(m map[string]any) ([]Option, error) {
	var unknown []string
	for key := range m {
		switch key {
		case optIn, optOut, optErr, optAsyncInput, optDir, optEnv, optResult:
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &InvalidOptionsError{Keys: unknown}
	}

	var opts []Option
	if v, ok := m[optIn]; ok {
		src, ok := v.(Source)
		if !ok {
			return nil, fmt.Errorf("proclink: option %s: %T is not a Source", optIn, v)
		}
		opts = append(opts, WithInput(src))
	}
	if v, ok := m[optOut]; ok {
		sink, ok := v.(Sink)
		if !ok {
			return nil, fmt.Errorf("proclink: option %s: %T is not a Sink", optOut, v)
		}
		opts = append(opts, WithOutput(sink))
	}
	if v, ok := m[optErr]; ok {
		sink, ok := v.(Sink)
		if !ok {
			return nil, fmt.Errorf("proclink: option %s: %T is not a Sink", optErr, v)
		}
		opts = append(opts, WithStderr(sink))
	}
	if v, ok := m[optAsyncInput]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("proclink: option %s: %T is not a bool", optAsyncInput, v)
		}
		if b {
			opts = append(opts, WithAsyncInput())
		}
	}
	if v, ok := m[optDir]; ok {
		dir, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("proclink: option %s: %T is not a string", optDir, v)
		}
		opts = append(opts, WithDir(dir))
	}
	if v, ok := m[optEnv]; ok {
		env, ok := v.(map[string]string)
		if !ok {
			return nil, fmt.Errorf("proclink: option %s: %T is not a map[string]string", optEnv, v)
		}
		opts = append(opts, WithEnv(env))
	}
	if v, ok := m[optResult]; ok {
		opt, err := parseResultOption(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func parseResultOption(v any) (Option, error) {
	switch rv := v.(type) {
	case string:
		switch rv {
		case "keep":
			return func(*Options) {}, nil // spawn default
		case "discard":
			return WithResultDiscard(), nil
		}
		return nil, fmt.Errorf("proclink: option %s: %q is not a recognized delivery mode", optResult, rv)
	case chan Result:
		return WithResultTo(rv), nil
	case chan<- Result:
		return WithResultTo(rv), nil
	}
	return nil, fmt.Errorf("proclink: option %s: %T is not a delivery mode", optResult, v)
}
