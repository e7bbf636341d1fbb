package proclink

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/dmora/proclink/driver"
	"github.com/dmora/proclink/driver/mux"
	"github.com/dmora/proclink/driver/pipe"
	"github.com/dmora/proclink/internal/lookup"
)

// ShimBinary is the name of the mux driver's companion binary, resolved
// against PATH when no explicit path or driver is configured.
const ShimBinary = "proclink-shim"

// Engine runs external programs. It holds the communication driver,
// selected once at construction: the mux driver when the companion binary
// is found, the degraded pipe driver otherwise.
//
// An Engine is safe for concurrent use; each invocation gets its own
// session and worker.
type Engine struct {
	driver driver.Driver
	paths  *lookup.Cache
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*engineConfig)

type engineConfig struct {
	driver    driver.Driver
	shimPath  string
	lookupTTL time.Duration
}

// WithDriver overrides driver selection entirely.
func WithDriver(d driver.Driver) EngineOption {
	return func(c *engineConfig) {
		c.driver = d
	}
}

// WithShimPath uses the companion binary at path instead of resolving
// ShimBinary against PATH.
func WithShimPath(path string) EngineOption {
	return func(c *engineConfig) {
		c.shimPath = path
	}
}

// WithLookupTTL bounds how long resolved executable paths are cached.
func WithLookupTTL(ttl time.Duration) EngineOption {
	return func(c *engineConfig) {
		if ttl > 0 {
			c.lookupTTL = ttl
		}
	}
}

// New creates an Engine. The companion binary lookup happens here, once;
// sessions never re-resolve it.
func New(opts ...EngineOption) *Engine {
	var cfg engineConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	e := &Engine{paths: lookup.New(cfg.lookupTTL)}
	switch {
	case cfg.driver != nil:
		e.driver = cfg.driver
	case cfg.shimPath != "":
		e.driver = mux.New(cfg.shimPath)
	default:
		if shim, err := exec.LookPath(ShimBinary); err == nil {
			e.driver = mux.New(shim)
		} else {
			e.driver = pipe.New()
		}
	}
	return e
}

// Driver exposes the selected driver, chiefly so callers can tell whether
// the engine is running in degraded pipe mode.
func (e *Engine) Driver() driver.Driver { return e.driver }

// Validate checks that the engine's prerequisites are met. For a mux
// engine this verifies the companion binary is still executable.
func (e *Engine) Validate() error {
	if m, ok := e.driver.(*mux.Driver); ok {
		if _, err := exec.LookPath(m.ShimPath()); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCommandNotFound, m.ShimPath(), err)
		}
	}
	return nil
}

// Run executes a program directly (resolved against PATH) and blocks
// until it completes, returning the finalized Result. Cancelling ctx
// stops the session and returns ctx's error alongside the stop Result.
func (e *Engine) Run(ctx context.Context, program string, args []string, opts ...Option) (Result, error) {
	w, _, err := e.start(ctx, program, args, "", resolveOptions(deliverSync, opts...))
	if err != nil {
		return Result{}, err
	}
	return e.await(ctx, w)
}

// RunShell executes a command line through the system shell and blocks
// until it completes.
func (e *Engine) RunShell(ctx context.Context, command string, opts ...Option) (Result, error) {
	w, _, err := e.start(ctx, "", nil, command, resolveOptions(deliverSync, opts...))
	if err != nil {
		return Result{}, err
	}
	return e.await(ctx, w)
}

// Spawn starts a program directly and returns a live Process handle.
// The Result is retained for Process.Result unless a delivery option
// says otherwise.
func (e *Engine) Spawn(ctx context.Context, program string, args []string, opts ...Option) (*Process, error) {
	w, id, err := e.start(ctx, program, args, "", resolveOptions(deliverKeep, opts...))
	if err != nil {
		return nil, err
	}
	return newProcess(id, w), nil
}

// SpawnShell starts a shell command line and returns a live Process handle.
func (e *Engine) SpawnShell(ctx context.Context, command string, opts ...Option) (*Process, error) {
	w, id, err := e.start(ctx, "", nil, command, resolveOptions(deliverKeep, opts...))
	if err != nil {
		return nil, err
	}
	return newProcess(id, w), nil
}

// start validates the invocation, opens the channel and launches the
// session worker. All pre-session failures (CommandNotFound, bad env)
// surface here, before any process exists.
func (e *Engine) start(ctx context.Context, program string, args []string, shell string, opts Options) (*worker, string, error) {
	if err := validateEnv(opts.Env); err != nil {
		return nil, "", err
	}
	if _, ok := opts.Out.(toOutSink); ok {
		return nil, "", ErrOutputToOut
	}

	cmd := driver.Command{
		Args:      args,
		Shell:     shell,
		Dir:       opts.Dir,
		Env:       opts.Env,
		WantInput: wantsInput(opts.In),
		FeedInput: feedsData(opts.In),
	}
	if _, ok := opts.Out.(discardSink); ok {
		cmd.DiscardOut = true
	}
	if _, ok := opts.Err.(discardSink); ok {
		cmd.DiscardErr = true
	}
	if _, ok := opts.Err.(toOutSink); ok {
		cmd.MergeErr = true
	}

	if shell == "" {
		resolved, err := e.paths.Resolve(program)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s: %w", ErrCommandNotFound, program, err)
		}
		cmd.Program = resolved
	}

	ch, err := e.driver.Open(ctx, cmd)
	if err != nil {
		return nil, "", fmt.Errorf("proclink: open channel: %w", err)
	}

	w := newWorker(ch, opts)
	go w.run()
	return w, uuid.New().String(), nil
}

// await implements the blocking delivery mode on top of the worker
// future. A canceled context issues the explicit stop the concurrency
// model requires.
func (e *Engine) await(ctx context.Context, w *worker) (Result, error) {
	select {
	case <-w.done:
		return w.res, w.err
	case <-ctx.Done():
		w.requestStop()
		<-w.done
		if w.err != nil {
			return w.res, w.err
		}
		return w.res, ctx.Err()
	}
}
