package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/jsutil"
)

// Request is one evaluation: load Deps then AdditionalDeps, copy Data in
// as globals, run Code and copy its completion value out.
type Request struct {
	Deps           []string
	AdditionalDeps []string
	Data           map[string]any
	Code           string
	// Timeout bounds building and running together. Zero uses the
	// engine default.
	Timeout      time.Duration
	Capabilities map[string]jsutil.StringFunc
}

// Stats counts engine activity since creation.
type Stats struct {
	Built     int64 // runtimes allocated
	Evaluated int64 // evaluations that returned a result
	Failed    int64 // evaluations that returned an error
	TimedOut  int64 // subset of Failed that ran out of time
}

// Engine is the only entry point through which data crosses into and out
// of a sandbox. It is safe for concurrent use; every call gets a fresh
// runtime and only compiled programs are shared.
type Engine struct {
	reg      *bundle.Registry
	opts     []Option
	s        settings
	programs *lru.Cache[string, *goja.Program]

	built     atomic.Int64
	evaluated atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64
}

// NewEngine creates an Engine over a frozen Registry.
func NewEngine(reg *bundle.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, fserr.New(fserr.ErrConfigInvalid, "engine needs a bundle registry")
	}
	s := newSettings(opts)
	cache, err := lru.New[string, *goja.Program](s.cacheSize)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "invalid program cache size")
	}
	return &Engine{reg: reg, opts: opts, s: s, programs: cache}, nil
}

// Registry returns the bundle registry the engine loads from.
func (e *Engine) Registry() *bundle.Registry {
	return e.reg
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.s.logger
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Built:     e.built.Load(),
		Evaluated: e.evaluated.Load(),
		Failed:    e.failed.Load(),
		TimedOut:  e.timedOut.Load(),
	}
}

// Evaluate runs req in a new sandbox that is discarded afterwards.
func (e *Engine) Evaluate(ctx context.Context, req Request) (result any, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(fserr.GetErrorCode(err))
			e.failed.Add(1)
			if fserr.Is(err, fserr.ErrTimeout) {
				e.timedOut.Add(1)
			}
		} else {
			e.evaluated.Add(1)
		}
		e.s.observer.EvaluationDone(outcome, time.Since(start))
	}()

	// Reject bad input before any sandbox work.
	names := make([]string, 0, len(req.Data))
	for name, v := range req.Data {
		if err := CheckTransferable(v); err != nil {
			return nil, err.(*fserr.Error).With("name", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	prog, err := e.compile(req.Code)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.s.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(append([]Option(nil), e.opts...), WithTimeout(timeout))
	b := NewBuilder(e.reg, opts...).
		WithDependency(req.Deps...).
		WithInjectedSource(req.AdditionalDeps...)
	capNames := make([]string, 0, len(req.Capabilities))
	for name := range req.Capabilities {
		capNames = append(capNames, name)
	}
	sort.Strings(capNames)
	for _, name := range capNames {
		b.WithCapability(name, req.Capabilities[name])
	}

	b.allocated = func() { e.built.Add(1) }
	sbx, err := b.Build(ctx)
	if err != nil {
		e.logFailure(err)
		return nil, err
	}
	defer sbx.Close()

	for _, name := range names {
		if err := sbx.Set(name, req.Data[name]); err != nil {
			return nil, err
		}
	}

	val, err := sbx.RunProgram(ctx, prog, req.Code)
	if err != nil {
		e.logFailure(err)
		return nil, err
	}
	out, err := sbx.ExportContext(ctx, val)
	if err != nil {
		e.logFailure(err)
		return nil, err
	}
	return out, nil
}

// EvaluateSync is Evaluate without a caller context; req.Timeout (or the
// engine default) still applies.
func (e *Engine) EvaluateSync(req Request) (any, error) {
	return e.Evaluate(context.Background(), req)
}

// compile returns the cached program for code, compiling it on a miss.
func (e *Engine) compile(code string) (*goja.Program, error) {
	sum := sha256.Sum256([]byte(code))
	key := hex.EncodeToString(sum[:])
	if prog, ok := e.programs.Get(key); ok {
		return prog, nil
	}
	prog, err := goja.Compile("script.js", code, false)
	if err != nil {
		return nil, wrapJSError(err, code, &e.s)
	}
	e.programs.Add(key, prog)
	return prog, nil
}

func (e *Engine) logFailure(err error) {
	switch fserr.GetErrorCode(err) {
	case fserr.ErrTimeout, fserr.ErrMemoryLimit:
		e.s.logger.Warn("sandbox aborted", "code", fserr.GetErrorCode(err), "error", err)
	case fserr.ErrDependencyNotFound, fserr.ErrDependencyInvalid:
		e.s.logger.Error("sandbox misconfigured", "code", fserr.GetErrorCode(err), "error", err)
	default:
		e.s.logger.Debug("sandbox evaluation failed", "code", fserr.GetErrorCode(err), "error", err)
	}
}
