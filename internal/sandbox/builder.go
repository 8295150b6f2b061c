// Package sandbox builds isolated goja runtimes for untrusted author
// scripts and moves data across their boundary by value only.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/jsutil"
)

// queued is one unit of source to load: a named bundle or an injected snippet.
type queued struct {
	dependency string
	source     string
}

type capability struct {
	name string
	fn   jsutil.StringFunc
}

// Builder configures one sandbox. Sources load in the order they were
// queued, so later snippets may use globals defined by earlier ones.
// A Builder is cheap; create one per request.
type Builder struct {
	reg   *bundle.Registry
	s     settings
	queue []queued
	caps  []capability

	// allocated runs once a runtime exists; engines count builds with it.
	allocated func()
}

// NewBuilder creates a Builder over a frozen Registry.
func NewBuilder(reg *bundle.Registry, opts ...Option) *Builder {
	return &Builder{reg: reg, s: newSettings(opts)}
}

// WithDependency queues named bundles from the Registry.
func (b *Builder) WithDependency(names ...string) *Builder {
	for _, name := range names {
		b.queue = append(b.queue, queued{dependency: name})
	}
	return b
}

// WithInjectedSource queues raw source snippets.
func (b *Builder) WithInjectedSource(sources ...string) *Builder {
	for _, src := range sources {
		b.queue = append(b.queue, queued{source: src})
	}
	return b
}

// WithCapability exposes a host function as a global. Only pure
// string-to-string functions qualify, so no host reference can leak in.
func (b *Builder) WithCapability(name string, fn jsutil.StringFunc) *Builder {
	b.caps = append(b.caps, capability{name: name, fn: fn})
	return b
}

// Timeout is the budget BuildSync and RunSync apply.
func (b *Builder) Timeout() time.Duration {
	return b.s.timeout
}

// resolve turns the queue into compiled sources. Nothing is allocated
// until every dependency resolves and every snippet compiles.
func (b *Builder) resolve() ([]bundle.Source, error) {
	var out []bundle.Source
	injected := 0
	for _, q := range b.queue {
		if q.dependency != "" {
			srcs, err := b.reg.Resolve(q.dependency)
			if err != nil {
				return nil, err
			}
			out = append(out, srcs...)
			continue
		}
		injected++
		name := fmt.Sprintf("injected#%d", injected)
		reg, err := bundle.NewBuilder().Register(name, q.source).Build()
		if err != nil {
			return nil, err
		}
		srcs, _ := reg.Resolve(name)
		out = append(out, srcs...)
	}
	return out, nil
}

// Build allocates a fresh runtime, loads every queued source and returns
// the sandbox. ctx bounds the whole construction.
func (b *Builder) Build(ctx context.Context) (*Context, error) {
	start := time.Now()
	sources, err := b.resolve()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(err, &b.s)
	}

	vm := goja.New()
	if b.allocated != nil {
		b.allocated()
	}
	vm.SetMaxCallStackSize(b.s.maxCallStack)
	parse, stringify, err := prepare(vm)
	if err != nil {
		return nil, err
	}
	for _, c := range b.caps {
		if err := vm.Set(c.name, jsutil.WrapStringFunc(vm, c.fn)); err != nil {
			return nil, fserr.Wrap(fserr.ErrInternal, err, "failed to install capability").With("capability", c.name)
		}
	}

	sbx := &Context{vm: vm, parse: parse, stringify: stringify, s: b.s}

	stop := watch(ctx, vm, b.s.memoryLimit)
	for _, src := range sources {
		if _, err := vm.RunProgram(src.Program()); err != nil {
			stop()
			sbx.Close()
			fe := wrapJSError(err, src.Text, &b.s)
			if fe.GetCode() == fserr.ErrScriptEvaluation {
				fe = fserr.Wrap(fserr.ErrDependencyInvalid, err, "dependency failed to load").With("source", src.Name)
			}
			return nil, fe
		}
	}
	stop()
	vm.ClearInterrupt()

	if err := freeze(vm); err != nil {
		sbx.Close()
		return nil, err
	}

	b.s.observer.SandboxBuilt(time.Since(start))
	return sbx, nil
}

// BuildSync builds under the Builder's own timeout.
func (b *Builder) BuildSync() (*Context, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.s.timeout)
	defer cancel()
	return b.Build(ctx)
}

func contextError(err error, s *settings) *fserr.Error {
	if err == context.DeadlineExceeded {
		return fserr.New(fserr.ErrTimeout, "evaluation exceeded its time budget").With("timeout", s.timeout.String())
	}
	return fserr.Wrap(fserr.ErrCanceled, err, "evaluation was canceled")
}
