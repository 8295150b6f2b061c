package sandbox

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/jsutil"
)

// Context is one built sandbox. It is single-use: any error closes it,
// and it is never handed to another request. Not safe for concurrent use.
type Context struct {
	vm        *goja.Runtime
	parse     goja.Callable
	stringify goja.Callable
	s         settings
}

// Closed reports whether the sandbox was torn down.
func (c *Context) Closed() bool {
	return c.vm == nil
}

// Close discards the runtime.
func (c *Context) Close() {
	c.vm = nil
	c.parse = nil
	c.stringify = nil
}

func (c *Context) closedError() error {
	return fserr.New(fserr.ErrSandboxClosed, "sandbox is closed")
}

// Set copies v into the sandbox as the global name. The copy goes through
// JSON, so nothing inside the sandbox aliases host memory.
func (c *Context) Set(name string, v any) error {
	if c.Closed() {
		return c.closedError()
	}
	if err := CheckTransferable(v); err != nil {
		return err.(*fserr.Error).With("name", name)
	}
	raw, err := sonic.MarshalString(v)
	if err != nil {
		return fserr.Wrap(fserr.ErrNotTransferable, err, "value cannot be encoded").With("name", name)
	}
	val, err := c.parse(goja.Undefined(), c.vm.ToValue(raw))
	if err != nil {
		c.Close()
		return fserr.Wrap(fserr.ErrInternal, err, "failed to decode value in sandbox").With("name", name)
	}
	if err := c.vm.Set(name, val); err != nil {
		c.Close()
		return fserr.Wrap(fserr.ErrInternal, err, "failed to set global").With("name", name)
	}
	return nil
}

// Run evaluates code and returns its completion value. ctx bounds it.
func (c *Context) Run(ctx context.Context, code string) (goja.Value, error) {
	if c.Closed() {
		return nil, c.closedError()
	}
	prog, err := goja.Compile("script.js", code, false)
	if err != nil {
		c.Close()
		return nil, wrapJSError(err, code, &c.s)
	}
	return c.RunProgram(ctx, prog, code)
}

// RunProgram evaluates a precompiled program. code is its source, used
// only to quote the failing line in errors.
func (c *Context) RunProgram(ctx context.Context, prog *goja.Program, code string) (goja.Value, error) {
	if c.Closed() {
		return nil, c.closedError()
	}
	if err := ctx.Err(); err != nil {
		c.Close()
		return nil, contextError(err, &c.s)
	}

	stop := watch(ctx, c.vm, c.s.memoryLimit)
	val, err := c.vm.RunProgram(prog)
	stop()
	if err != nil {
		c.Close()
		return nil, wrapJSError(err, code, &c.s)
	}
	c.vm.ClearInterrupt()
	return val, nil
}

// RunSync evaluates code under the sandbox's own timeout.
func (c *Context) RunSync(code string) (goja.Value, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.s.timeout)
	defer cancel()
	return c.Run(ctx, code)
}

// Export copies a sandbox value out as plain Go data: map[string]any,
// []any, float64, string, bool or nil. The sandbox's own timeout bounds it.
func (c *Context) Export(v goja.Value) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.s.timeout)
	defer cancel()
	return c.ExportContext(ctx, v)
}

// ExportContext is Export bounded by ctx. Serializing a value can run
// script (getters, toJSON), so it is watched like RunProgram.
func (c *Context) ExportContext(ctx context.Context, v goja.Value) (any, error) {
	if c.Closed() {
		return nil, c.closedError()
	}
	if jsutil.IsNullish(v) {
		return nil, nil
	}
	if jsutil.IsFunction(v) {
		return nil, fserr.New(fserr.ErrResultNotTransferable, "result is a function")
	}
	if err := ctx.Err(); err != nil {
		c.Close()
		return nil, contextError(err, &c.s)
	}

	stop := watch(ctx, c.vm, c.s.memoryLimit)
	out, err := c.stringify(goja.Undefined(), v)
	stop()
	if err != nil {
		c.Close()
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, wrapJSError(err, "", &c.s).With("stage", "export")
		}
		return nil, fserr.Wrap(fserr.ErrResultNotTransferable, err, "result cannot be copied out")
	}
	c.vm.ClearInterrupt()

	if jsutil.IsNullish(out) {
		return nil, nil
	}
	var result any
	if err := sonic.UnmarshalString(out.String(), &result); err != nil {
		return nil, fserr.Wrap(fserr.ErrResultNotTransferable, err, "result cannot be decoded")
	}
	return result, nil
}

// Global copies a global variable out of the sandbox.
func (c *Context) Global(name string) (any, error) {
	if c.Closed() {
		return nil, c.closedError()
	}
	return c.Export(c.vm.Get(name))
}
