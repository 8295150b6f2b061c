// Package process runs the scriptable evaluator stages of a form inside a
// sandbox and hands back the mutated data plus the accumulated scope.
package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mohae/deepcopy"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/jsutil"
	"github.com/hlop3z/formsandbox/internal/sandbox"
)

// processScript is the fixed entry point. The form module, when present,
// is parsed in the argument position of a return statement, which only
// admits an expression, so an object literal is never read as a block.
const processScript = `(function () {
	var root = new Root(form, submission, { config: config });
	var instances = root.instanceMap;
	var extension = {};
	if (form.module) {
		var mod;
		try {
			mod = typeof form.module === 'string'
				? new Function('return ' + form.module.trim() + '\n;')()
				: form.module;
		} catch (e) {
			e.__errorCode = 'E3001';
			e.__stage = 'module';
			throw e;
		}
		if (mod && mod.evalContext) {
			extension = typeof mod.evalContext === 'function'
				? mod.evalContext({ form: form, submission: submission, instances: instances, config: config })
				: mod.evalContext;
		}
	}
	extension = extension || {};
	root.options.evalContext = extension;
	FormLogic.processSync(root, scope, extension);
	return { scope: scope, data: submission.data };
})()`

// Params is one orchestration request.
type Params struct {
	Form       *form.Schema
	Submission *Submission
	// Scope carries results from host stages that ran before this one.
	// It is never mutated; Result.Scope is a new value.
	Scope   *Scope
	Token   string
	Headers map[string]string
	FormID  string
	Timeout time.Duration
}

// Result is what the sandbox hands back.
type Result struct {
	Scope *Scope         `json:"scope"`
	Data  map[string]any `json:"data"`
}

// Processor drives the evaluator pipeline through a sandbox Engine.
type Processor struct {
	engine  *sandbox.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithTimeout sets the default budget for one EvaluateProcess call.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Processor.
func New(engine *sandbox.Engine, opts ...Option) *Processor {
	p := &Processor{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EvaluateProcess runs default value, calculated value, conditional and
// validation stages for every component in document order. The caller's
// submission is cloned first and never modified.
func (p *Processor) EvaluateProcess(ctx context.Context, params Params) (*Result, error) {
	if params.Form == nil {
		return nil, fserr.New(fserr.ErrSchemaInvalid, "no form to process")
	}
	def, err := params.Form.Definition()
	if err != nil {
		return nil, err
	}

	sub := Submission{}
	if params.Submission != nil {
		sub = deepcopy.Copy(*params.Submission).(Submission)
	}
	if sub.Data == nil {
		sub.Data = map[string]any{}
	}

	scope := NewScope()
	if params.Scope != nil {
		scope = deepcopy.Copy(params.Scope).(*Scope)
		scope.normalize()
	}

	headers := params.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	start := time.Now()
	out, err := p.engine.Evaluate(ctx, sandbox.Request{
		Deps: bundle.ProcessDeps(),
		Data: map[string]any{
			"form":       def,
			"submission": sub,
			"scope":      scope,
			"config": map[string]any{
				"server":  true,
				"token":   params.Token,
				"headers": headers,
				"formId":  params.FormID,
			},
			"__traits": form.TraitsTable(),
		},
		Code:    processScript,
		Timeout: p.defaultTimeout(params),
		Capabilities: map[string]jsutil.StringFunc{
			jsonLogicCapability: applyJSONLogic,
		},
	})
	if err != nil {
		p.logger.Debug("form processing failed", "form", params.Form.Name, "error", err)
		return nil, err
	}

	res, err := decodeResult(out)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("form processed",
		"form", params.Form.Name,
		"errors", len(res.Scope.Errors),
		"elapsed", time.Since(start))
	return res, nil
}

func (p *Processor) defaultTimeout(params Params) time.Duration {
	if params.Timeout > 0 {
		return params.Timeout
	}
	return p.timeout
}

func decodeResult(out any) (*Result, error) {
	raw, err := sonic.Marshal(out)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrResultNotTransferable, err, "process result cannot be encoded")
	}
	res := &Result{}
	if err := sonic.Unmarshal(raw, res); err != nil {
		return nil, fserr.Wrap(fserr.ErrResultNotTransferable, err, "process result has an unexpected shape")
	}
	if res.Scope == nil {
		res.Scope = NewScope()
	}
	res.Scope.normalize()
	if res.Data == nil {
		res.Data = map[string]any{}
	}
	return res, nil
}
