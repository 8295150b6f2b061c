// Package render fills email and document templates through the same
// sandbox that runs form logic, so template expressions authored next to a
// form get the same isolation and limits.
package render

import (
	"context"
	"time"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/sandbox"
)

const renderScript = `Templates.render(__template, __context)`

// Renderer renders templates in a sandbox.
type Renderer struct {
	engine  *sandbox.Engine
	timeout time.Duration
}

// New creates a Renderer. A zero timeout uses the engine default.
func New(engine *sandbox.Engine, timeout time.Duration) *Renderer {
	return &Renderer{engine: engine, timeout: timeout}
}

// Render fills tpl with data. Expressions see the keys of data as
// variables, along with moment and _.
func (r *Renderer) Render(ctx context.Context, tpl string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	out, err := r.engine.Evaluate(ctx, sandbox.Request{
		Deps: bundle.TemplateDeps(),
		Data: map[string]any{
			"__template": tpl,
			"__context":  data,
		},
		Code:    renderScript,
		Timeout: r.timeout,
	})
	if err != nil {
		return "", err
	}
	s, ok := out.(string)
	if !ok {
		return "", fserr.Newf(fserr.ErrResultNotTransferable, "template produced %T, not text", out)
	}
	return s, nil
}

// RenderSubmission fills tpl for a submission of schema. The template
// sees form, data and metadata.
func (r *Renderer) RenderSubmission(ctx context.Context, tpl string, schema *form.Schema, data, metadata map[string]any) (string, error) {
	def := map[string]any{}
	if schema != nil {
		var err error
		if def, err = schema.Definition(); err != nil {
			return "", err
		}
	}
	if data == nil {
		data = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return r.Render(ctx, tpl, map[string]any{
		"form":     def,
		"data":     data,
		"metadata": metadata,
	})
}
