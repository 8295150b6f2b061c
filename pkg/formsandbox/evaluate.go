package formsandbox

import (
	"context"
	"time"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/process"
	"github.com/hlop3z/formsandbox/internal/sandbox"
)

// EvaluateRequest runs Code in a fresh sandbox.
type EvaluateRequest struct {
	// Deps are bundle names loaded before Code, in order. Nil loads the
	// form processing bundles.
	Deps []string

	// AdditionalDeps load after Deps.
	AdditionalDeps []string

	// Data becomes script globals. Values are deep-copied in.
	Data map[string]any

	// Code is evaluated as a script; its completion value is the result.
	Code string

	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// Evaluate runs one script and returns a deep copy of its result.
// Failures are *EvaluationError values.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (any, error) {
	deps := req.Deps
	if deps == nil {
		deps = bundle.ProcessDeps()
	}
	out, err := c.engine.Evaluate(ctx, sandbox.Request{
		Deps:           deps,
		AdditionalDeps: req.AdditionalDeps,
		Data:           req.Data,
		Code:           req.Code,
		Timeout:        req.Timeout,
	})
	return out, evaluationError(err)
}

// Process runs the form's default value, calculated value, conditional
// and validation stages over sub. The submission is not modified.
func (c *Client) Process(ctx context.Context, f *Form, sub *Submission) (*Result, error) {
	res, err := c.processor.EvaluateProcess(ctx, process.Params{Form: f, Submission: sub})
	if err != nil {
		return nil, evaluationError(err)
	}
	return res, nil
}
