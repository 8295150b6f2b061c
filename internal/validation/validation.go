// Package validation is the host-side half of submission validation. It
// runs the checks that need privileged access (data-source fetches, unique
// values, captcha tokens), delegates everything scriptable to a sandboxed
// process, and merges both into a single verdict.
package validation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/process"
)

// Rule names reported by host checks.
const (
	RuleInvalidType = "invalid_type"
	RuleUnique      = "unique"
	RuleCaptcha     = "captcha"
	RuleScript      = "script"
)

// Request is one submission to validate.
type Request struct {
	FormID     string
	Form       *form.Schema
	Submission *process.Submission
	// SubmissionID is set when an existing submission is being updated, so
	// that its own stored values do not count against uniqueness.
	SubmissionID string
	Token        string
	Headers      map[string]string
	Timeout      time.Duration
}

// Outcome is an accepted submission: the processed data plus the scope,
// which may still carry warnings and conditional state. SubmissionID is
// the request's, or the one Commit assigned to a new submission.
type Outcome struct {
	SubmissionID string         `json:"submissionId,omitempty"`
	Data         map[string]any `json:"data"`
	Scope        *process.Scope `json:"scope"`
}

// Validator runs the pipeline.
type Validator struct {
	proc    *process.Processor
	fetcher Fetcher
	unique  UniqueIndex
	captcha CaptchaVerifier
	logger  *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithFetcher enables data-source resolution.
func WithFetcher(f Fetcher) Option {
	return func(v *Validator) { v.fetcher = f }
}

// WithUniqueIndex enables unique checks.
func WithUniqueIndex(u UniqueIndex) Option {
	return func(v *Validator) { v.unique = u }
}

// WithCaptcha enables captcha verification.
func WithCaptcha(c CaptchaVerifier) Option {
	return func(v *Validator) { v.captcha = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator around a process orchestrator.
func New(proc *process.Processor, opts ...Option) *Validator {
	v := &Validator{proc: proc, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the pipeline. It returns a *ValidationError when the
// submission is rejected, ErrProcessingFailed when no verdict could be
// reached, and an Outcome otherwise. The request is never modified.
func (v *Validator) Validate(ctx context.Context, req Request) (*Outcome, error) {
	if req.Form == nil {
		return nil, fserr.New(fserr.ErrSchemaInvalid, "no form to validate")
	}
	log := v.logger.With("form", req.FormID)

	sub := process.Submission{}
	if req.Submission != nil {
		sub = deepcopy.Copy(*req.Submission).(process.Submission)
	}
	if sub.Data == nil {
		sub.Data = map[string]any{}
	}

	// Values of the wrong shape are reported and dropped, so the remaining
	// checks still run against the rest of the submission.
	malformed := structural(req.Form, sub.Data)
	for _, fe := range malformed {
		if err := form.Set(sub.Data, fe.Path, nil); err != nil {
			return nil, &ValidationError{Details: malformed}
		}
	}

	scope := process.NewScope()
	if err := v.fetch(ctx, req, sub.Data, scope); err != nil {
		log.Error("data source fetch failed", "error", err)
		return nil, ErrProcessingFailed
	}

	res, err := v.proc.EvaluateProcess(ctx, process.Params{
		Form:       req.Form,
		Submission: &sub,
		Scope:      scope,
		Token:      req.Token,
		Headers:    req.Headers,
		FormID:     req.FormID,
		Timeout:    req.Timeout,
	})
	if err != nil {
		if fe, ok := scriptFieldError(req.Form, err); ok {
			log.Warn("form script failed", "error", err)
			details := append(malformed, fe)
			sortDetails(req.Form, sub.Data, details)
			return nil, &ValidationError{Details: details}
		}
		log.Error("form processing failed", "error", err)
		return nil, ErrProcessingFailed
	}
	for _, fe := range malformed {
		res.Scope.AddError(fe)
	}

	nodes := bound(req.Form, res.Data, res.Scope)
	if err := v.checkUnique(ctx, req, nodes, res.Scope); err != nil {
		log.Error("unique check failed", "error", err)
		return nil, ErrProcessingFailed
	}
	if err := v.checkCaptcha(ctx, req, nodes, res.Scope); err != nil {
		log.Error("captcha check failed", "error", err)
		return nil, ErrProcessingFailed
	}

	sortDetails(req.Form, res.Data, res.Scope.Errors)
	if res.Scope.HasErrors() {
		log.Debug("submission rejected", "errors", len(res.Scope.Errors))
		return nil, &ValidationError{Details: res.Scope.Errors}
	}
	return &Outcome{SubmissionID: req.SubmissionID, Data: res.Data, Scope: res.Scope}, nil
}

// Commit records the unique values of an accepted submission. A new
// submission gets an ID first, stored in out.SubmissionID. When another
// submission claimed one of the values since Validate ran, Commit returns
// a *ValidationError and keeps nothing of a new submission.
func (v *Validator) Commit(ctx context.Context, req Request, out *Outcome) error {
	if out == nil {
		return nil
	}
	if out.SubmissionID == "" {
		out.SubmissionID = req.SubmissionID
	}
	created := out.SubmissionID == ""
	if created {
		out.SubmissionID = uuid.NewString()
	}
	if v.unique == nil {
		return nil
	}

	var taken []process.FieldError
	for _, n := range bound(req.Form, out.Data, out.Scope) {
		if !n.Component.Unique || form.IsEmptyValue(n.Component, n.Value) {
			continue
		}
		err := v.unique.Record(ctx, req.FormID, n.Path, n.Value, out.SubmissionID)
		switch {
		case err == nil:
		case fserr.Is(err, fserr.ErrValidation):
			taken = append(taken, fieldError(n, RuleUnique, RuleUnique, true))
		default:
			return err
		}
	}
	if len(taken) == 0 {
		return nil
	}
	if created {
		if err := v.unique.Forget(ctx, req.FormID, out.SubmissionID); err != nil {
			return err
		}
		out.SubmissionID = ""
	}
	return &ValidationError{Details: taken}
}

// structural rejects data whose shape cannot match the component tree:
// containers need objects, repeating components need arrays of rows.
func structural(schema *form.Schema, data map[string]any) []process.FieldError {
	var details []process.FieldError
	_ = form.Walk(schema.Components, data, func(n form.Node) error {
		if !n.Present || n.Value == nil || shapeOK(n.Component, n.Value) {
			return nil
		}
		details = append(details, fieldError(n, RuleInvalidType, RuleInvalidType, string(n.Component.Model())))
		return nil
	})
	return details
}

func shapeOK(c *form.Component, v any) bool {
	switch c.Model() {
	case form.ModelObject:
		_, ok := v.(map[string]any)
		return ok
	case form.ModelNestedArray:
		rows, ok := v.([]any)
		if !ok {
			return false
		}
		for _, r := range rows {
			if _, ok := r.(map[string]any); !ok && r != nil {
				return false
			}
		}
		return true
	}
	if c.Multiple && form.MultiValueEligible(c.Type) {
		_, ok := v.([]any)
		return ok
	}
	return true
}

// fetch resolves data-source components before the sandbox runs and marks
// them in scope.Fetched.
func (v *Validator) fetch(ctx context.Context, req Request, data map[string]any, scope *process.Scope) error {
	if v.fetcher == nil {
		return nil
	}
	var targets []form.Node
	_ = form.Walk(req.Form.Components, data, func(n form.Node) error {
		if n.Component.Type == form.KindDataSource && n.Component.Fetch != nil {
			targets = append(targets, n)
		}
		return nil
	})
	for _, n := range targets {
		value, err := v.fetcher.Fetch(ctx, FetchRequest{
			FormID:  req.FormID,
			Path:    n.Path,
			Fetch:   *n.Component.Fetch,
			Token:   req.Token,
			Headers: req.Headers,
			Data:    data,
		})
		if err != nil {
			return fserr.Wrap(fserr.ErrFetch, err, "data source fetch failed").WithComponent(n.Path)
		}
		if err := form.Set(data, n.Path, value); err != nil {
			return err
		}
		scope.Fetched[n.Path] = true
	}
	return nil
}

// bound returns the visible components bound to data, in evaluation order.
func bound(schema *form.Schema, data map[string]any, scope *process.Scope) []form.Node {
	var nodes []form.Node
	_ = form.Walk(schema.Components, data, func(n form.Node) error {
		if !hidden(scope, n.Path) {
			nodes = append(nodes, n)
		}
		return nil
	})
	return nodes
}

// hidden reports whether path or one of its ancestors was conditionally hidden.
func hidden(scope *process.Scope, path string) bool {
	if scope == nil {
		return false
	}
	for _, c := range scope.Conditionals {
		if !c.ConditionallyHidden {
			continue
		}
		if path == c.Path || strings.HasPrefix(path, c.Path+".") || strings.HasPrefix(path, c.Path+"[") {
			return true
		}
	}
	return false
}

func (v *Validator) checkUnique(ctx context.Context, req Request, nodes []form.Node, scope *process.Scope) error {
	if v.unique == nil {
		return nil
	}
	for _, n := range nodes {
		if !n.Component.Unique || form.IsEmptyValue(n.Component, n.Value) {
			continue
		}
		ok, err := v.unique.IsUnique(ctx, req.FormID, n.Path, n.Value, req.SubmissionID)
		if err != nil {
			return err
		}
		if !ok {
			scope.AddError(fieldError(n, RuleUnique, RuleUnique, true))
		}
	}
	return nil
}

// checkCaptcha verifies captcha tokens. A token is redeemed only when the
// submission has no other errors, so a rejected submission can be resent
// with the same token.
func (v *Validator) checkCaptcha(ctx context.Context, req Request, nodes []form.Node, scope *process.Scope) error {
	if v.captcha == nil {
		return nil
	}
	var live []form.Node
	for _, n := range nodes {
		if n.Component.Type != form.KindCaptcha {
			continue
		}
		token, _ := n.Value.(string)
		err := v.captcha.Check(ctx, req.FormID, token)
		switch {
		case err == nil:
			live = append(live, n)
		case fserr.Is(err, fserr.ErrCaptcha):
			scope.AddError(fieldError(n, RuleCaptcha, RuleCaptcha, nil))
		default:
			return err
		}
	}
	if scope.HasErrors() {
		return nil
	}
	for _, n := range live {
		token, _ := n.Value.(string)
		err := v.captcha.Consume(ctx, req.FormID, token)
		switch {
		case err == nil:
		case fserr.Is(err, fserr.ErrCaptcha):
			scope.AddError(fieldError(n, RuleCaptcha, RuleCaptcha, nil))
		default:
			return err
		}
	}
	return nil
}

// scriptFieldError turns a script failure pinned to a known component into
// a field error. Anything else stays a pipeline failure.
func scriptFieldError(schema *form.Schema, err error) (process.FieldError, bool) {
	var fe *fserr.Error
	if !errors.As(err, &fe) || fe.GetCode() != fserr.ErrScriptEvaluation {
		return process.FieldError{}, false
	}
	path, _ := fe.GetContext()["component"].(string)
	if path == "" {
		return process.FieldError{}, false
	}
	c := schema.Find(form.StripIndices(path))
	if c == nil {
		return process.FieldError{}, false
	}
	return process.FieldError{
		Path:              path,
		RuleName:          RuleScript,
		ErrorKeyOrMessage: "invalid",
		Level:             process.LevelError,
		Context: process.ErrorContext{
			Path:  path,
			Key:   c.Key,
			Label: label(c),
			Index: -1,
		},
	}, true
}

func fieldError(n form.Node, rule, message string, setting any) process.FieldError {
	return process.FieldError{
		Path:              n.Path,
		RuleName:          rule,
		ErrorKeyOrMessage: message,
		Level:             process.LevelError,
		Context: process.ErrorContext{
			Path:    n.Path,
			Key:     n.Component.Key,
			Label:   label(n.Component),
			Value:   n.Value,
			Setting: setting,
			Index:   n.RowIndex,
		},
	}
}

func label(c *form.Component) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}

// sortDetails orders errors by the position of their component in the
// evaluation walk. Errors for the same component keep their relative order.
func sortDetails(schema *form.Schema, data map[string]any, details []process.FieldError) {
	order := make(map[string]int)
	i := 0
	_ = form.Walk(schema.Components, data, func(n form.Node) error {
		order[n.Path] = i
		i++
		return nil
	})
	schemaOrder := schema.DocumentOrder()
	pos := func(path string) int {
		if p, ok := order[path]; ok {
			return p
		}
		if p, ok := schemaOrder[form.StripIndices(path)]; ok {
			return i + p
		}
		return i + len(schemaOrder)
	}
	sort.SliceStable(details, func(a, b int) bool {
		return pos(details[a].Path) < pos(details[b].Path)
	})
}
