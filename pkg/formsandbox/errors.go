package formsandbox

import (
	"errors"
	"fmt"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/validation"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrFormNotFound is returned when a named form is not in the forms directory.
	ErrFormNotFound = errors.New("formsandbox: form not found")

	// ErrNoFormsDir is returned by form lookups when no forms directory is configured.
	ErrNoFormsDir = errors.New("formsandbox: no forms directory configured")

	// ErrNoDatabase is returned by operations that need the store when none is configured.
	ErrNoDatabase = errors.New("formsandbox: no database configured")

	// ErrEvaluationFailed matches every *EvaluationError.
	ErrEvaluationFailed = errors.New("formsandbox: evaluation failed")

	// ErrProcessingFailed is returned by Validate when no verdict could be
	// reached. The cause is logged, not returned.
	ErrProcessingFailed = validation.ErrProcessingFailed
)

// ValidationError rejects a submission and lists every field error.
type ValidationError = validation.ValidationError

// EvaluationError describes a failed sandbox evaluation.
type EvaluationError struct {
	// Code is the stable error code (e.g., "E3001", "E3002").
	Code string

	// Message describes what went wrong.
	Message string

	// Component is the data path of the component whose script failed.
	Component string

	// Stage is the evaluator stage that failed (e.g., "calculateValue").
	Stage string

	// Line and Column locate the failure in the script, when known.
	Line   int
	Column int

	// Cause is the underlying error.
	Cause error
}

// Error returns a formatted error message.
func (e *EvaluationError) Error() string {
	where := ""
	if e.Component != "" {
		where = e.Component
		if e.Stage != "" {
			where += "." + e.Stage
		}
		where += ": "
	}
	if e.Line > 0 {
		return fmt.Sprintf("formsandbox: [%s] %s%s (line %d, column %d)", e.Code, where, e.Message, e.Line, e.Column)
	}
	return fmt.Sprintf("formsandbox: [%s] %s%s", e.Code, where, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrEvaluationFailed
}

// IsTimeout reports whether the evaluation ran out of time.
func (e *EvaluationError) IsTimeout() bool {
	return e.Code == string(fserr.ErrTimeout)
}

// FormError provides detail about a form that could not be found or loaded.
type FormError struct {
	// Name is the requested form name.
	Name string

	// Available lists the loaded form names.
	Available []string

	// Suggestion is the closest loaded name, if any.
	Suggestion string
}

// Error returns a formatted error message.
func (e *FormError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("formsandbox: form %q not found (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("formsandbox: form %q not found", e.Name)
}

// Is reports whether this error matches the target error.
func (e *FormError) Is(target error) bool {
	return target == ErrFormNotFound
}

// evaluationError converts a coded sandbox error into the public type.
// Errors without a code pass through unchanged.
func evaluationError(err error) error {
	if err == nil {
		return nil
	}
	var fe *fserr.Error
	if !errors.As(err, &fe) {
		return err
	}
	ctx := fe.GetContext()
	out := &EvaluationError{
		Code:    string(fe.GetCode()),
		Message: fe.GetMessage(),
		Cause:   err,
	}
	out.Component, _ = ctx["component"].(string)
	out.Stage, _ = ctx["stage"].(string)
	out.Line, _ = ctx["line"].(int)
	out.Column, _ = ctx["column"].(int)
	return out
}
