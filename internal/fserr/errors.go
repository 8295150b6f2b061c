// Package fserr provides standardized error handling for formsandbox.
// All errors carry a stable, machine-readable code, structured context, and
// an optional wrapped cause.
package fserr

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number}.
type Code string

// Error codes organized by category.
const (
	// Configuration errors (E1xxx) - fatal at startup or build time
	ErrDependencyNotFound Code = "E1001" // Unknown dependency bundle name
	ErrDependencyInvalid  Code = "E1002" // Bundle source failed to compile or load
	ErrConfigInvalid      Code = "E1003" // Configuration is malformed
	ErrSchemaInvalid      Code = "E1004" // Form schema is malformed

	// Boundary errors (E2xxx) - values that cannot cross into or out of a sandbox
	ErrNotTransferable       Code = "E2001" // Caller passed a non-copyable value
	ErrResultNotTransferable Code = "E2002" // Sandbox result could not be copied out

	// Runtime errors (E3xxx) - author script execution
	ErrScriptEvaluation Code = "E3001" // Author script threw
	ErrTimeout          Code = "E3002" // Wall-clock budget exceeded
	ErrMemoryLimit      Code = "E3003" // Memory ceiling exceeded
	ErrCanceled         Code = "E3004" // Caller canceled the evaluation
	ErrSandboxClosed    Code = "E3005" // Sandbox was used after teardown

	// Storage errors (E4xxx) - privileged host storage
	ErrSQLExecution  Code = "E4001" // SQL statement failed to execute
	ErrSQLConnection Code = "E4002" // Database connection failed

	// Validation errors (E5xxx) - submission rejected
	ErrValidation Code = "E5001" // One or more field errors
	ErrCaptcha    Code = "E5002" // Captcha token missing, used or expired
	ErrFetch      Code = "E5003" // Data source fetch failed

	// Internal errors (E9xxx) - unexpected internal errors
	ErrInternal Code = "E9001" // Internal error
)

// Error is the standard error type for formsandbox.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
	stack   string
}

// Error returns the formatted error string.
// Format:
//
//	[E3001] author script failed
//	  component: firstName
//	  line: 1
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether the target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// GetCause returns the underlying cause error.
func (e *Error) GetCause() error {
	return e.cause
}

// GetStack returns the stack trace.
func (e *Error) GetStack() string {
	return e.stack
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithComponent adds the offending component path to the error.
func (e *Error) WithComponent(path string) *Error {
	return e.With("component", path)
}

// WithDependency adds a dependency bundle name to the error.
func (e *Error) WithDependency(name string) *Error {
	return e.With("dependency", name)
}

// WithLocation adds source location context (line, column).
func (e *Error) WithLocation(line, col int) *Error {
	if line > 0 {
		e.With("line", line)
	}
	if col > 0 {
		e.With("column", col)
	}
	return e
}

// WithSource adds the source code line for display in error messages.
func (e *Error) WithSource(source string) *Error {
	return e.With("source", source)
}

// WithHelp adds a help suggestion to the error (displayed as "help: ...").
func (e *Error) WithHelp(help string) *Error {
	helps, _ := e.context["helps"].([]string)
	helps = append(helps, help)
	return e.With("helps", helps)
}

// WithNote adds a note to the error (displayed as "note: ...").
func (e *Error) WithNote(note string) *Error {
	notes, _ := e.context["notes"].([]string)
	notes = append(notes, note)
	return e.With("notes", notes)
}

// Helps returns all help suggestions attached to this error.
func (e *Error) Helps() []string {
	helps, _ := e.context["helps"].([]string)
	return helps
}

// Notes returns all notes attached to this error.
func (e *Error) Notes() []string {
	notes, _ := e.context["notes"].([]string)
	return notes
}

func captureStack(skip int) string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}
		b.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return b.String()
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		cause:   err,
		stack:   captureStack(3),
	}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.code
	}

	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// HasCode checks if an error has any error code.
func HasCode(err error) bool {
	return GetErrorCode(err) != ""
}

// WrapSQL creates an ErrSQLExecution error with table context.
// Example: WrapSQL(err, "consume captcha token", "captcha_tokens")
func WrapSQL(err error, op string, table string) *Error {
	e := Wrap(ErrSQLExecution, err, "failed to "+op)
	if table != "" {
		e.With("table", table)
	}
	return e
}
