package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/process"
)

// ErrProcessingFailed is returned when the pipeline could not reach a
// verdict: a timeout, a crash, or a host capability failure. The cause is
// logged, never returned, so no internals reach the client.
var ErrProcessingFailed = errors.New("validation: processing failed")

// ValidationError rejects a submission. Details lists every field error in
// the order the components were evaluated.
type ValidationError struct {
	Details []process.FieldError `json:"details"`
}

// Error returns a one-line summary followed by one line per field.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed: %d field error(s)", len(e.Details))
	for _, d := range e.Details {
		fmt.Fprintf(&b, "\n  %s: %s", d.Path, d.ErrorKeyOrMessage)
	}
	return b.String()
}

// Unwrap exposes the E5001 code to fserr.Is and errors.Is.
func (e *ValidationError) Unwrap() error {
	return fserr.Newf(fserr.ErrValidation, "%d field error(s)", len(e.Details))
}
