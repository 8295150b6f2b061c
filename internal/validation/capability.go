package validation

import (
	"context"

	"github.com/hlop3z/formsandbox/internal/form"
)

// FetchRequest asks the host to load the data behind a data-source component.
type FetchRequest struct {
	FormID  string
	Path    string
	Fetch   form.Fetch
	Token   string
	Headers map[string]string
	// Data is the submission data as it stands before sandboxing.
	Data map[string]any
}

// Fetcher resolves data-source components on the host. It is never handed
// to a sandbox.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req FetchRequest) (any, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req FetchRequest) (any, error) {
	return f(ctx, req)
}

// UniqueIndex answers and records unique-value questions against stored
// submissions.
type UniqueIndex interface {
	IsUnique(ctx context.Context, formID, path string, value any, excludeID string) (bool, error)
	// Record fails with an fserr.ErrValidation error when another
	// submission already holds the value.
	Record(ctx context.Context, formID, path string, value any, submissionID string) error
	Forget(ctx context.Context, formID, submissionID string) error
}

// CaptchaVerifier checks and redeems one-time captcha tokens. Both return
// an fserr.ErrCaptcha error when the token is not acceptable.
type CaptchaVerifier interface {
	Check(ctx context.Context, formID, token string) error
	Consume(ctx context.Context, formID, token string) error
}
