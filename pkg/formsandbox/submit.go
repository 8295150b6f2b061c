package formsandbox

import (
	"context"

	"github.com/hlop3z/formsandbox/internal/validation"
)

// ValidateRequest is one submission to check.
type ValidateRequest struct {
	// FormName selects a loaded form. Ignored when Form is set.
	FormName string

	// Form is the definition to validate against.
	Form *Form

	Submission *Submission

	// SubmissionID excludes the submission's own values from unique checks
	// when it is being updated.
	SubmissionID string

	// Token and Headers are forwarded to data source fetches.
	Token   string
	Headers map[string]string
}

func (c *Client) validationRequest(req ValidateRequest) (validation.Request, error) {
	f := req.Form
	id := req.FormName
	if f == nil {
		var err error
		if f, err = c.Form(req.FormName); err != nil {
			return validation.Request{}, err
		}
	}
	if id == "" {
		id = f.Name
	}
	return validation.Request{
		FormID:       id,
		Form:         f,
		Submission:   req.Submission,
		SubmissionID: req.SubmissionID,
		Token:        req.Token,
		Headers:      req.Headers,
	}, nil
}

// Validate runs the full submission pipeline. It returns a
// *ValidationError for a rejected submission, ErrProcessingFailed when no
// verdict could be reached, and the processed Outcome otherwise.
func (c *Client) Validate(ctx context.Context, req ValidateRequest) (*Outcome, error) {
	vreq, err := c.validationRequest(req)
	if err != nil {
		return nil, err
	}
	return c.validator.Validate(ctx, vreq)
}

// Commit records the unique values of an accepted submission so later
// submissions cannot reuse them. Without a store it does nothing.
func (c *Client) Commit(ctx context.Context, req ValidateRequest, out *Outcome) error {
	vreq, err := c.validationRequest(req)
	if err != nil {
		return err
	}
	return c.validator.Commit(ctx, vreq, out)
}

// IssueCaptcha creates a one-time captcha token for formID.
func (c *Client) IssueCaptcha(ctx context.Context, formID string) (string, error) {
	if c.store == nil {
		return "", ErrNoDatabase
	}
	return c.store.Captcha.Issue(ctx, formID, c.config.CaptchaTTL)
}

// PurgeCaptchas removes used and expired captcha tokens.
func (c *Client) PurgeCaptchas(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, ErrNoDatabase
	}
	return c.store.Captcha.Purge(ctx)
}

// Migrate creates the store tables.
func (c *Client) Migrate(ctx context.Context) error {
	if c.store == nil {
		return ErrNoDatabase
	}
	return c.store.Migrate(ctx)
}
