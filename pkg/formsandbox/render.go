package formsandbox

import "context"

// Render fills a template with data inside a sandbox.
func (c *Client) Render(ctx context.Context, tpl string, data map[string]any) (string, error) {
	out, err := c.renderer.Render(ctx, tpl, data)
	return out, evaluationError(err)
}

// RenderSubmission fills a template for a submission of f. The template
// sees form, data and metadata.
func (c *Client) RenderSubmission(ctx context.Context, tpl string, f *Form, sub *Submission) (string, error) {
	var data, meta map[string]any
	if sub != nil {
		data, meta = sub.Data, sub.Metadata
	}
	out, err := c.renderer.RenderSubmission(ctx, tpl, f, data, meta)
	return out, evaluationError(err)
}
