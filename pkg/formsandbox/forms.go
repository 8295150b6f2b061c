package formsandbox

import (
	"context"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Form returns the loaded form called name.
func (c *Client) Form(name string) (*Form, error) {
	if c.forms == nil {
		return nil, ErrNoFormsDir
	}
	if f, ok := c.forms.Get(name); ok {
		return f, nil
	}
	names := c.forms.Names()
	e := &FormError{Name: name, Available: names}
	if s, ok := fserr.Suggest(name, names); ok {
		e.Suggestion = s
	}
	return nil, e
}

// Forms returns the names of the loaded forms.
func (c *Client) Forms() []string {
	if c.forms == nil {
		return nil
	}
	return c.forms.Names()
}

// ReloadForms re-reads the forms directory. Files that fail to parse keep
// their previous version.
func (c *Client) ReloadForms() error {
	if c.forms == nil {
		return ErrNoFormsDir
	}
	return c.forms.Reload()
}

// WatchForms reloads forms on file changes until ctx is canceled.
func (c *Client) WatchForms(ctx context.Context, onReload func(names []string, err error)) error {
	if c.forms == nil {
		return ErrNoFormsDir
	}
	return c.forms.Watch(ctx, onReload)
}
