// Package fetch resolves data source components over HTTP on behalf of
// the host. Scripts never see the network; they only see the decoded
// response placed into the submission.
package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/validation"
)

// Client is a validation.Fetcher backed by resty.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout bounds one fetch including retries.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries sets how many times a failed fetch is retried.
func WithRetries(n int) Option {
	return func(c *resty.Client) { c.SetRetryCount(n) }
}

// New creates a Client with a 10s timeout and two retries.
func New(opts ...Option) *Client {
	c := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)
	c.AddRetryCondition(retryCondition)
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

var _ validation.Fetcher = (*Client)(nil)

// Fetch performs the request a data source describes and decodes the JSON
// body. Forwarded headers apply first, the component's own headers win.
func (c *Client) Fetch(ctx context.Context, req validation.FetchRequest) (any, error) {
	if req.Fetch.URL == "" {
		return nil, fserr.New(fserr.ErrFetch, "data source has no url").WithComponent(req.Path)
	}
	method := strings.ToUpper(req.Fetch.Method)
	if method == "" {
		method = http.MethodGet
	}

	r := c.http.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	for k, v := range req.Fetch.Headers {
		r.SetHeader(k, v)
	}
	if req.Token != "" {
		r.SetAuthToken(req.Token)
	}
	if method != http.MethodGet && method != http.MethodHead {
		r.SetHeader("Content-Type", "application/json").SetBody(map[string]any{"data": req.Data})
	}

	resp, err := r.Execute(method, req.Fetch.URL)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrFetch, err, "data source request failed").
			WithComponent(req.Path).With("url", req.Fetch.URL)
	}
	if resp.IsError() {
		return nil, fserr.Newf(fserr.ErrFetch, "data source answered %d", resp.StatusCode()).
			WithComponent(req.Path).With("url", req.Fetch.URL)
	}

	var out any
	if len(resp.Body()) == 0 {
		return nil, nil
	}
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fserr.Wrap(fserr.ErrFetch, err, "data source returned invalid JSON").
			WithComponent(req.Path).With("url", req.Fetch.URL)
	}
	return out, nil
}

// retryCondition retries network errors and transient server answers.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
