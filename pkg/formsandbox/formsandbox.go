// Package formsandbox provides the public API for running untrusted form
// logic. It offers sandboxed evaluation, the form processing pipeline,
// host-side submission validation and template rendering behind a single
// Client.
package formsandbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/catalog"
	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/process"
	"github.com/hlop3z/formsandbox/internal/render"
	"github.com/hlop3z/formsandbox/internal/sandbox"
	"github.com/hlop3z/formsandbox/internal/store"
	"github.com/hlop3z/formsandbox/internal/validation"
)

// Public names for the shapes that cross the API.
type (
	// Form is a parsed form definition.
	Form = form.Schema

	// Submission is the data a form collects.
	Submission = process.Submission

	// FieldError is one validation outcome addressed to a data path.
	FieldError = process.FieldError

	// Scope is the state accumulated while processing a submission.
	Scope = process.Scope

	// Result is the processed data plus its scope.
	Result = process.Result

	// Outcome is an accepted submission.
	Outcome = validation.Outcome

	// Stats counts sandbox activity.
	Stats = sandbox.Stats

	// Fingerprint identifies the exact bundle sources loaded.
	Fingerprint = bundle.Fingerprint
)

// Client is the main entry point for formsandbox.
// It is safe for concurrent use.
type Client struct {
	config    Config
	logger    *slog.Logger
	registry  *bundle.Registry
	engine    *sandbox.Engine
	processor *process.Processor
	validator *validation.Validator
	renderer  *render.Renderer
	store     *store.Store     // nil without DatabaseURL
	forms     *catalog.Catalog // nil without FormsDir
}

// New creates a new Client with the given options.
//
// Example:
//
//	client, err := formsandbox.New(
//	    formsandbox.WithFormsDir("./forms"),
//	    formsandbox.WithDatabaseURL("./forms.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := bundle.Default()
	if err != nil {
		return nil, err
	}
	engine, err := sandbox.NewEngine(reg,
		sandbox.WithTimeout(cfg.Timeout),
		sandbox.WithMemoryLimit(cfg.MemoryLimit),
		sandbox.WithMaxCallStackSize(cfg.MaxCallStackSize),
		sandbox.WithProgramCache(cfg.ProgramCache),
		sandbox.WithLogger(logger),
		sandbox.WithObserver(cfg.Observer),
	)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:    cfg,
		logger:    logger,
		registry:  reg,
		engine:    engine,
		processor: process.New(engine, process.WithTimeout(cfg.Timeout), process.WithLogger(logger)),
		renderer:  render.New(engine, cfg.Timeout),
	}

	vopts := []validation.Option{validation.WithLogger(logger)}
	if cfg.Fetcher != nil {
		vopts = append(vopts, validation.WithFetcher(cfg.Fetcher))
	}
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		st, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.store = st
		vopts = append(vopts, validation.WithUniqueIndex(st.Unique), validation.WithCaptcha(st.Captcha))
	}
	c.validator = validation.New(c.processor, vopts...)

	if cfg.FormsDir != "" {
		forms, err := catalog.Load(cfg.FormsDir, logger)
		if err != nil {
			if forms == nil || fserr.Is(err, fserr.ErrConfigInvalid) {
				c.Close()
				return nil, err
			}
			logger.Warn("some forms failed to load", "dir", cfg.FormsDir, "error", err)
		}
		c.forms = forms
	}
	return c, nil
}

// Close releases the store connection, if any.
func (c *Client) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// Stats returns sandbox counters since the Client was created.
func (c *Client) Stats() Stats {
	return c.engine.Stats()
}

// Bundles returns the names of the dependency bundles available to scripts.
func (c *Client) Bundles() []string {
	return c.registry.Names()
}

// Fingerprint hashes the loaded bundle sources.
func (c *Client) Fingerprint() (*Fingerprint, error) {
	return c.registry.Fingerprint()
}

// ParseForm parses a JSON form definition.
func ParseForm(data []byte) (*Form, error) {
	return form.ParseJSON(data)
}

// ParseFormYAML parses a YAML form definition.
func ParseFormYAML(data []byte) (*Form, error) {
	return form.ParseYAML(data)
}

// LoadForm parses a form definition file by extension.
func LoadForm(path string) (*Form, error) {
	return catalog.ParseFile(path)
}
