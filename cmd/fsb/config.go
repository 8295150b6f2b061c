package main

import (
	"os"
	"time"

	"dario.cat/mergo"
	cenv "github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hlop3z/formsandbox/internal/fetch"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/metrics"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// envPrefix prefixes every environment override.
const envPrefix = "FSB_"

// Config represents the fsb.yaml configuration file.
type Config struct {
	DatabaseURL   string        `yaml:"database_url" env:"DATABASE_URL"`
	FormsDir      string        `yaml:"forms_dir" env:"FORMS_DIR" validate:"required"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
	MemoryLimitMB int           `yaml:"memory_limit_mb" env:"MEMORY_LIMIT_MB" validate:"gte=0"`
	MaxCallStack  int           `yaml:"max_call_stack" env:"MAX_CALL_STACK" validate:"gte=0"`
	CaptchaTTL    time.Duration `yaml:"captcha_ttl" env:"CAPTCHA_TTL" validate:"gt=0"`
	Server        ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Log           LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig configures fsb serve.
type ServerConfig struct {
	Addr  string `yaml:"addr" env:"ADDR" validate:"required,hostname_port"`
	Watch bool   `yaml:"watch" env:"WATCH"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
}

func defaultConfig() Config {
	return Config{
		FormsDir:      "./forms",
		Timeout:       5 * time.Second,
		MemoryLimitMB: 128,
		MaxCallStack:  1000,
		CaptchaTTL:    10 * time.Minute,
		Server:        ServerConfig{Addr: "127.0.0.1:8080"},
		Log:           LogConfig{Level: "info"},
	}
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults
func loadConfig() (*Config, error) {
	cfg := &Config{}

	// Load config file if it exists
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "failed to parse config file").With("file", configFile)
		}
	}

	// Override with env vars
	if err := cenv.ParseWithOptions(cfg, cenv.Options{Prefix: envPrefix}); err != nil {
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "invalid environment configuration")
	}
	if envURL := os.Getenv("DATABASE_URL"); envURL != "" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = envURL
	}

	// Override with CLI flags (highest priority)
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if formsDir != "" {
		cfg.FormsDir = formsDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := mergo.Merge(cfg, defaultConfig()); err != nil {
		return nil, fserr.Wrap(fserr.ErrInternal, err, "failed to apply config defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "invalid configuration").
			WithHelp("check " + configFile + " and the " + envPrefix + "* environment variables")
	}
	return cfg, nil
}

// expandEnvVars expands ${VAR} patterns in a string.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

// clientOptions maps the file configuration onto client options.
func (c *Config) clientOptions() []formsandbox.Option {
	return []formsandbox.Option{
		formsandbox.WithDatabaseURL(c.DatabaseURL),
		formsandbox.WithTimeout(c.Timeout),
		formsandbox.WithMemoryLimit(uint64(c.MemoryLimitMB) << 20),
		formsandbox.WithMaxCallStackSize(c.MaxCallStack),
		formsandbox.WithCaptchaTTL(c.CaptchaTTL),
	}
}

// newClient creates a client with the forms directory loaded. Forms are
// optional for commands that take definitions from files.
func newClient(cfg *Config, withForms bool, extra ...formsandbox.Option) (*formsandbox.Client, error) {
	opts := cfg.clientOptions()
	if withForms {
		opts = append(opts, formsandbox.WithFormsDir(cfg.FormsDir))
	}
	return formsandbox.New(append(opts, extra...)...)
}

// newServingClient creates the client for fsb serve, wired to metrics.
func newServingClient(cfg *Config, collector *metrics.Collector) (*formsandbox.Client, error) {
	return newClient(cfg, true, formsandbox.WithObserver(collector), formsandbox.WithFetcher(fetch.New(fetch.WithTimeout(cfg.Timeout))))
}
