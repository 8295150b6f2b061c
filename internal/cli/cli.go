// Package cli formats fsb command output: colored diagnostics for
// terminals, plain text for pipes and CI, and JSON for programs.
package cli

import (
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/mattn/go-isatty"
)

// OutputMode determines how output is formatted.
type OutputMode int

const (
	// ModeTTY enables colored output for interactive terminals.
	ModeTTY OutputMode = iota
	// ModePlain outputs plain text without colors.
	ModePlain
	// ModeJSON outputs structured JSON.
	ModeJSON
)

// Config holds CLI output configuration.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DefaultConfig detects the mode for stdout:
//   - stdout is a TTY and NO_COLOR is unset -> ModeTTY
//   - otherwise, or TERM=dumb -> ModePlain
func DefaultConfig() *Config {
	mode := ModePlain
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		mode = ModeTTY
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		mode = ModePlain
	}
	return &Config{Mode: mode, Writer: os.Stdout}
}

// NewConfigWithMode creates a config with a specific output mode.
func NewConfigWithMode(mode OutputMode, w io.Writer) *Config {
	if w == nil {
		w = os.Stdout
	}
	return &Config{Mode: mode, Writer: w}
}

// IsTTY reports whether colors are enabled.
func (c *Config) IsTTY() bool { return c.Mode == ModeTTY }

// IsJSON reports whether output is JSON.
func (c *Config) IsJSON() bool { return c.Mode == ModeJSON }

var defaultCfg *Config

// Default returns the process-wide configuration.
func Default() *Config {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return defaultCfg
}

// SetDefault replaces the process-wide configuration. Used for --json.
func SetDefault(cfg *Config) {
	defaultCfg = cfg
}

// EnableColors reports whether styled text should carry ANSI codes.
func EnableColors() bool {
	return Default().IsTTY()
}

// PrintJSON writes v as indented JSON followed by a newline.
func (c *Config) PrintJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = c.Writer.Write(append(data, '\n'))
	return err
}
