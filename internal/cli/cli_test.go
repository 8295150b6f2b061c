package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/process"
)

func plain(t *testing.T) {
	t.Helper()
	prev := defaultCfg
	SetDefault(NewConfigWithMode(ModePlain, &bytes.Buffer{}))
	t.Cleanup(func() { defaultCfg = prev })
}

func TestOutputMode(t *testing.T) {
	tests := []struct {
		mode OutputMode
		tty  bool
		json bool
	}{
		{ModeTTY, true, false},
		{ModePlain, false, false},
		{ModeJSON, false, true},
	}
	for _, tt := range tests {
		cfg := &Config{Mode: tt.mode}
		if cfg.IsTTY() != tt.tty || cfg.IsJSON() != tt.json {
			t.Errorf("mode %d: IsTTY=%v IsJSON=%v", tt.mode, cfg.IsTTY(), cfg.IsJSON())
		}
	}
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if DefaultConfig().IsTTY() {
		t.Error("NO_COLOR must disable colors")
	}
}

func TestFormatError(t *testing.T) {
	plain(t)

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "script error",
			err: fserr.New(fserr.ErrScriptEvaluation, "first is not defined").
				WithComponent("fullName").
				With("stage", "calculateValue").
				WithLocation(1, 9).
				WithSource("value = first + last").
				WithHelp("use data.first"),
			want: []string{
				"error[E3001]: first is not defined",
				"--> fullName:calculateValue",
				"1 | value = first + last",
				"  |         ^",
				"help: use data.first",
			},
		},
		{
			name: "details",
			err:  fserr.New(fserr.ErrMemoryLimit, "too big").With("limit_bytes", 1024),
			want: []string{"error[E3003]: too big", "| limit_bytes: 1024"},
		},
		{
			name: "cause",
			err:  fserr.Wrap(fserr.ErrSQLConnection, errors.New("refused at github.com/x (native)"), "no db"),
			want: []string{"error[E4002]: no db", "cause: refused"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: []string{"error: boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError(tt.err)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
		})
	}
	if FormatError(nil) != "" {
		t.Error("nil error must format as empty")
	}
}

func TestFormatFieldErrors(t *testing.T) {
	plain(t)
	got := FormatFieldErrors([]process.FieldError{
		{Path: "email", RuleName: "required", ErrorKeyOrMessage: "required", Level: process.LevelError},
		{Path: "age", RuleName: "custom", ErrorKeyOrMessage: "too young", Level: process.LevelWarning},
	})
	want := "error: email required\nwarning: age too young (custom)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTable(t *testing.T) {
	plain(t)
	tbl := NewTable("NAME", "SHA")
	tbl.AddRow("utility-library", "ab12")
	tbl.AddRow("x")
	lines := strings.Split(strings.TrimRight(tbl.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "NAME             SHA " {
		t.Errorf("header = %q", lines[0])
	}
	if lines[3] != "x                    " {
		t.Errorf("padded row = %q", lines[3])
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewConfigWithMode(ModeJSON, &buf)
	if err := cfg.PrintJSON(map[string]any{"ok": true}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"ok\": true\n}\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestFormatCount(t *testing.T) {
	if FormatCount(1, "error", "errors") != "1 error" || FormatCount(3, "error", "errors") != "3 errors" {
		t.Error("FormatCount pluralizes wrong")
	}
}
