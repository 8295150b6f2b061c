package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/process"
)

// Context keys rendered by position rather than as plain details.
var positional = map[string]bool{
	"file": true, "line": true, "column": true, "source": true,
	"notes": true, "helps": true, "component": true, "dependency": true, "stage": true,
}

// FormatError formats an error in Cargo style. Coded errors show their
// component, stage and the offending script line.
//
//	error[E3001]: data is not defined
//	  --> lastName:calculateValue
//	  |
//	1 | value = data.first + ' ' + data.last
//	  | ^
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var fe *fserr.Error
	if !errors.As(err, &fe) {
		return Error("error") + ": " + err.Error() + "\n"
	}

	var b strings.Builder
	ctx := fe.GetContext()

	b.WriteString(Error("error"))
	b.WriteString("[" + Code(string(fe.GetCode())) + "]: ")
	b.WriteString(fe.GetMessage())
	b.WriteString("\n")

	if loc := location(ctx); loc != "" {
		b.WriteString("  --> " + FilePath(loc) + "\n")
	}

	line, _ := ctx["line"].(int)
	col, _ := ctx["column"].(int)
	source, hasSource := ctx["source"].(string)
	if hasSource && line > 0 {
		b.WriteString(sourceContext(line, col, source))
	}

	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if !positional[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "   %s %s: %v\n", Pipe(), k, ctx[k])
	}

	for _, n := range fe.Notes() {
		b.WriteString(Note("note") + ": " + n + "\n")
	}
	for _, h := range fe.Helps() {
		b.WriteString(Help("help") + ": " + h + "\n")
	}
	if cause := fe.GetCause(); cause != nil && !hasSource {
		b.WriteString(Note("cause") + ": " + cleanCause(cause.Error()) + "\n")
	}
	return b.String()
}

func location(ctx map[string]any) string {
	var parts []string
	for _, k := range []string{"file", "component", "dependency", "stage"} {
		if v, ok := ctx[k].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ":")
}

// cleanCause strips goja's native frame suffix.
func cleanCause(msg string) string {
	if i := strings.Index(msg, " at github.com"); i != -1 {
		msg = strings.TrimSpace(msg[:i])
	}
	return msg
}

func sourceContext(line, col int, source string) string {
	num := fmt.Sprintf("%d", line)
	pad := strings.Repeat(" ", len(num))

	var b strings.Builder
	b.WriteString(pad + " " + Pipe() + "\n")
	b.WriteString(paint(styleLineNum, num) + " " + Pipe() + " " + source + "\n")
	if col > 0 {
		b.WriteString(pad + " " + Pipe() + " " + strings.Repeat(" ", col-1) + paint(stylePointer, "^") + "\n")
	}
	return b.String()
}

// FormatFieldErrors lists field errors, one per line, in the order given.
func FormatFieldErrors(errs []process.FieldError) string {
	var b strings.Builder
	for _, e := range errs {
		label := Error("error")
		if e.Level == process.LevelWarning {
			label = Warning("warning")
		}
		fmt.Fprintf(&b, "%s: %s %s", label, FilePath(e.Path), e.ErrorKeyOrMessage)
		if e.RuleName != "" && e.RuleName != e.ErrorKeyOrMessage {
			b.WriteString(" " + Dim("("+e.RuleName+")"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSuccess formats a success line.
func FormatSuccess(msg string) string {
	return Success("ok") + ": " + msg + "\n"
}
