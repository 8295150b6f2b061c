package sandbox

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/jsutil"
)

// JSErrorInfo contains what can be recovered from a goja error.
type JSErrorInfo struct {
	Message   string
	Line      int
	Column    int
	Stack     string
	ErrorCode string // __errorCode set by the form-logic library
	Component string // __component: data path of the offending component
	Stage     string // __stage: evaluator stage that threw
}

// ParseJSError extracts structured information from a goja error.
func ParseJSError(err error) *JSErrorInfo {
	if err == nil {
		return nil
	}
	info := &JSErrorInfo{Message: err.Error()}

	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		info.Message = syntaxErr.Error()
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			info.Line = pos.Line
			info.Column = pos.Column
		}
		return info
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		info.Message = exception.Value().String()
		info.Stack = exception.String()

		if obj, ok := exception.Value().(*goja.Object); ok {
			if code, ok := jsutil.GetString(obj, "__errorCode"); ok {
				info.ErrorCode = code
			}
			if msg, ok := jsutil.GetString(obj, "__errorMessage"); ok {
				info.Message = msg
			}
			if comp, ok := jsutil.GetString(obj, "__component"); ok {
				info.Component = comp
			}
			if stage, ok := jsutil.GetString(obj, "__stage"); ok {
				info.Stage = stage
			}
		}

		// Skip native frames (line 0) to reach the first JS call site.
		if frames := exception.Stack(); len(frames) > 0 {
			for _, frame := range frames {
				pos := frame.Position()
				if pos.Line > 0 {
					info.Line = pos.Line
					info.Column = pos.Column
					break
				}
			}
		} else {
			parseGojaErrorMessage(info)
		}
		return info
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		info.Message = "execution interrupted: " + interrupted.String()
	}
	return info
}

// parseGojaErrorMessage reads "Line X:Y" out of goja's syntax error format,
// used only when an exception carries no stack frames.
func parseGojaErrorMessage(info *JSErrorInfo) {
	msg := info.Message
	lineIdx := strings.Index(msg, "Line ")
	if lineIdx == -1 {
		return
	}
	rest := msg[lineIdx+5:]
	colonIdx := strings.Index(rest, ":")
	if colonIdx == -1 {
		return
	}
	if line, err := strconv.Atoi(rest[:colonIdx]); err == nil {
		info.Line = line
	}
	rest = rest[colonIdx+1:]
	if spaceIdx := strings.Index(rest, " "); spaceIdx != -1 {
		if col, err := strconv.Atoi(rest[:spaceIdx]); err == nil {
			info.Column = col
		}
	}
}

// GetSourceLine returns line lineNum (1-indexed, like goja positions) of code.
func GetSourceLine(code string, lineNum int) string {
	if lineNum <= 0 || code == "" {
		return ""
	}
	scanner := bufio.NewScanner(strings.NewReader(code))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for current := 1; scanner.Scan(); current++ {
		if current == lineNum {
			return scanner.Text()
		}
	}
	return ""
}

// wrapJSError normalizes any error out of a runtime into an fserr kind.
// code is the source that was running, used to quote the failing line.
func wrapJSError(err error, code string, s *settings) *fserr.Error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch interrupted.Value() {
		case interruptTimeout:
			return fserr.New(fserr.ErrTimeout, "evaluation exceeded its time budget").
				With("timeout", s.timeout.String())
		case interruptMemory:
			return fserr.New(fserr.ErrMemoryLimit, "evaluation exceeded its memory ceiling").
				With("limit_bytes", s.memoryLimit)
		case interruptCanceled:
			return fserr.New(fserr.ErrCanceled, "evaluation was canceled")
		}
		return fserr.Wrap(fserr.ErrInternal, err, "evaluation was interrupted")
	}

	info := ParseJSError(err)
	fe := fserr.Wrap(fserr.ErrScriptEvaluation, err, info.Message)
	if info.ErrorCode != "" && info.ErrorCode != string(fserr.ErrScriptEvaluation) {
		fe.With("script_code", info.ErrorCode)
	}
	if info.Component != "" {
		fe.WithComponent(info.Component)
	}
	if info.Stage != "" {
		fe.With("stage", info.Stage)
	}
	fe.WithLocation(info.Line, info.Column)
	if src := GetSourceLine(code, info.Line); src != "" {
		fe.WithSource(strings.TrimSpace(src))
	}
	addJSErrorHelp(fe, info.Message)
	return fe
}

// addJSErrorHelp adds hints for the mistakes form authors make most.
func addJSErrorHelp(err *fserr.Error, message string) {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "eval is not"):
		err.WithNote("eval is not available inside the sandbox")
	case strings.Contains(msg, "cannot read property") || strings.Contains(msg, "of null") || strings.Contains(msg, "of undefined"):
		err.WithNote("a value was null or undefined")
		err.WithHelp("getComponent returns null when no component matches; check the key or use the full data path")
	case strings.Contains(msg, "is not a function"):
		err.WithNote("attempted to call something that is not a function")
		err.WithHelp("only part of the client component API exists on the server")
	case strings.Contains(msg, "is not defined"):
		err.WithNote("reference to an undefined variable")
		err.WithHelp("available names: data, row, rowIndex, component, instance, value, moment, _, utils")
	case strings.Contains(msg, "syntax") || strings.Contains(msg, "unexpected token"):
		err.WithNote("check for missing brackets, quotes, or commas")
	case strings.Contains(msg, "maximum call stack"):
		err.WithNote("recursion is limited inside the sandbox")
	}
}
