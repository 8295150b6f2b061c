package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/sandbox"
)

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	reg, err := bundle.Default()
	if err != nil {
		t.Fatalf("bundle.Default() error: %v", err)
	}
	engine, err := sandbox.NewEngine(reg)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return New(engine, WithTimeout(5*time.Second))
}

func mustSchema(t *testing.T, src string) *form.Schema {
	t.Helper()
	s, err := form.ParseJSON([]byte(src))
	if err != nil {
		t.Fatalf("ParseJSON() error: %v", err)
	}
	return s
}

func process(t *testing.T, schema string, data map[string]any) *Result {
	t.Helper()
	res, err := newProcessor(t).EvaluateProcess(context.Background(), Params{
		Form:       mustSchema(t, schema),
		Submission: &Submission{Data: data},
	})
	if err != nil {
		t.Fatalf("EvaluateProcess() error: %v", err)
	}
	return res
}

func TestCustomDefaultValue(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "textfield", "key": "firstName", "customDefaultValue": "value = 'John'"}
	]}`, map[string]any{})

	if got := res.Data["firstName"]; got != "John" {
		t.Errorf("firstName = %v, want John", got)
	}
	if len(res.Scope.Errors) != 0 {
		t.Errorf("unexpected errors: %+v", res.Scope.Errors)
	}
}

func TestDefaultValueKeepsSubmittedData(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "textfield", "key": "firstName", "defaultValue": "Ann", "customDefaultValue": "value = 'John'"}
	]}`, map[string]any{"firstName": "Zoe"})

	if got := res.Data["firstName"]; got != "Zoe" {
		t.Errorf("firstName = %v, want Zoe", got)
	}
}

func TestRequired(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "textfield", "key": "firstName", "label": "First name", "validate": {"required": true}}
	]}`, map[string]any{})

	if len(res.Scope.Errors) != 1 {
		t.Fatalf("errors = %+v, want exactly one", res.Scope.Errors)
	}
	e := res.Scope.Errors[0]
	if e.ErrorKeyOrMessage != "required" {
		t.Errorf("errorKeyOrMessage = %q, want required", e.ErrorKeyOrMessage)
	}
	if e.Context.Path != "firstName" {
		t.Errorf("context.path = %q, want firstName", e.Context.Path)
	}
	if e.Level != LevelError || e.Context.Label != "First name" || e.Context.Index != -1 {
		t.Errorf("unexpected error shape: %+v", e)
	}
}

func TestSiblingLookup(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "container", "key": "c", "components": [{"type": "textfield", "key": "b"}]},
		{"type": "datagrid", "key": "grid", "components": [
			{"type": "textfield", "key": "name"},
			{"type": "textfield", "key": "greeting", "customDefaultValue": "value = 'hi ' + row.name"}
		]},
		{"type": "textfield", "key": "fromContainer", "customDefaultValue": "value = instance.root.getComponent('b').dataValue"},
		{"type": "textfield", "key": "fromExact", "customDefaultValue": "value = instance.root.getComponent('c.b').dataValue"},
		{"type": "textfield", "key": "fromRow", "customDefaultValue": "value = instance.root.getComponent('name').dataValue"}
	]}`, map[string]any{
		"c":    map[string]any{"b": "x"},
		"grid": []any{map[string]any{"name": "r0"}, map[string]any{"name": "r1"}},
	})

	tests := []struct {
		path string
		want any
	}{
		{"fromContainer", "x"},
		{"fromExact", "x"},
		{"fromRow", "r0"},
		{"grid[0].greeting", "hi r0"},
		{"grid[1].greeting", "hi r1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, _ := form.Get(res.Data, tt.path)
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestCalculateValueInOrder(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "number", "key": "a"},
		{"type": "number", "key": "b", "calculateValue": "value = data.a * 2"},
		{"type": "number", "key": "total", "calculateValue": "value = data.a + data.b"}
	]}`, map[string]any{"a": 3})

	if got := res.Data["total"]; got != 9.0 {
		t.Errorf("total = %v, want 9", got)
	}
}

func TestConditionalHidesAndClears(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "select", "key": "kind"},
		{"type": "textfield", "key": "detail", "validate": {"required": true},
		 "customConditional": "show = data.kind === 'other'"},
		{"type": "container", "key": "extra", "conditional": {"json": {"==": [{"var": "data.kind"}, "other"]}},
		 "components": [{"type": "textfield", "key": "note", "validate": {"required": true}}]},
		{"type": "textfield", "key": "kept", "clearOnHide": false,
		 "conditional": {"show": false, "when": "kind", "eq": "basic"}}
	]}`, map[string]any{"kind": "basic", "detail": "drop me", "extra": map[string]any{}, "kept": "stay"})

	if len(res.Scope.Errors) != 0 {
		t.Errorf("hidden components must not report errors: %+v", res.Scope.Errors)
	}
	for _, path := range []string{"detail", "extra", "kept"} {
		if !res.Scope.Hidden(path) {
			t.Errorf("%s not reported hidden: %+v", path, res.Scope.Conditionals)
		}
	}
	if _, ok := res.Data["detail"]; ok {
		t.Error("detail must be cleared")
	}
	if res.Data["kept"] != "stay" {
		t.Error("clearOnHide=false must keep the value")
	}
}

func TestValidationRules(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "textfield", "key": "code", "validate": {"pattern": "[A-Z]{3}"}},
		{"type": "textfield", "key": "short", "validate": {"minLength": 3}},
		{"type": "number", "key": "age", "validate": {"min": 18}},
		{"type": "textfield", "key": "word", "validate": {"custom": "valid = input === 'ok' ? true : 'must be ok'"}},
		{"type": "number", "key": "n", "validate": {"json": {"if": [{"<": [{"var": "data.n"}, 10]}, true, "too big"]}}},
		{"type": "textfield", "key": "fine", "validate": {"maxLength": 10}}
	]}`, map[string]any{"code": "abc", "short": "ab", "age": 16, "word": "no", "n": 12, "fine": "yes"})

	want := []struct {
		path, rule, message string
	}{
		{"code", "pattern", "pattern"},
		{"short", "minLength", "minLength"},
		{"age", "min", "min"},
		{"word", "custom", "must be ok"},
		{"n", "json", "too big"},
	}
	if len(res.Scope.Errors) != len(want) {
		t.Fatalf("errors = %+v, want %d", res.Scope.Errors, len(want))
	}
	for i, w := range want {
		e := res.Scope.Errors[i]
		if e.Path != w.path || e.RuleName != w.rule || e.ErrorKeyOrMessage != w.message {
			t.Errorf("error %d = {%s %s %s}, want {%s %s %s}", i, e.Path, e.RuleName, e.ErrorKeyOrMessage, w.path, w.rule, w.message)
		}
	}
}

func TestStringEncodedSettings(t *testing.T) {
	res := process(t, `{"components": [
		{"type": "textfield", "key": "kind"},
		{"type": "textfield", "key": "other", "clearOnHide": "false",
		 "conditional": {"show": "true", "when": "kind", "eq": "other"}},
		{"type": "textfield", "key": "code", "validate": {"required": "false", "minLength": "3", "maxLength": ""}}
	]}`, map[string]any{"kind": "plain", "other": "kept", "code": "ab"})

	if !res.Scope.Hidden("other") {
		t.Error("other should be hidden")
	}
	if res.Data["other"] != "kept" {
		t.Errorf("clearOnHide \"false\" cleared other: %v", res.Data)
	}
	if len(res.Scope.Errors) != 1 || res.Scope.Errors[0].RuleName != "minLength" {
		t.Errorf("errors = %+v", res.Scope.Errors)
	}
}

func TestModuleObjectLiteral(t *testing.T) {
	res := process(t, `{
		"module": "\n  { evalContext: { double: function (n) { return n * 2; } } }  ",
		"components": [{"type": "number", "key": "out", "calculateValue": "value = double(data.n)"}]
	}`, map[string]any{"n": 21})

	if got := res.Data["out"]; got != 42.0 {
		t.Errorf("out = %v, want 42", got)
	}
}

func TestModuleFunctionContext(t *testing.T) {
	res := process(t, `{
		"module": "({ evalContext: function (ctx) { return { formName: ctx.form.name }; } })",
		"name": "signup",
		"components": [{"type": "textfield", "key": "out", "calculateValue": "value = formName"}]
	}`, map[string]any{})

	if got := res.Data["out"]; got != "signup" {
		t.Errorf("out = %v, want signup", got)
	}
}

func TestScriptErrorNamesComponent(t *testing.T) {
	_, err := newProcessor(t).EvaluateProcess(context.Background(), Params{
		Form: mustSchema(t, `{"components": [
			{"type": "textfield", "key": "ok"},
			{"type": "textfield", "key": "bad", "calculateValue": "value = nothing.here"}
		]}`),
		Submission: &Submission{Data: map[string]any{}},
	})
	if !fserr.Is(err, fserr.ErrScriptEvaluation) {
		t.Fatalf("expected %s, got %v", fserr.ErrScriptEvaluation, err)
	}
	var fe *fserr.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fserr.Error, got %T", err)
	}
	ctx := fe.GetContext()
	if ctx["component"] != "bad" || ctx["stage"] != "calculateValue" {
		t.Errorf("context = %v", ctx)
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name string
		calc string
	}{
		{"loop", "while (true) {}"},
		{"toJSON result", "value = { toJSON: function () { while (true) {} } }"},
		{"getter result", "value = { get a() { while (true) {} } }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, _ := sonic.MarshalString(tt.calc)
			start := time.Now()
			_, err := newProcessor(t).EvaluateProcess(context.Background(), Params{
				Form:       mustSchema(t, `{"components": [{"type": "number", "key": "n", "calculateValue": `+calc+`}]}`),
				Submission: &Submission{Data: map[string]any{}},
				Timeout:    100 * time.Millisecond,
			})
			if !fserr.Is(err, fserr.ErrTimeout) {
				t.Fatalf("expected %s, got %v", fserr.ErrTimeout, err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("timeout took %v", elapsed)
			}
		})
	}
}

func TestInputsAreNotMutated(t *testing.T) {
	sub := &Submission{Data: map[string]any{"c": map[string]any{}}}
	scope := NewScope()
	scope.Fetched["ds"] = true

	res, err := newProcessor(t).EvaluateProcess(context.Background(), Params{
		Form: mustSchema(t, `{"components": [
			{"type": "container", "key": "c", "components": [{"type": "textfield", "key": "x", "defaultValue": "d"}]},
			{"type": "textfield", "key": "y", "validate": {"required": true}}
		]}`),
		Submission: sub,
		Scope:      scope,
		Token:      "secret",
	})
	if err != nil {
		t.Fatalf("EvaluateProcess() error: %v", err)
	}

	if len(sub.Data["c"].(map[string]any)) != 0 {
		t.Error("caller submission was mutated")
	}
	if len(scope.Errors) != 0 {
		t.Error("caller scope was mutated")
	}
	if got, _ := form.Get(res.Data, "c.x"); got != "d" {
		t.Errorf("c.x = %v, want d", got)
	}
	if !res.Scope.Fetched["ds"] {
		t.Error("fetched markers must carry through")
	}
	if len(res.Scope.Errors) != 1 {
		t.Errorf("errors = %+v", res.Scope.Errors)
	}
}

func TestConfigIsVisible(t *testing.T) {
	res, err := newProcessor(t).EvaluateProcess(context.Background(), Params{
		Form: mustSchema(t, `{"components": [
			{"type": "hidden", "key": "who", "calculateValue": "value = config.server + ':' + config.formId + ':' + config.headers['x-tenant']"}
		]}`),
		Submission: &Submission{},
		Headers:    map[string]string{"x-tenant": "acme"},
		FormID:     "f1",
	})
	if err != nil {
		t.Fatalf("EvaluateProcess() error: %v", err)
	}
	if got := res.Data["who"]; got != "true:f1:acme" {
		t.Errorf("who = %v", got)
	}
}

func TestScope(t *testing.T) {
	s := NewScope()
	s.AddError(FieldError{Path: "a", ErrorKeyOrMessage: "required"})
	s.AddError(FieldError{Path: "b", ErrorKeyOrMessage: "hint", Level: LevelWarning})
	s.Conditionals = append(s.Conditionals, ConditionalState{Path: "c", ConditionallyHidden: true})

	if s.Errors[0].Level != LevelError {
		t.Error("AddError must default the level")
	}
	if !s.HasErrors() || !s.Hidden("c") || s.Hidden("a") {
		t.Error("unexpected scope state")
	}
	s.Reset()
	if s.HasErrors() || len(s.Conditionals) != 0 || s.Fetched == nil {
		t.Error("Reset must clear the scope")
	}
}

func TestApplyJSONLogic(t *testing.T) {
	tests := []struct {
		name, rule, data, want string
		wantErr                bool
	}{
		{"equality", `{"==": [{"var": "a"}, 1]}`, `{"a": 1}`, "true", false},
		{"arithmetic", `{"+": [1, {"var": "b"}]}`, `{"b": 2}`, "3", false},
		{"no data", `{"if": [true, "yes", "no"]}`, "", `"yes"`, false},
		{"bad rule", `{`, `{}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyJSONLogic(tt.rule, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
