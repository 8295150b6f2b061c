package bundle

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
)

func mustDefault(t *testing.T) *Registry {
	t.Helper()
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	return reg
}

// runtimeWith loads the named bundles, in order, into a bare runtime.
func runtimeWith(t *testing.T, names ...string) *goja.Runtime {
	t.Helper()
	reg := mustDefault(t)
	vm := goja.New()

	traits, err := sonic.Marshal(form.TraitsTable())
	if err != nil {
		t.Fatalf("marshal traits: %v", err)
	}
	if _, err := vm.RunString("var __traits = " + string(traits) + ";"); err != nil {
		t.Fatalf("set traits: %v", err)
	}

	for _, name := range names {
		srcs, err := reg.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		for _, src := range srcs {
			if _, err := vm.RunProgram(src.Program()); err != nil {
				t.Fatalf("load %s: %v", src.Name, err)
			}
		}
	}
	return vm
}

func run(t *testing.T, vm *goja.Runtime, code string) any {
	t.Helper()
	v, err := vm.RunString(code)
	if err != nil {
		t.Fatalf("run %q: %v", code, err)
	}
	return v.Export()
}

func TestDefaultRegistry(t *testing.T) {
	reg := mustDefault(t)

	want := []string{Dates, FormLogic, ObjectModel, Templating, Utility}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	for _, name := range want {
		srcs, err := reg.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", name, err)
		}
		if len(srcs) != 1 || srcs[0].Program() == nil {
			t.Errorf("Resolve(%q) = %d sources, want 1 compiled source", name, len(srcs))
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	reg := mustDefault(t)

	_, err := reg.Resolve("utility-libary")
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if !fserr.Is(err, fserr.ErrDependencyNotFound) {
		t.Fatalf("expected %s, got %v", fserr.ErrDependencyNotFound, err)
	}

	fe := err.(*fserr.Error)
	if got := fe.GetContext()["dependency"]; got != "utility-libary" {
		t.Errorf("dependency context = %v", got)
	}
	helps := fe.Helps()
	if len(helps) != 1 || !strings.Contains(helps[0], Utility) {
		t.Errorf("Helps() = %v, want a suggestion for %q", helps, Utility)
	}
}

func TestBuildRejectsSyntaxError(t *testing.T) {
	_, err := NewBuilder().
		Register("ok", "var a = 1;").
		Register("broken", "var b = ;").
		Build()
	if err == nil {
		t.Fatal("expected build error")
	}
	if !fserr.Is(err, fserr.ErrDependencyInvalid) {
		t.Fatalf("expected %s, got %v", fserr.ErrDependencyInvalid, err)
	}
	if got := err.(*fserr.Error).GetContext()["dependency"]; got != "broken" {
		t.Errorf("dependency context = %v, want broken", got)
	}
}

func TestRegisterReplaces(t *testing.T) {
	reg, err := NewBuilder().
		Register("lib", "var v = 1;").
		Register("lib", "var v = 2;", "var w = 3;").
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	srcs, _ := reg.Resolve("lib")
	if len(srcs) != 2 {
		t.Fatalf("got %d sources, want 2", len(srcs))
	}
	if srcs[1].Name != "lib#1" {
		t.Errorf("source name = %q, want lib#1", srcs[1].Name)
	}
	if len(reg.Names()) != 1 {
		t.Errorf("Names() = %v, want one entry", reg.Names())
	}
}

func TestFingerprint(t *testing.T) {
	a, _ := NewBuilder().Register("x", "var x = 1;").Register("y", "var y = 1;").Build()
	b, _ := NewBuilder().Register("y", "var y = 1;").Register("x", "var x = 1;").Build()
	c, _ := NewBuilder().Register("x", "var x = 2;").Register("y", "var y = 1;").Build()

	fa, err := a.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	fb, _ := b.Fingerprint()
	fc, _ := c.Fingerprint()

	if fa.Root != fb.Root {
		t.Error("registration order must not change the fingerprint")
	}
	if fa.Root == fc.Root {
		t.Error("different sources must change the fingerprint")
	}
	if fa.Bundles["y"] != fc.Bundles["y"] {
		t.Error("unchanged bundle must keep its hash")
	}

	empty, _ := NewBuilder().Build()
	fe, _ := empty.Fingerprint()
	if fe.Root == "" {
		t.Error("expected non-empty root for empty registry")
	}
}

func TestUtilityLibrary(t *testing.T) {
	vm := runtimeWith(t, Utility)

	tests := []struct {
		name string
		code string
		want any
	}{
		{"get nested", "_.get({a: {b: [1, {c: 'x'}]}}, 'a.b[1].c')", "x"},
		{"get default", "_.get({}, 'a.b', 'dflt')", "dflt"},
		{"set creates arrays", "JSON.stringify(_.set({}, 'a[0].b', 1))", `{"a":[{"b":1}]}`},
		{"has", "_.has({a: {b: undefined}}, 'a.b')", true},
		{"unset", "var o = {a: {b: 1, c: 2}}; _.unset(o, 'a.b'); JSON.stringify(o)", `{"a":{"c":2}}`},
		{"isEmpty object", "_.isEmpty({})", true},
		{"isEqual deep", "_.isEqual({a: [1, 2]}, {a: [1, 2]})", true},
		{"cloneDeep detaches", "var s = {a: {b: 1}}; var c = _.cloneDeep(s); c.a.b = 2; s.a.b", int64(1)},
		{"sumBy", "_.sumBy([{n: 1}, {n: 2.5}], 'n')", 3.5},
		{"find by object", "_.find([{k: 1}, {k: 2}], {k: 2}).k", int64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, vm, tt.code); got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.code, got, tt.want)
			}
		})
	}
}

func TestDateLibrary(t *testing.T) {
	vm := runtimeWith(t, Dates)

	tests := []struct {
		name string
		code string
		want any
	}{
		{"add day across month", "moment('2024-01-31T00:00:00Z').add(1, 'day').format('YYYY-MM-DD')", "2024-02-01"},
		{"subtract months", "moment('2024-03-15T00:00:00Z').subtract(2, 'months').format('YYYY-MM')", "2024-01"},
		{"diff days", "moment('2024-01-10T00:00:00Z').diff('2024-01-01T12:00:00Z', 'days')", int64(8)},
		{"diff years", "moment('2024-06-01T00:00:00Z').diff('2000-06-02T00:00:00Z', 'years')", int64(23)},
		{"isBefore", "moment('2024-01-01T00:00:00Z').isBefore('2024-01-02T00:00:00Z')", true},
		{"isSame day", "moment('2024-01-01T01:00:00Z').isSame('2024-01-01T23:00:00Z', 'day')", true},
		{"invalid", "moment('nope').isValid()", false},
		{"time tokens", "moment('2024-01-01T09:05:07Z').format('HH:mm:ss')", "09:05:07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, vm, tt.code); got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.code, got, tt.want)
			}
		})
	}
}

const shimFixture = `
var form = {components: [
  {type: 'container', key: 'a', components: [{type: 'textfield', key: 'b'}]},
  {type: 'panel', key: 'p', components: [{type: 'email', key: 'mail'}]},
  {type: 'datagrid', key: 'grid', components: [{type: 'textfield', key: 'name'}]},
  {type: 'button', key: 'submit'}
]};
var submission = {data: {a: {b: 'x'}, grid: [{name: 'r0'}, {name: 'r1'}]}};
var root = new Root(form, submission, {});
`

func TestObjectModelShim(t *testing.T) {
	vm := runtimeWith(t, ProcessDeps()...)
	run(t, vm, shimFixture)

	tests := []struct {
		name string
		code string
		want any
	}{
		{"instance paths", "root.instances.map(function (i) { return i.path; }).join(',')", "a,a.b,mail,grid,grid[0].name,grid[1].name"},
		{"exact lookup keeps schema node", "root.getComponent('a.b').component === form.components[0].components[0]", true},
		{"short key matches exact", "root.getComponent('b') === root.getComponent('a.b')", true},
		{"short key caches", "root.getComponent('b'); Object.prototype.hasOwnProperty.call(root.instanceMap, 'b')", true},
		{"first row wins", "root.getComponent('name').path", "grid[0].name"},
		{"row value", "root.getComponent('grid[1].name').dataValue", "r1"},
		{"row data slice", "root.getComponent('grid[1].name').data.name", "r1"},
		{"row index", "root.getComponent('grid[1].name').rowIndex", int64(1)},
		{"parent across row", "root.getComponent('grid[0].name').parent.path", "grid"},
		{"top-level parent", "root.getComponent('a').parent", nil},
		{"layout is transparent", "root.getComponent('mail').path", "mail"},
		{"presentational skipped", "root.getComponent('submit')", nil},
		{"missing", "root.getComponent('nope')", nil},
		{"setValue writes data", "root.getComponent('a.b').setValue('y'); submission.data.a.b", "y"},
		{"isEmpty", "root.getComponent('mail').isEmpty()", true},
		{"no-op render", "root.getComponent('a').render()", ""},
		{"no-op redraw", "typeof root.getComponent('a').redraw()", "undefined"},
		{"no back-reference cycle", "JSON.stringify(root.instances).indexOf('\"path\":\"a.b\"') !== -1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, vm, tt.code); got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.code, got, tt.want)
			}
		})
	}
}

func TestShimSkipsMissingContainerData(t *testing.T) {
	vm := runtimeWith(t, ProcessDeps()...)
	got := run(t, vm, `
var r = new Root({components: [{type: 'container', key: 'a', components: [{type: 'textfield', key: 'b'}]}]}, {data: {}});
r.instances.length`)
	if got != int64(1) {
		t.Errorf("instances = %v, want 1 (container only)", got)
	}
}

func TestProcessSync(t *testing.T) {
	vm := runtimeWith(t, ProcessDeps()...)
	run(t, vm, `
var form = {components: [
  {type: 'textfield', key: 'first', customDefaultValue: "value = 'John'"},
  {type: 'container', key: 'c', components: [
    {type: 'textfield', key: 'copy', customDefaultValue: "value = instance.root.getComponent('first').dataValue + '!'"}
  ]},
  {type: 'textfield', key: 'last', validate: {required: true}},
  {type: 'textfield', key: 'secret', validate: {required: true}, conditional: {show: true, when: 'first', eq: 'Jane'}}
]};
var submission = {data: {c: {}, secret: 'x'}};
var root = new Root(form, submission, {});
var scope = FormLogic.processSync(root, {}, {});
`)

	tests := []struct {
		name string
		code string
		want any
	}{
		{"default applied", "submission.data.first", "John"},
		{"sibling default across container", "submission.data.c.copy", "John!"},
		{"one error", "scope.errors.length", int64(1)},
		{"required key", "scope.errors[0].errorKeyOrMessage", "required"},
		{"error path", "scope.errors[0].context.path", "last"},
		{"hidden recorded", "scope.conditionals[0].path", "secret"},
		{"hidden cleared", "'secret' in submission.data", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, vm, tt.code); got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.code, got, tt.want)
			}
		})
	}
}

func TestProcessSyncScriptError(t *testing.T) {
	vm := runtimeWith(t, ProcessDeps()...)
	got := run(t, vm, `
var r = new Root({components: [{type: 'number', key: 'n', calculateValue: 'value = missing.x'}]}, {data: {}});
var out;
try { FormLogic.processSync(r, {}, {}); } catch (e) { out = e.__errorCode + ' ' + e.__component + ' ' + e.__stage; }
out`)
	if got != "E3001 n calculateValue" {
		t.Errorf("script error = %v", got)
	}
}

func TestTemplates(t *testing.T) {
	vm := runtimeWith(t, TemplateDeps()...)

	tests := []struct {
		name string
		tpl  string
		ctx  string
		want string
	}{
		{"interpolate", "Hi {{ name }}!", "{name: 'Ann'}", "Hi Ann!"},
		{"filter", "{{ name | upper }}", "{name: 'ann'}", "ANN"},
		{"filter args", "{{ when | date('YYYY-MM-DD') }}", "{when: '2024-03-05T10:00:00Z'}", "2024-03-05"},
		{"default", "{{ missing | default('n/a') }}", "{missing: null}", "n/a"},
		{"escape", "{{ html }}", "{html: '<b>'}", "&lt;b&gt;"},
		{"safe", "{{ html | safe }}", "{html: '<b>'}", "<b>"},
		{"logical or is not a filter", "{{ a || 'z' }}", "{a: ''}", "z"},
		{"if else", "{% if ok %}yes{% else %}no{% endif %}", "{ok: false}", "no"},
		{"elif", "{% if n > 2 %}big{% elif n > 0 %}small{% endif %}", "{n: 1}", "small"},
		{"for", "{% for x in xs %}{{ loop.index }}={{ x }};{% endfor %}", "{xs: ['a', 'b']}", "1=a;2=b;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := "Templates.render(" + quote(tt.tpl) + ", " + tt.ctx + ")"
			if got := run(t, vm, code); got != tt.want {
				t.Errorf("render(%q) = %#v, want %q", tt.tpl, got, tt.want)
			}
		})
	}
}

func TestTemplateErrors(t *testing.T) {
	vm := runtimeWith(t, TemplateDeps()...)

	for _, tpl := range []string{"{{ x | nope }}", "{% if x %}open", "{% endfor %}", "{% while x %}"} {
		t.Run(tpl, func(t *testing.T) {
			if _, err := vm.RunString("Templates.render(" + quote(tpl) + ", {x: 1})"); err == nil {
				t.Errorf("expected error for %q", tpl)
			}
		})
	}
}

func quote(s string) string {
	b, _ := sonic.Marshal(s)
	return string(b)
}
