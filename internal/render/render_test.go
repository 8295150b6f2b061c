package render

import (
	"context"
	"testing"
	"time"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/sandbox"
	"github.com/hlop3z/formsandbox/internal/testutil"
)

func newRenderer(t *testing.T, timeout time.Duration) *Renderer {
	t.Helper()
	reg, err := bundle.Default()
	testutil.AssertNoError(t, err)
	engine, err := sandbox.NewEngine(reg)
	testutil.AssertNoError(t, err)
	return New(engine, timeout)
}

func TestRender(t *testing.T) {
	r := newRenderer(t, 0)
	tests := []struct {
		name string
		tpl  string
		data map[string]any
		want string
	}{
		{"plain", "hello", nil, "hello"},
		{"variable", "Dear {{ name }},", map[string]any{"name": "Ann"}, "Dear Ann,"},
		{"nested", "{{ order.total | default(0) }}", map[string]any{"order": map[string]any{}}, "0"},
		{"loop", "{% for i in items %}{{ i.sku }} {% endfor %}",
			map[string]any{"items": []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}}}, "a b "},
		{"helpers", "{{ _.sum(xs) }} {{ moment('2024-01-31T00:00:00Z').add(1, 'day').format('DD/MM') }}",
			map[string]any{"xs": []any{1, 2, 3}}, "6 01/02"},
		{"escaped", "{{ v }}", map[string]any{"v": `"<x>"`}, "&quot;&lt;x&gt;&quot;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(context.Background(), tt.tpl, tt.data)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, got, tt.want)
		})
	}
}

func TestRenderSubmission(t *testing.T) {
	schema, err := form.ParseJSON([]byte(`{"name": "order", "title": "Order", "components": []}`))
	testutil.AssertNoError(t, err)

	got, err := newRenderer(t, 0).RenderSubmission(context.Background(),
		"{{ form.title }} #{{ metadata.id }}: {{ data.qty }}", schema,
		map[string]any{"qty": 3}, map[string]any{"id": "42"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got, "Order #42: 3")
}

func TestRenderErrors(t *testing.T) {
	r := newRenderer(t, 100*time.Millisecond)
	tests := []struct {
		name string
		tpl  string
		data map[string]any
		code fserr.Code
	}{
		{"unknown filter", "{{ x | shout }}", nil, fserr.ErrScriptEvaluation},
		{"unclosed block", "{% if x %}", nil, fserr.ErrScriptEvaluation},
		{"runaway", "{{ (function () { while (true) {} })() }}", nil, fserr.ErrTimeout},
		{"untransferable data", "{{ f }}", map[string]any{"f": func() {}}, fserr.ErrNotTransferable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(context.Background(), tt.tpl, tt.data)
			testutil.AssertError(t, err, tt.code)
		})
	}
}
