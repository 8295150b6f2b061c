package form

import (
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
)

// Form builders often write boolean and numeric settings as strings:
// "show": "true", "minLength": "3", or "" for an unset limit.
var (
	componentFlags = []string{"input", "hidden", "multiple", "unique", "clearOnHide"}
	validateFlags  = []string{"required"}
	validateInts   = []string{"minLength", "maxLength"}
	validateFloats = []string{"min", "max"}
)

// normalized returns a copy of raw with string-encoded settings converted
// to their typed form. Values that do not convert are left alone, so the
// typed decode still reports them.
func normalized(raw map[string]any) map[string]any {
	out, _ := deepcopy.Copy(raw).(map[string]any)
	normalizeChildren(out)
	return out
}

func normalizeComponent(m map[string]any) {
	for _, k := range componentFlags {
		normalizeFlag(m, k)
	}
	if cond, ok := m["conditional"].(map[string]any); ok {
		normalizeFlag(cond, "show")
	}
	if v, ok := m["validate"].(map[string]any); ok {
		for _, k := range validateFlags {
			normalizeFlag(v, k)
		}
		for _, k := range validateInts {
			normalizeNumber(v, k, func(s string) (any, error) { return strconv.Atoi(s) })
		}
		for _, k := range validateFloats {
			normalizeNumber(v, k, func(s string) (any, error) { return strconv.ParseFloat(s, 64) })
		}
	}
	normalizeChildren(m)
}

// normalizeChildren visits the components, columns and table rows of m.
func normalizeChildren(m map[string]any) {
	eachMap(m["components"], func(c map[string]any) { normalizeComponent(c) })
	eachMap(m["columns"], func(col map[string]any) { normalizeChildren(col) })
	if rows, ok := m["rows"].([]any); ok {
		for _, row := range rows {
			eachMap(row, func(cell map[string]any) { normalizeChildren(cell) })
		}
	}
}

func eachMap(v any, fn func(map[string]any)) {
	list, ok := v.([]any)
	if !ok {
		return
	}
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			fn(m)
		}
	}
}

func normalizeFlag(m map[string]any, key string) {
	s, ok := m[key].(string)
	if !ok {
		return
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		m[key] = true
	case "false":
		m[key] = false
	case "":
		delete(m, key)
	}
}

func normalizeNumber(m map[string]any, key string, parse func(string) (any, error)) {
	s, ok := m[key].(string)
	if !ok {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" {
		delete(m, key)
		return
	}
	if n, err := parse(s); err == nil {
		m[key] = n
	}
}
