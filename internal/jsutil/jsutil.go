// Package jsutil provides safe, consistent JS<->Go value helpers for the
// goja runtimes that host author scripts.
package jsutil

import (
	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// IsNullish reports whether v is missing, undefined or null.
func IsNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// GetString safely retrieves a string property from a goja object.
// Returns the value and true if the key exists and is a string.
func GetString(obj *goja.Object, key string) (string, bool) {
	if obj == nil {
		return "", false
	}
	v := obj.Get(key)
	if IsNullish(v) {
		return "", false
	}
	s, ok := v.Export().(string)
	return s, ok
}

// GetInt safely retrieves an integral number property from a goja object.
func GetInt(obj *goja.Object, key string) (int, bool) {
	if obj == nil {
		return 0, false
	}
	v := obj.Get(key)
	if IsNullish(v) {
		return 0, false
	}
	return toInt(v.Export())
}

// GetObject safely retrieves an object property from a goja object.
func GetObject(obj *goja.Object, key string) (*goja.Object, bool) {
	if obj == nil {
		return nil, false
	}
	v := obj.Get(key)
	if IsNullish(v) {
		return nil, false
	}
	o, ok := v.(*goja.Object)
	return o, ok
}

// GetFunction retrieves a callable property, e.g. JSON.parse.
func GetFunction(obj *goja.Object, key string) (goja.Callable, bool) {
	if obj == nil {
		return nil, false
	}
	return goja.AssertFunction(obj.Get(key))
}

// IsFunction reports whether v is a callable object.
func IsFunction(v goja.Value) bool {
	_, ok := goja.AssertFunction(v)
	return ok
}

// Call calls a goja function and tags failures as script errors.
func Call(fn goja.Callable, this goja.Value, args ...goja.Value) (goja.Value, error) {
	if fn == nil {
		return nil, fserr.New(fserr.ErrInternal, "cannot call nil function")
	}
	result, err := fn(this, args...)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrScriptEvaluation, err, "function call failed")
	}
	return result, nil
}

// StringFunc is the only shape of host capability a sandbox may hold:
// strings in, a string out, no host references either way.
type StringFunc func(a, b string) (string, error)

// WrapStringFunc exposes fn to vm. Missing arguments arrive as "".
// A Go error is thrown into the script as a plain string.
func WrapStringFunc(vm *goja.Runtime, fn StringFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		out, err := fn(argString(call, 0), argString(call, 1))
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(out)
	}
}

func argString(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if IsNullish(v) {
		return ""
	}
	return v.String()
}

// toInt converts the numeric types goja exports to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n >= -2147483648 && n <= 2147483647 {
			return int(n), true
		}
		return 0, false
	case float64:
		if n >= -2147483648 && n <= 2147483647 && n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
