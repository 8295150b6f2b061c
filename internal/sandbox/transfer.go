package sandbox

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// CheckTransferable reports whether v can be copied into a sandbox by value:
// nil, booleans, finite numbers, strings, and maps (string keys), slices,
// arrays and structs of those. Functions, channels, unsafe pointers,
// complex numbers and reference cycles are rejected. A value reachable
// twice without a cycle is fine; it is copied twice.
func CheckTransferable(v any) error {
	t := &transferCheck{ancestors: make(map[visit]bool)}
	return t.check(reflect.ValueOf(v), "$")
}

// visit identifies a reference-typed value on the current path.
type visit struct {
	ptr uintptr
	typ reflect.Type
}

type transferCheck struct {
	ancestors map[visit]bool
}

func notTransferable(path, reason string) error {
	return fserr.New(fserr.ErrNotTransferable, "value cannot cross the sandbox boundary").
		With("path", path).
		With("reason", reason)
}

func (t *transferCheck) check(v reflect.Value, path string) error {
	if !v.IsValid() {
		return nil
	}

	// Types with their own encoding are leaves (time.Time, json.RawMessage).
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface &&
		(v.Type().Implements(jsonMarshalerType) || v.Type().Implements(textMarshalerType)) {
		return nil
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return nil

	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return notTransferable(path, "non-finite number")
		}
		return nil

	case reflect.Complex64, reflect.Complex128:
		return notTransferable(path, "complex number")
	case reflect.Func:
		return notTransferable(path, "function")
	case reflect.Chan:
		return notTransferable(path, "channel")
	case reflect.UnsafePointer:
		return notTransferable(path, "unsafe pointer")

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return t.check(v.Elem(), path)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return t.enter(v, path, func() error { return t.check(v.Elem(), path) })

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return notTransferable(path, "map key is not a string")
		}
		return t.enter(v, path, func() error {
			iter := v.MapRange()
			for iter.Next() {
				if err := t.check(iter.Value(), path+"."+iter.Key().String()); err != nil {
					return err
				}
			}
			return nil
		})

	case reflect.Slice:
		if v.IsNil() || v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		return t.enter(v, path, func() error { return t.elements(v, path) })

	case reflect.Array:
		return t.elements(v, path)

	case reflect.Struct:
		typ := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() || field.Tag.Get("json") == "-" {
				continue
			}
			if err := t.check(v.Field(i), path+"."+field.Name); err != nil {
				return err
			}
		}
		return nil
	}

	return notTransferable(path, fmt.Sprintf("unsupported kind %s", v.Kind()))
}

func (t *transferCheck) elements(v reflect.Value, path string) error {
	for i := 0; i < v.Len(); i++ {
		if err := t.check(v.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	return nil
}

// enter marks a reference value as an ancestor while fn walks beneath it.
func (t *transferCheck) enter(v reflect.Value, path string, fn func() error) error {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		// Two slices of one backing array differ by length.
		key.ptr += uintptr(v.Len())
	}
	if t.ancestors[key] {
		return notTransferable(path, "reference cycle")
	}
	t.ancestors[key] = true
	defer delete(t.ancestors, key)
	return fn()
}
