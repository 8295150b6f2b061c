package form

import (
	"strconv"
	"strings"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Segment is one step of a data path: a map key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// ParsePath splits a data path such as "grid[0].name" into segments.
func ParsePath(path string) ([]Segment, error) {
	var segs []Segment
	if path == "" {
		return segs, nil
	}
	for _, part := range strings.Split(path, ".") {
		key := part
		rest := ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			key, rest = part[:i], part[i:]
		}
		if key != "" {
			segs = append(segs, Segment{Key: key})
		} else if rest == "" {
			return nil, fserr.Newf(fserr.ErrSchemaInvalid, "empty segment in path %q", path)
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return nil, fserr.Newf(fserr.ErrSchemaInvalid, "malformed index in path %q", path)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, fserr.Newf(fserr.ErrSchemaInvalid, "malformed index in path %q", path)
			}
			segs = append(segs, Segment{Index: n, IsIndex: true})
			rest = rest[end+1:]
		}
	}
	return segs, nil
}

// JoinPath appends a key to a parent path, skipping empty parts.
func JoinPath(parent, key string) string {
	switch {
	case key == "":
		return parent
	case parent == "":
		return key
	default:
		return parent + "." + key
	}
}

// IndexPath appends a row index to a path.
func IndexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// StripIndices removes row indices, turning a data path into a schema path.
func StripIndices(path string) string {
	var b strings.Builder
	depth := 0
	for _, r := range path {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Get reads the value at a data path.
func Get(data any, path string) (any, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	cur := data
	for _, s := range segs {
		if s.IsIndex {
			arr, ok := cur.([]any)
			if !ok || s.Index >= len(arr) {
				return nil, false
			}
			cur = arr[s.Index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s.Key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes a value at a data path, creating intermediate objects and rows.
func Set(data map[string]any, path string, value any) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 || segs[0].IsIndex {
		return fserr.Newf(fserr.ErrSchemaInvalid, "cannot set root path %q", path)
	}

	var cur any = data
	for i, s := range segs {
		last := i == len(segs)-1
		next := any(map[string]any{})
		if !last && segs[i+1].IsIndex {
			next = []any{}
		}

		if s.IsIndex {
			// The parent grew this array before descending into it.
			arr := cur.([]any)
			if last {
				arr[s.Index] = value
				return nil
			}
			child := arr[s.Index]
			if child == nil {
				child = next
			} else if !sameShape(child, next) {
				return fserr.Newf(fserr.ErrSchemaInvalid, "path %q crosses a value of the wrong shape", path)
			}
			if segs[i+1].IsIndex {
				child = grow(child.([]any), segs[i+1].Index)
			}
			arr[s.Index] = child
			cur = child
			continue
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return fserr.Newf(fserr.ErrSchemaInvalid, "path %q crosses a non-object value", path)
		}
		if last {
			m[s.Key] = value
			return nil
		}
		child := m[s.Key]
		if child == nil {
			child = next
		} else if !sameShape(child, next) {
			return fserr.Newf(fserr.ErrSchemaInvalid, "path %q crosses a value of the wrong shape", path)
		}
		if segs[i+1].IsIndex {
			child = grow(child.([]any), segs[i+1].Index)
		}
		m[s.Key] = child
		cur = child
	}
	return nil
}

func grow(arr []any, index int) []any {
	for len(arr) <= index {
		arr = append(arr, nil)
	}
	return arr
}

func sameShape(v, like any) bool {
	switch like.(type) {
	case []any:
		_, ok := v.([]any)
		return ok
	case map[string]any:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}
