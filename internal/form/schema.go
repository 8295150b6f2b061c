package form

import (
	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Schema is a parsed form definition.
type Schema struct {
	Name       string       `json:"name,omitempty"`
	Title      string       `json:"title,omitempty"`
	Path       string       `json:"path,omitempty"`
	Module     string       `json:"module,omitempty"`
	Components []*Component `json:"components"`

	// Raw is the untouched definition. It is what crosses into a sandbox so
	// that author scripts can read any property, typed or not.
	Raw map[string]any `json:"-"`
}

// ParseJSON parses a JSON form definition.
func ParseJSON(data []byte) (*Schema, error) {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "form definition is not valid JSON")
	}
	return FromMap(raw)
}

// ParseYAML parses a YAML form definition.
func ParseYAML(data []byte) (*Schema, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "form definition is not valid YAML")
	}
	return FromMap(raw)
}

// FromMap builds a Schema from a decoded definition. The map is kept as Raw.
func FromMap(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, fserr.New(fserr.ErrSchemaInvalid, "form definition is empty")
	}

	data, err := sonic.Marshal(normalized(raw))
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "form definition cannot be encoded")
	}

	s := &Schema{}
	if err := sonic.Unmarshal(data, s); err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "form definition does not match the component model")
	}
	s.Raw = raw

	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// check enforces that every data path in the schema is unique.
func (s *Schema) check() error {
	seen := make(map[string]struct{})
	var dup string
	EachComponent(s.Components, func(c *Component, path string) bool {
		if c.DataKey() == "" {
			return true
		}
		if _, ok := seen[path]; ok {
			dup = path
			return false
		}
		seen[path] = struct{}{}
		return true
	})
	if dup != "" {
		return fserr.New(fserr.ErrSchemaInvalid, "duplicate component data path").WithComponent(dup)
	}
	return nil
}

// EachComponent visits components depth-first in document order with their
// schema path (data path without row indices). Returning false stops the walk.
func EachComponent(components []*Component, fn func(c *Component, path string) bool) {
	eachComponent(components, "", fn)
}

func eachComponent(components []*Component, parent string, fn func(*Component, string) bool) bool {
	for _, c := range components {
		if c == nil {
			continue
		}
		path := JoinPath(parent, c.DataKey())
		if !fn(c, path) {
			return false
		}
		childParent := parent
		if c.Model() == ModelObject || c.Model() == ModelNestedArray {
			childParent = path
		}
		if !eachComponent(c.Children(), childParent, fn) {
			return false
		}
	}
	return true
}

// DocumentOrder maps each schema path to its position in document order.
func (s *Schema) DocumentOrder() map[string]int {
	order := make(map[string]int)
	i := 0
	EachComponent(s.Components, func(c *Component, path string) bool {
		if path != "" {
			if _, ok := order[path]; !ok {
				order[path] = i
			}
		}
		i++
		return true
	})
	return order
}

// Find returns the component at a schema path, or nil.
func (s *Schema) Find(schemaPath string) *Component {
	var found *Component
	EachComponent(s.Components, func(c *Component, path string) bool {
		if path == schemaPath && c.DataKey() != "" {
			found = c
			return false
		}
		return true
	})
	return found
}

// Definition returns the raw definition, encoding the typed tree when the
// schema was built in code rather than parsed.
func (s *Schema) Definition() (map[string]any, error) {
	if s.Raw != nil {
		return s.Raw, nil
	}
	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "form definition cannot be encoded")
	}
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "form definition cannot be decoded")
	}
	return raw, nil
}
