// Package form models form schemas: a tree of typed components whose keys,
// combined with their data-bearing ancestors, address values in a submission.
package form

// Component is one node of a form schema.
type Component struct {
	Type   Kind   `json:"type" yaml:"type"`
	Key    string `json:"key" yaml:"key"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Input  bool   `json:"input,omitempty" yaml:"input,omitempty"`
	Hidden bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`

	Multiple    bool  `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Unique      bool  `json:"unique,omitempty" yaml:"unique,omitempty"`
	ClearOnHide *bool `json:"clearOnHide,omitempty" yaml:"clearOnHide,omitempty"`

	Components []*Component `json:"components,omitempty" yaml:"components,omitempty"`
	Columns    []*Column    `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows       [][]*Column  `json:"rows,omitempty" yaml:"rows,omitempty"`

	DefaultValue       any          `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	CustomDefaultValue any          `json:"customDefaultValue,omitempty" yaml:"customDefaultValue,omitempty"`
	CalculateValue     any          `json:"calculateValue,omitempty" yaml:"calculateValue,omitempty"`
	Conditional        *Conditional `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	CustomConditional  string       `json:"customConditional,omitempty" yaml:"customConditional,omitempty"`
	Validate           *Validate    `json:"validate,omitempty" yaml:"validate,omitempty"`

	// Data-source components resolve through the host fetch capability.
	Fetch *Fetch `json:"fetch,omitempty" yaml:"fetch,omitempty"`
}

// Column is a layout cell holding child components.
type Column struct {
	Components []*Component `json:"components,omitempty" yaml:"components,omitempty"`
}

// Conditional is the simple show/when/eq visibility rule, or a JSON logic rule.
type Conditional struct {
	Show *bool  `json:"show,omitempty" yaml:"show,omitempty"`
	When string `json:"when,omitempty" yaml:"when,omitempty"`
	Eq   any    `json:"eq,omitempty" yaml:"eq,omitempty"`
	JSON any    `json:"json,omitempty" yaml:"json,omitempty"`
}

// Validate holds the validation settings of a component.
type Validate struct {
	Required      bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Pattern       string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinLength     *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength     *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Custom        string   `json:"custom,omitempty" yaml:"custom,omitempty"`
	JSON          any      `json:"json,omitempty" yaml:"json,omitempty"`
	CustomMessage string   `json:"customMessage,omitempty" yaml:"customMessage,omitempty"`
}

// Fetch describes the remote data a data-source component loads.
type Fetch struct {
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Model returns the data model of the component.
func (c *Component) Model() Model {
	return ModelOf(c.Type)
}

// DataKey is the segment this component contributes to a data path.
// Layout and presentational components contribute nothing.
func (c *Component) DataKey() string {
	switch c.Model() {
	case ModelLayout, ModelNone:
		return ""
	}
	if c.Path != "" {
		return c.Path
	}
	return c.Key
}

// Children returns the direct child components, flattening the columns and
// rows of layout kinds and the panes of tabs.
func (c *Component) Children() []*Component {
	switch c.Type {
	case KindColumns:
		var out []*Component
		for _, col := range c.Columns {
			if col != nil {
				out = append(out, col.Components...)
			}
		}
		return out
	case KindTable:
		var out []*Component
		for _, row := range c.Rows {
			for _, cell := range row {
				if cell != nil {
					out = append(out, cell.Components...)
				}
			}
		}
		return out
	case KindTabs:
		var out []*Component
		for _, pane := range c.Components {
			if pane != nil {
				out = append(out, pane.Components...)
			}
		}
		return out
	}
	return c.Components
}

// IsRequired reports whether the component carries validate.required.
func (c *Component) IsRequired() bool {
	return c.Validate != nil && c.Validate.Required
}
