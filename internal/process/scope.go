package process

// Submission is the payload a form collects.
type Submission struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
	State    string         `json:"state,omitempty"`
}

// Error levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// FieldError is one validation outcome addressed to a data path.
// It is a normal result, never a crash.
type FieldError struct {
	Path              string       `json:"path"`
	RuleName          string       `json:"ruleName,omitempty"`
	ErrorKeyOrMessage string       `json:"errorKeyOrMessage"`
	Level             string       `json:"level"`
	Context           ErrorContext `json:"context"`
}

// ErrorContext describes the component an error belongs to.
type ErrorContext struct {
	Path    string `json:"path"`
	Key     string `json:"key"`
	Label   string `json:"label,omitempty"`
	Value   any    `json:"value,omitempty"`
	Setting any    `json:"setting,omitempty"`
	// Index is the repeating-row index, or -1 outside rows.
	Index int `json:"index"`
}

// ConditionalState records a component hidden by its conditional.
type ConditionalState struct {
	Path                string `json:"path"`
	ConditionallyHidden bool   `json:"conditionallyHidden"`
}

// Scope accumulates results across the whole pipeline. Errors are
// append-only; only the orchestrator resets a scope.
type Scope struct {
	Errors       []FieldError       `json:"errors"`
	Fetched      map[string]bool    `json:"fetched"`
	Conditionals []ConditionalState `json:"conditionals"`
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{
		Errors:       []FieldError{},
		Fetched:      map[string]bool{},
		Conditionals: []ConditionalState{},
	}
}

// AddError appends a field error.
func (s *Scope) AddError(e FieldError) {
	if e.Level == "" {
		e.Level = LevelError
	}
	s.Errors = append(s.Errors, e)
}

// HasErrors reports whether any error-level entry exists.
func (s *Scope) HasErrors() bool {
	for _, e := range s.Errors {
		if e.Level == LevelError {
			return true
		}
	}
	return false
}

// Hidden reports whether path was conditionally hidden.
func (s *Scope) Hidden(path string) bool {
	for _, c := range s.Conditionals {
		if c.Path == path && c.ConditionallyHidden {
			return true
		}
	}
	return false
}

// Reset clears the scope between pipeline runs.
func (s *Scope) Reset() {
	s.Errors = []FieldError{}
	s.Fetched = map[string]bool{}
	s.Conditionals = []ConditionalState{}
}

func (s *Scope) normalize() {
	if s.Errors == nil {
		s.Errors = []FieldError{}
	}
	if s.Fetched == nil {
		s.Fetched = map[string]bool{}
	}
	if s.Conditionals == nil {
		s.Conditionals = []ConditionalState{}
	}
}
