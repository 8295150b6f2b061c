package form

// Kind is the discriminating "type" tag of a component.
// The set is closed: every behavior that depends on the kind is a switch in
// this file, and adding a kind means adding a case to each of them.
type Kind string

// Value kinds store a single scalar (or an array when multiple).
const (
	KindTextField   Kind = "textfield"
	KindTextArea    Kind = "textarea"
	KindNumber      Kind = "number"
	KindPassword    Kind = "password"
	KindEmail       Kind = "email"
	KindURL         Kind = "url"
	KindPhoneNumber Kind = "phoneNumber"
	KindCheckbox    Kind = "checkbox"
	KindSelect      Kind = "select"
	KindRadio       Kind = "radio"
	KindSelectBoxes Kind = "selectboxes"
	KindDateTime    Kind = "datetime"
	KindDay         Kind = "day"
	KindTime        Kind = "time"
	KindCurrency    Kind = "currency"
	KindHidden      Kind = "hidden"
	KindSignature   Kind = "signature"
	KindTags        Kind = "tags"
	KindSurvey      Kind = "survey"
	KindFile        Kind = "file"
	KindAddress     Kind = "address"
	KindDataSource  Kind = "datasource"
	KindCaptcha     Kind = "captcha"
)

// Data-bearing parents.
const (
	KindContainer Kind = "container"
	KindDataGrid  Kind = "datagrid"
	KindEditGrid  Kind = "editgrid"
	KindDataTable Kind = "datatable"
	KindTagPad    Kind = "tagpad"
)

// Layout and presentational kinds.
const (
	KindPanel    Kind = "panel"
	KindFieldSet Kind = "fieldset"
	KindWell     Kind = "well"
	KindColumns  Kind = "columns"
	KindTable    Kind = "table"
	KindTabs     Kind = "tabs"
	KindButton   Kind = "button"
	KindContent  Kind = "content"
	KindHTML     Kind = "htmlelement"
)

// Model describes how a component's data is shaped inside the submission.
type Model string

const (
	ModelValue       Model = "value"       // scalar (or array when multiple)
	ModelObject      Model = "object"      // children nest under the component key
	ModelNestedArray Model = "nestedArray" // one child data object per row
	ModelLayout      Model = "layout"      // children share the parent data scope
	ModelNone        Model = "none"        // no data at all
)

// Kinds lists every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindTextField, KindTextArea, KindNumber, KindPassword, KindEmail, KindURL,
		KindPhoneNumber, KindCheckbox, KindSelect, KindRadio, KindSelectBoxes,
		KindDateTime, KindDay, KindTime, KindCurrency, KindHidden, KindSignature,
		KindTags, KindSurvey, KindFile, KindAddress, KindDataSource, KindCaptcha,
		KindContainer, KindDataGrid, KindEditGrid, KindDataTable, KindTagPad,
		KindPanel, KindFieldSet, KindWell, KindColumns, KindTable, KindTabs,
		KindButton, KindContent, KindHTML,
	}
}

// Known reports whether k is one of Kinds().
func Known(k Kind) bool {
	for _, known := range Kinds() {
		if known == k {
			return true
		}
	}
	return false
}

// ModelOf returns the data model for a kind. Unknown kinds are treated as
// plain values so that custom component types still receive their data.
func ModelOf(k Kind) Model {
	switch k {
	case KindContainer:
		return ModelObject
	case KindDataGrid, KindEditGrid, KindDataTable, KindTagPad:
		return ModelNestedArray
	case KindPanel, KindFieldSet, KindWell, KindColumns, KindTable, KindTabs:
		return ModelLayout
	case KindButton, KindContent, KindHTML:
		return ModelNone
	case KindTextField, KindTextArea, KindNumber, KindPassword, KindEmail, KindURL,
		KindPhoneNumber, KindCheckbox, KindSelect, KindRadio, KindSelectBoxes,
		KindDateTime, KindDay, KindTime, KindCurrency, KindHidden, KindSignature,
		KindTags, KindSurvey, KindFile, KindAddress, KindDataSource, KindCaptcha:
		return ModelValue
	default:
		return ModelValue
	}
}

// MultiValueEligible reports whether the "multiple" flag changes the value
// of a kind into an array.
func MultiValueEligible(k Kind) bool {
	switch k {
	case KindTextField, KindTextArea, KindNumber, KindPassword, KindEmail, KindURL,
		KindPhoneNumber, KindSelect, KindDateTime, KindDay, KindTime, KindCurrency,
		KindSignature:
		return true
	case KindCheckbox, KindRadio, KindSelectBoxes, KindHidden, KindTags, KindSurvey,
		KindFile, KindAddress, KindDataSource, KindCaptcha,
		KindContainer, KindDataGrid, KindEditGrid, KindDataTable, KindTagPad,
		KindPanel, KindFieldSet, KindWell, KindColumns, KindTable, KindTabs,
		KindButton, KindContent, KindHTML:
		return false
	default:
		return false
	}
}

// emptyShape is the shape of a kind's empty value.
type emptyShape string

const (
	emptyString emptyShape = "string"
	emptyArray  emptyShape = "array"
	emptyObject emptyShape = "object"
	emptyBool   emptyShape = "bool"
	emptyNull   emptyShape = "null"
)

func emptyShapeOf(k Kind) emptyShape {
	switch k {
	case KindDataGrid, KindEditGrid, KindDataTable, KindTagPad, KindFile:
		return emptyArray
	case KindContainer, KindSelectBoxes, KindSurvey, KindAddress:
		return emptyObject
	case KindCheckbox:
		return emptyBool
	case KindNumber, KindCurrency, KindDataSource:
		return emptyNull
	case KindTextField, KindTextArea, KindPassword, KindEmail, KindURL, KindPhoneNumber,
		KindSelect, KindRadio, KindDateTime, KindDay, KindTime, KindHidden, KindSignature,
		KindTags, KindCaptcha,
		KindPanel, KindFieldSet, KindWell, KindColumns, KindTable, KindTabs,
		KindButton, KindContent, KindHTML:
		return emptyString
	default:
		return emptyString
	}
}

// EmptyValue returns a fresh empty value for a component.
func EmptyValue(c *Component) any {
	if c.Multiple && MultiValueEligible(c.Type) {
		return []any{}
	}
	switch emptyShapeOf(c.Type) {
	case emptyArray:
		return []any{}
	case emptyObject:
		return map[string]any{}
	case emptyBool:
		return false
	case emptyNull:
		return nil
	default:
		return ""
	}
}

// IsEmptyValue reports whether v counts as no value for c. It agrees with
// the in-sandbox rule used by "required".
func IsEmptyValue(c *Component, v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case bool:
		return emptyShapeOf(c.Type) == emptyBool && !x
	case map[string]any:
		for _, item := range x {
			switch y := item.(type) {
			case nil:
			case bool:
				if y {
					return false
				}
			case string:
				if y != "" {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	return false
}

// Traits is the per-kind behavior table handed to the in-sandbox object
// model so that it never branches on type strings itself.
type Traits struct {
	Model      Model  `json:"model"`
	Empty      string `json:"empty"`
	MultiValue bool   `json:"multiValue"`
}

// TraitsTable returns the traits of every known kind keyed by kind name.
func TraitsTable() map[string]Traits {
	table := make(map[string]Traits, len(Kinds()))
	for _, k := range Kinds() {
		table[string(k)] = Traits{
			Model:      ModelOf(k),
			Empty:      string(emptyShapeOf(k)),
			MultiValue: MultiValueEligible(k),
		}
	}
	return table
}
