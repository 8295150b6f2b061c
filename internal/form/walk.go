package form

// Node is one component bound to a concrete position in submission data.
type Node struct {
	Component *Component
	// Path is the full data path, with row indices ("grid[1].email").
	Path string
	// Value is the data at Path; Present is false when the key is absent.
	Value   any
	Present bool
	// RowIndex is the innermost repeating-row index, or -1 outside rows.
	RowIndex int
}

// Walk visits every data-bearing component against the data tree in
// document order, fanning out once per row of nested-array components.
// Children of a nested array with no rows are not visited.
func Walk(components []*Component, data map[string]any, fn func(Node) error) error {
	return walk(components, data, "", -1, fn)
}

func walk(components []*Component, scope map[string]any, parent string, row int, fn func(Node) error) error {
	for _, c := range components {
		if c == nil {
			continue
		}
		switch c.Model() {
		case ModelNone:
			continue
		case ModelLayout:
			if err := walk(c.Children(), scope, parent, row, fn); err != nil {
				return err
			}
			continue
		}

		key := c.DataKey()
		path := JoinPath(parent, key)
		value, present := Get(scope, key)
		if err := fn(Node{Component: c, Path: path, Value: value, Present: present, RowIndex: row}); err != nil {
			return err
		}

		switch c.Model() {
		case ModelObject:
			child, _ := value.(map[string]any)
			if child == nil {
				child = map[string]any{}
			}
			if err := walk(c.Children(), child, path, row, fn); err != nil {
				return err
			}
		case ModelNestedArray:
			rows, _ := value.([]any)
			for i, r := range rows {
				rowData, _ := r.(map[string]any)
				if rowData == nil {
					rowData = map[string]any{}
				}
				if err := walk(c.Children(), rowData, IndexPath(path, i), i, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
