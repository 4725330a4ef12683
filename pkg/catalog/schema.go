package catalog

import "strings"

// ColumnInfo describes one (leaf) column of a table. Nested columns use dotted
// paths such as "event.search_query.time".
type ColumnInfo struct {
	Name               string
	Type               DataType
	Nullable           bool
	Repeated           bool
	MaxRepetitionLevel int
	MaxDefinitionLevel int
	Description        string
}

// TableInfo describes a table exposed by a table provider.
type TableInfo struct {
	Name        string
	Description string
	Columns     []ColumnInfo
}

// ColumnByName finds a column by name (case-insensitive).
func (t *TableInfo) ColumnByName(name string) (*ColumnInfo, int) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], i
		}
	}
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], i
		}
	}
	return nil, -1
}

// ColumnNames returns the column names in declaration order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
