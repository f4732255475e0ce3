package schema

import "slices"

// Column represents a database column.
type Column struct {
	Name     string
	DataType string // PostgreSQL type name (e.g. "int4", "text", "bool")
	Nullable bool
	OrdPos   int // ordinal position (1-based)
}

// IsInteger reports whether the column can hold a vertex id.
func (c Column) IsInteger() bool {
	switch c.DataType {
	case "int2", "int4", "int8":
		return true
	}
	return false
}

// ForeignKey is a foreign key constraint, child columns referencing parent
// columns.
type ForeignKey struct {
	Name          string
	ChildSchema   string
	ChildTable    string
	ChildColumns  []string
	ParentSchema  string
	ParentTable   string
	ParentColumns []string
}

// ParentName returns the schema-qualified parent table name.
func (fk ForeignKey) ParentName() string {
	return fk.ParentSchema + "." + fk.ParentTable
}

// IsSelfRef reports whether the key references its own table.
func (fk ForeignKey) IsSelfRef() bool {
	return fk.ChildSchema == fk.ParentSchema && fk.ChildTable == fk.ParentTable
}

// Table represents a database table with its columns and FKs.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// FullName returns schema-qualified table name.
func (t *Table) FullName() string {
	return t.Schema + "." + t.Name
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}
