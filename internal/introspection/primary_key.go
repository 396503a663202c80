package introspection

import "github.com/ivanceras/diwata-sub000/internal/sqltype"

// Column returns the named column, if present.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

// PrimaryKeyColumns returns the primary key columns in constraint order.
// Returns an empty slice if the table has no primary key.
func (t *Table) PrimaryKeyColumns() []Column {
	cols := make([]Column, 0, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		if col, ok := t.Column(name); ok {
			cols = append(cols, *col)
		}
	}
	return cols
}

// PrimaryKeyTypes returns the value types of the primary key columns.
func (t *Table) PrimaryKeyTypes() []sqltype.Type {
	types := make([]sqltype.Type, 0, len(t.PrimaryKey))
	for _, col := range t.PrimaryKeyColumns() {
		types = append(types, col.Type)
	}
	return types
}

// NonPrimaryKeyColumns returns every column outside the primary key in table order.
func (t *Table) NonPrimaryKeyColumns() []Column {
	var cols []Column
	for _, col := range t.Columns {
		if !t.IsPrimaryKey(col.Name) {
			cols = append(cols, col)
		}
	}
	return cols
}
