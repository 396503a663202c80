package introspection

import (
	"sort"
	"strconv"
)

// foreignKeyColumn is one catalog row of a foreign key constraint.
type foreignKeyColumn struct {
	ConstraintName  string
	ReferredSchema  string
	ReferredTable   string
	Column          string
	ReferredColumn  string
	OrdinalPosition int
}

// groupForeignKeys merges per-column rows into ordered constraints.
// Constraints keep first-seen order; columns follow their ordinal position.
func groupForeignKeys(rows []foreignKeyColumn) []ForeignKey {
	if len(rows) == 0 {
		return nil
	}

	type indexed struct {
		key   string
		row   foreignKeyColumn
		index int
	}
	items := make([]indexed, 0, len(rows))
	order := make(map[string]int)
	for i, row := range rows {
		key := row.ConstraintName
		if key == "" {
			// Unnamed rows must never merge with each other.
			key = "__unnamed_" + strconv.Itoa(i)
		}
		if _, ok := order[key]; !ok {
			order[key] = len(order)
		}
		items = append(items, indexed{key: key, row: row, index: i})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].key != items[j].key {
			return order[items[i].key] < order[items[j].key]
		}
		return items[i].row.OrdinalPosition < items[j].row.OrdinalPosition
	})

	result := make([]ForeignKey, len(order))
	for _, item := range items {
		fk := &result[order[item.key]]
		if fk.ConstraintName == "" && len(fk.Columns) == 0 {
			fk.ConstraintName = item.row.ConstraintName
			fk.ReferredTable = TableName{Schema: item.row.ReferredSchema, Name: item.row.ReferredTable}
		}
		fk.Columns = append(fk.Columns, item.row.Column)
		fk.ReferredColumns = append(fk.ReferredColumns, item.row.ReferredColumn)
	}
	return result
}

// ContainsColumn reports whether column is one of the key's local columns.
func (fk ForeignKey) ContainsColumn(column string) bool {
	for _, c := range fk.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// ReferredColumnFor returns the referred column paired with a local column.
func (fk ForeignKey) ReferredColumnFor(column string) (string, bool) {
	for i, c := range fk.Columns {
		if c == column && i < len(fk.ReferredColumns) {
			return fk.ReferredColumns[i], true
		}
	}
	return "", false
}

// ForeignKeyForColumn returns the first foreign key containing column.
// A column shared by several keys belongs to the first one only.
func (t *Table) ForeignKeyForColumn(column string) (*ForeignKey, bool) {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].ContainsColumn(column) {
			return &t.ForeignKeys[i], true
		}
	}
	return nil, false
}

// ForeignKeysTo returns the keys of t that reference the given table, in declaration order.
func (t *Table) ForeignKeysTo(referred TableName) []ForeignKey {
	var out []ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.ReferredTable.Matches(referred) {
			out = append(out, fk)
		}
	}
	return out
}
