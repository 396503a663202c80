// Package planner converts windows, filters and changesets into parameterized
// PostgreSQL statements. Identifiers come only from introspected metadata;
// every value is bound as a positional parameter.
package planner

import (
	"fmt"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/sqltype"
	"github.com/ivanceras/diwata-sub000/internal/value"
)

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []value.Value
	// ColumnTypes maps each output column to its declared type for Recast.
	ColumnTypes map[string]sqltype.Type
}

// TableLookup resolves table metadata by name. *introspection.Schema implements it.
type TableLookup interface {
	Table(name introspection.TableName) *introspection.Table
}

// Page selects one page of a result. Number starts at 1; a zero Size disables paging.
type Page struct {
	Number int
	Size   int
}

func (p Page) limitOffset() (limit, offset uint64, ok bool) {
	if p.Size <= 0 {
		return 0, 0, false
	}
	number := max(p.Number, 1)
	return uint64(p.Size), uint64((number - 1) * p.Size), true
}

// Recast converts every value of rows to the declared type of its column.
// Columns without a declared type are left as fetched.
func (q SQLQuery) Recast(rows *value.Rows) error {
	if rows == nil || len(q.ColumnTypes) == 0 {
		return nil
	}
	types := make([]sqltype.Type, len(rows.Columns))
	known := make([]bool, len(rows.Columns))
	for i, col := range rows.Columns {
		types[i], known[i] = q.ColumnTypes[col]
	}
	for _, row := range rows.Data {
		for i := range row {
			if i >= len(types) || !known[i] || row[i].IsNull() {
				continue
			}
			cast, err := value.Cast(row[i], types[i])
			if err != nil {
				return fmt.Errorf("recast column %s: %w", rows.Columns[i], err)
			}
			row[i] = cast
		}
	}
	return nil
}

// RecastRecord applies Recast to a single record.
func (q SQLQuery) RecastRecord(rec *value.Record) error {
	if rec == nil {
		return nil
	}
	for _, col := range rec.Columns() {
		t, ok := q.ColumnTypes[col]
		v := rec.Get(col)
		if !ok || v.IsNull() {
			continue
		}
		cast, err := value.Cast(v, t)
		if err != nil {
			return fmt.Errorf("recast column %s: %w", col, err)
		}
		rec.Set(col, cast)
	}
	return nil
}

func tableTypes(table *introspection.Table) map[string]sqltype.Type {
	types := make(map[string]sqltype.Type, len(table.Columns))
	for _, col := range table.Columns {
		types[col.Name] = col.Type
	}
	return types
}

func toValues(args []any) []value.Value {
	if len(args) == 0 {
		return nil
	}
	out := make([]value.Value, len(args))
	for i, arg := range args {
		out[i] = value.FromDriver(arg)
	}
	return out
}
