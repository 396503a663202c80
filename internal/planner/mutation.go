package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/value"
)

const returningAll = "RETURNING *"

var statements = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PlanInsert builds an INSERT of one record. Columns the database fills itself
// are omitted when the record leaves them NULL.
func PlanInsert(table *introspection.Table, rec *value.Record, returning bool) (SQLQuery, error) {
	return PlanBulkInsert(table, []*value.Record{rec}, returning)
}

// PlanBulkInsert builds a multi-row INSERT. A column is omitted when no row sets it,
// or when it is NULL in every row, NOT NULL and filled by the database. An explicit
// NULL on a nullable column is inserted as NULL.
func PlanBulkInsert(table *introspection.Table, recs []*value.Record, returning bool) (SQLQuery, error) {
	if len(recs) == 0 {
		return SQLQuery{}, fmt.Errorf("insert into %s: no rows", table.Name)
	}
	for _, rec := range recs {
		if err := validateColumns(table, rec); err != nil {
			return SQLQuery{}, err
		}
	}

	var columns []introspection.Column
	for _, col := range table.Columns {
		if col.IsGenerated {
			continue
		}
		present, allNull := false, true
		for _, rec := range recs {
			if rec.Has(col.Name) {
				present = true
				if !rec.Get(col.Name).IsNull() {
					allNull = false
				}
			}
		}
		if !present || (allNull && !col.IsNullable && col.HasGeneratedDefault()) {
			continue
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 {
		if len(recs) > 1 {
			return SQLQuery{}, fmt.Errorf("insert into %s: %d rows without columns", table.Name, len(recs))
		}
		query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table.Name.Ident().SQL())
		if returning {
			query += " " + returningAll
		}
		return SQLQuery{SQL: query, ColumnTypes: tableTypes(table)}, nil
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = col.Ident().SQL()
	}
	builder := statements.Insert(table.Name.Ident().SQL()).Columns(quoted...)
	for _, rec := range recs {
		row := make([]any, len(columns))
		for i, col := range columns {
			v, err := value.Cast(rec.Get(col.Name), col.Type)
			if err != nil {
				return SQLQuery{}, fmt.Errorf("insert into %s column %s: %w", table.Name, col.Name, err)
			}
			row[i] = v
		}
		builder = builder.Values(row...)
	}
	if returning {
		builder = builder.Suffix(returningAll)
	}
	return finish(builder, table)
}

// PlanUpdate builds an UPDATE of the record's non-key columns matched by its primary key.
func PlanUpdate(table *introspection.Table, rec *value.Record) (SQLQuery, error) {
	if err := validateColumns(table, rec); err != nil {
		return SQLQuery{}, err
	}
	if len(table.PrimaryKey) == 0 {
		return SQLQuery{}, fmt.Errorf("update %s: %w", table.Name, ErrNoPrimaryKey)
	}

	builder := statements.Update(table.Name.Ident().SQL())
	set := 0
	for _, col := range table.NonPrimaryKeyColumns() {
		if col.IsGenerated || !rec.Has(col.Name) {
			continue
		}
		v, err := value.Cast(rec.Get(col.Name), col.Type)
		if err != nil {
			return SQLQuery{}, fmt.Errorf("update %s column %s: %w", table.Name, col.Name, err)
		}
		builder = builder.Set(col.Ident().SQL(), v)
		set++
	}
	if set == 0 {
		return SQLQuery{}, fmt.Errorf("update %s: no columns to set", table.Name)
	}

	where, err := primaryKeyWhere(table, rec)
	if err != nil {
		return SQLQuery{}, err
	}
	return finish(builder.Where(where).Suffix(returningAll), table)
}

// PlanDelete builds a DELETE of every row whose primary key is in keys.
func PlanDelete(table *introspection.Table, keys [][]value.Value) (SQLQuery, error) {
	if len(table.PrimaryKey) == 0 {
		return SQLQuery{}, fmt.Errorf("delete from %s: %w", table.Name, ErrNoPrimaryKey)
	}
	if len(keys) == 0 {
		return SQLQuery{}, fmt.Errorf("delete from %s: no keys", table.Name)
	}
	idents, ok := table.IdentsOf(table.PrimaryKey)
	if !ok {
		return SQLQuery{}, fmt.Errorf("delete from %s: primary key column missing", table.Name)
	}

	matches := make(sq.Or, 0, len(keys))
	for _, key := range keys {
		if len(key) != len(idents) {
			return SQLQuery{}, fmt.Errorf("delete from %s: expected %d key values, got %d", table.Name, len(idents), len(key))
		}
		match := make(sq.And, len(idents))
		for i, ident := range idents {
			match[i] = sq.Eq{ident.SQL(): key[i]}
		}
		matches = append(matches, match)
	}
	return finish(statements.Delete(table.Name.Ident().SQL()).Where(matches), table)
}

// PlanDeleteMatching builds a DELETE of the rows whose columns equal values.
func PlanDeleteMatching(table *introspection.Table, columns []string, values []value.Value) (SQLQuery, error) {
	where, err := keyCondition(table, introspection.Compose("", table.Name.Ident()), columns, values)
	if err != nil {
		return SQLQuery{}, err
	}
	return finish(statements.Delete(table.Name.Ident().SQL()).Where(where), table)
}

// PlanUpsert inserts rec or, when its primary key already exists, updates the row
// provided the existing row's match columns equal matchValues.
func PlanUpsert(table *introspection.Table, rec *value.Record, matchColumns []string, matchValues []value.Value) (SQLQuery, error) {
	if len(table.PrimaryKey) == 0 {
		return SQLQuery{}, fmt.Errorf("upsert %s: %w", table.Name, ErrNoPrimaryKey)
	}
	insert, err := PlanInsert(table, rec, false)
	if err != nil {
		return SQLQuery{}, err
	}
	pk, _ := table.IdentsOf(table.PrimaryKey)
	conflict := make([]string, len(pk))
	for i, ident := range pk {
		conflict[i] = ident.SQL()
	}

	var updates []string
	for _, col := range table.NonPrimaryKeyColumns() {
		if col.IsGenerated || !rec.Has(col.Name) {
			continue
		}
		ident := col.Ident().SQL()
		updates = append(updates, ident+" = EXCLUDED."+ident)
	}

	var clause strings.Builder
	clause.WriteString(" ON CONFLICT (" + strings.Join(conflict, ", ") + ")")
	args := insert.Args
	if len(updates) == 0 {
		clause.WriteString(" DO NOTHING")
	} else {
		clause.WriteString(" DO UPDATE SET " + strings.Join(updates, ", "))
		if len(matchColumns) > 0 {
			if len(matchColumns) != len(matchValues) {
				return SQLQuery{}, fmt.Errorf("upsert %s: expected %d match values, got %d", table.Name, len(matchColumns), len(matchValues))
			}
			alias := introspection.Compose("", table.Name.Ident())
			conds := make([]string, len(matchColumns))
			for i, name := range matchColumns {
				ident, ok := table.ColumnIdent(name)
				if !ok {
					return SQLQuery{}, dbexec.InjectionAttempt("column", name)
				}
				args = append(args, matchValues[i])
				conds[i] = fmt.Sprintf("%s = $%d", alias.Dot(ident), len(args))
			}
			clause.WriteString(" WHERE " + strings.Join(conds, " AND "))
		}
	}
	clause.WriteString(" " + returningAll)
	return SQLQuery{SQL: insert.SQL + clause.String(), Args: args, ColumnTypes: tableTypes(table)}, nil
}

// validateColumns rejects record columns the table does not declare.
func validateColumns(table *introspection.Table, rec *value.Record) error {
	if rec == nil {
		return fmt.Errorf("%s: nil record", table.Name)
	}
	for _, name := range rec.Columns() {
		if !table.HasColumn(name) {
			return dbexec.InjectionAttempt("column", name)
		}
	}
	return nil
}

func primaryKeyWhere(table *introspection.Table, rec *value.Record) (sq.Eq, error) {
	where := sq.Eq{}
	for _, col := range table.PrimaryKeyColumns() {
		v := rec.Get(col.Name)
		if v.IsNull() {
			return nil, fmt.Errorf("%s: missing primary key column %s", table.Name, col.Name)
		}
		cast, err := value.Cast(v, col.Type)
		if err != nil {
			return nil, fmt.Errorf("%s primary key %s: %w", table.Name, col.Name, err)
		}
		where[col.Ident().SQL()] = cast
	}
	return where, nil
}

func finish(builder sq.Sqlizer, table *introspection.Table) (SQLQuery, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: toValues(args), ColumnTypes: tableTypes(table)}, nil
}
