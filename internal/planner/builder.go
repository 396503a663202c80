package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

// JoinOn pairs a column of the joined alias with a column of an already joined alias.
type JoinOn struct {
	Column      introspection.Ident
	OtherAlias  introspection.Ident
	OtherColumn introspection.Ident
}

// QueryBuilder accumulates a SELECT statement. Identifiers are taken as
// introspection.Ident so only metadata-backed names reach the SQL text.
type QueryBuilder struct {
	builder sq.SelectBuilder
	types   map[string]sqltype.Type
	err     error
}

// NewQueryBuilder starts an empty SELECT using $n placeholders.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Select(),
		types:   make(map[string]sqltype.Type),
	}
}

// Select adds a fixed expression such as COUNT(*).
func (q *QueryBuilder) Select(expr string) *QueryBuilder {
	q.builder = q.builder.Column(expr)
	return q
}

// EnumerateColumns selects every column qualified by alias. Columns whose type
// has no value variant are cast to text and keep their name.
func (q *QueryBuilder) EnumerateColumns(alias introspection.Ident, columns []introspection.Column) *QueryBuilder {
	for _, col := range columns {
		ident := col.Ident()
		expr := alias.Dot(ident)
		if col.Type.NeedsTextCast() {
			expr = fmt.Sprintf("%s::text AS %s", expr, ident.SQL())
		}
		q.builder = q.builder.Column(expr)
		q.types[col.Name] = col.Type
	}
	return q
}

// SelectAs selects alias.column renamed to as.
func (q *QueryBuilder) SelectAs(alias introspection.Ident, col introspection.Column, as introspection.Ident) *QueryBuilder {
	expr := alias.Dot(col.Ident())
	if col.Type.NeedsTextCast() {
		expr += "::text"
	}
	q.builder = q.builder.Column(expr + " AS " + as.SQL())
	q.types[as.Name()] = col.Type
	return q
}

// From sets the base table under alias.
func (q *QueryBuilder) From(table introspection.TableName, alias introspection.Ident) *QueryBuilder {
	q.builder = q.builder.From(table.Ident().SQL() + " AS " + alias.SQL())
	return q
}

// LeftJoin joins table under alias on the given column pairs.
func (q *QueryBuilder) LeftJoin(table introspection.TableName, alias introspection.Ident, on []JoinOn) *QueryBuilder {
	if len(on) == 0 {
		q.fail(fmt.Errorf("join of %s has no join columns", table))
		return q
	}
	conds := make([]string, len(on))
	for i, pair := range on {
		conds[i] = alias.Dot(pair.Column) + " = " + pair.OtherAlias.Dot(pair.OtherColumn)
	}
	q.builder = q.builder.LeftJoin(fmt.Sprintf("%s AS %s ON %s", table.Ident().SQL(), alias.SQL(), strings.Join(conds, " AND ")))
	return q
}

// Where adds a condition; conditions are ANDed.
func (q *QueryBuilder) Where(cond sq.Sqlizer) *QueryBuilder {
	if cond != nil {
		q.builder = q.builder.Where(cond)
	}
	return q
}

// OrderBy appends alias.column to the ORDER BY list.
func (q *QueryBuilder) OrderBy(alias, column introspection.Ident, desc bool) *QueryBuilder {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q.builder = q.builder.OrderBy(alias.Dot(column) + " " + dir)
	return q
}

// SetLimit caps the number of rows.
func (q *QueryBuilder) SetLimit(limit uint64) *QueryBuilder {
	q.builder = q.builder.Limit(limit)
	return q
}

// SetPage applies LIMIT and OFFSET for page. A zero page size leaves the query unpaged.
func (q *QueryBuilder) SetPage(page Page) *QueryBuilder {
	limit, offset, ok := page.limitOffset()
	if !ok {
		return q
	}
	q.builder = q.builder.Limit(limit).Offset(offset)
	return q
}

// ToSQL renders the statement.
func (q *QueryBuilder) ToSQL() (SQLQuery, error) {
	if q.err != nil {
		return SQLQuery{}, q.err
	}
	query, args, err := q.builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: toValues(args), ColumnTypes: q.types}, nil
}

func (q *QueryBuilder) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}
