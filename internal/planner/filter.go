package planner

import (
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/value"
	"github.com/ivanceras/diwata-sub000/internal/window"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
	OpIs    Operator = "is"
	OpIn    Operator = "in"
)

const (
	isNull    = "null"
	isNotNull = "notnull"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpNeq: {}, OpLt: {}, OpLte: {}, OpGt: {}, OpGte: {},
	OpLike: {}, OpILike: {}, OpIs: {}, OpIn: {},
}

// Condition is one unvalidated column comparison. Column names are checked
// against a tab when the condition is planned.
type Condition struct {
	Column string
	Op     Operator
	Value  string
	Values []string
}

// Filter is a conjunction of conditions in input order.
type Filter struct {
	Conditions []Condition
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0
}

// Sort orders by one column.
type Sort struct {
	Column string
	Desc   bool
}

// ParseFilter parses "col=op.value&col2=op.value". Values are URL-unescaped;
// "in" takes a semicolon separated list and "is" accepts null or notnull.
func ParseFilter(raw string) (Filter, error) {
	var f Filter
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f, nil
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		column, expr, ok := strings.Cut(part, "=")
		if !ok || column == "" {
			return Filter{}, fmt.Errorf("invalid filter %q: expected column=op.value", part)
		}
		opText, operand, ok := strings.Cut(expr, ".")
		if !ok {
			return Filter{}, fmt.Errorf("invalid filter %q: expected op.value", part)
		}
		op := Operator(strings.ToLower(opText))
		if _, known := operators[op]; !known {
			return Filter{}, fmt.Errorf("invalid filter %q: unknown operator %s", part, opText)
		}
		col, err := url.QueryUnescape(column)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid filter column %q: %w", column, err)
		}
		val, err := url.QueryUnescape(operand)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid filter value %q: %w", operand, err)
		}

		cond := Condition{Column: col, Op: op}
		switch op {
		case OpIs:
			val = strings.ToLower(val)
			if val != isNull && val != isNotNull {
				return Filter{}, fmt.Errorf("invalid filter %q: is expects null or notnull", part)
			}
			cond.Value = val
		case OpIn:
			if val == "" {
				return Filter{}, fmt.Errorf("invalid filter %q: in expects at least one value", part)
			}
			cond.Values = strings.Split(val, ";")
		default:
			cond.Value = val
		}
		f.Conditions = append(f.Conditions, cond)
	}
	return f, nil
}

// ParseSort parses "col.asc,col2.desc". A missing direction means ascending.
func ParseSort(raw string) ([]Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var sorts []Sort
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := Sort{Column: part}
		if i := strings.LastIndex(part, "."); i > 0 {
			switch strings.ToLower(part[i+1:]) {
			case "asc":
				s.Column = part[:i]
			case "desc":
				s.Column = part[:i]
				s.Desc = true
			}
		}
		sorts = append(sorts, s)
	}
	return sorts, nil
}

// buildWhere validates every condition against the tab and binds its values.
func buildWhere(table *introspection.Table, tab window.Tab, alias introspection.Ident, f Filter) (sq.Sqlizer, error) {
	if f.IsEmpty() {
		return nil, nil
	}
	conds := make(sq.And, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		col, ok := tab.Column(c.Column)
		if !ok {
			return nil, dbexec.InjectionAttempt("filter column", c.Column)
		}
		ident, ok := table.ColumnIdent(col.Name)
		if !ok {
			return nil, dbexec.InjectionAttempt("filter column", c.Column)
		}
		qualified := alias.Dot(ident)

		switch c.Op {
		case OpIs:
			if c.Value == isNull {
				conds = append(conds, sq.Eq{qualified: nil})
			} else {
				conds = append(conds, sq.NotEq{qualified: nil})
			}
			continue
		case OpLike:
			conds = append(conds, sq.Like{qualified + "::text": value.Text(c.Value)})
			continue
		case OpILike:
			conds = append(conds, sq.ILike{qualified + "::text": value.Text(c.Value)})
			continue
		case OpIn:
			values := make([]value.Value, len(c.Values))
			for i, raw := range c.Values {
				v, err := value.Cast(raw, col.Type)
				if err != nil {
					return nil, fmt.Errorf("filter %s: %w", c.Column, err)
				}
				values[i] = v
			}
			conds = append(conds, sq.Eq{qualified: values})
			continue
		}

		v, err := value.Cast(c.Value, col.Type)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c.Column, err)
		}
		switch c.Op {
		case OpEq:
			conds = append(conds, sq.Eq{qualified: v})
		case OpNeq:
			conds = append(conds, sq.NotEq{qualified: v})
		case OpLt:
			conds = append(conds, sq.Lt{qualified: v})
		case OpLte:
			conds = append(conds, sq.LtOrEq{qualified: v})
		case OpGt:
			conds = append(conds, sq.Gt{qualified: v})
		case OpGte:
			conds = append(conds, sq.GtOrEq{qualified: v})
		}
	}
	return conds, nil
}

// applySort validates sorts against the tab; without sorts the primary key orders the rows.
func applySort(q *QueryBuilder, table *introspection.Table, tab window.Tab, alias introspection.Ident, sorts []Sort) error {
	if len(sorts) == 0 {
		for _, pk := range table.PrimaryKeyColumns() {
			q.OrderBy(alias, pk.Ident(), false)
		}
		return nil
	}
	for _, s := range sorts {
		col, ok := tab.Column(s.Column)
		if !ok {
			return dbexec.InjectionAttempt("sort column", s.Column)
		}
		ident, ok := table.ColumnIdent(col.Name)
		if !ok {
			return dbexec.InjectionAttempt("sort column", s.Column)
		}
		q.OrderBy(alias, ident, s.Desc)
	}
	return nil
}
