package planner

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/value"
	"github.com/ivanceras/diwata-sub000/internal/window"
)

// ErrNoPrimaryKey indicates a required primary key is missing.
var ErrNoPrimaryKey = errors.New("no primary key")

// QueryPlanner plans read statements for window tabs.
type QueryPlanner struct {
	tables TableLookup
}

// NewQueryPlanner creates a planner resolving tables through tables.
func NewQueryPlanner(tables TableLookup) *QueryPlanner {
	return &QueryPlanner{tables: tables}
}

// Listing plans one page of a tab with lookup display columns joined in.
func (p *QueryPlanner) Listing(tab window.Tab, filter Filter, sorts []Sort, page Page) (SQLQuery, error) {
	q, table, alias, err := p.selectTab(tab)
	if err != nil {
		return SQLQuery{}, err
	}
	where, err := buildWhere(table, tab, alias, filter)
	if err != nil {
		return SQLQuery{}, err
	}
	q.Where(where)
	if err := applySort(q, table, tab, alias, sorts); err != nil {
		return SQLQuery{}, err
	}
	q.SetPage(page)
	return q.ToSQL()
}

// Count plans the unpaged row count of a filtered tab.
func (p *QueryPlanner) Count(tab window.Tab, filter Filter) (SQLQuery, error) {
	table, err := p.table(tab.Table)
	if err != nil {
		return SQLQuery{}, err
	}
	alias := mainAlias(table)
	where, err := buildWhere(table, tab, alias, filter)
	if err != nil {
		return SQLQuery{}, err
	}
	return NewQueryBuilder().
		Select("COUNT(*) AS count").
		From(table.Name, alias).
		Where(where).
		ToSQL()
}

// Detail plans the fetch of one record by primary key values in key order.
func (p *QueryPlanner) Detail(tab window.Tab, pk []value.Value) (SQLQuery, error) {
	q, table, alias, err := p.selectTab(tab)
	if err != nil {
		return SQLQuery{}, err
	}
	where, err := keyCondition(table, alias, table.PrimaryKey, pk)
	if err != nil {
		return SQLQuery{}, err
	}
	return q.Where(where).ToSQL()
}

// Related plans the rows of tab whose foreign key to parentTable points at parent.
// One-one and has-many tabs use it; a zero page returns every row.
func (p *QueryPlanner) Related(tab window.Tab, parentTable introspection.TableName, parent *value.Record, page Page) (SQLQuery, error) {
	q, table, alias, err := p.selectTab(tab)
	if err != nil {
		return SQLQuery{}, err
	}
	fks := table.ForeignKeysTo(parentTable)
	if len(fks) == 0 {
		return SQLQuery{}, fmt.Errorf("%s has no foreign key to %s", table.Name, parentTable)
	}
	fk := fks[0]
	where, err := keyCondition(table, alias, fk.Columns, recordValues(parent, fk.ReferredColumns))
	if err != nil {
		return SQLQuery{}, err
	}
	q.Where(where)
	if err := applySort(q, table, tab, alias, nil); err != nil {
		return SQLQuery{}, err
	}
	return q.SetPage(page).ToSQL()
}

// Indirect plans the rows of tab linked to parent through linker.
func (p *QueryPlanner) Indirect(tab window.Tab, linkerName, parentTable introspection.TableName, parent *value.Record, page Page) (SQLQuery, error) {
	q, table, alias, err := p.selectTab(tab)
	if err != nil {
		return SQLQuery{}, err
	}
	linker, err := p.table(linkerName)
	if err != nil {
		return SQLQuery{}, err
	}
	toParent := linker.ForeignKeysTo(parentTable)
	toTarget := linker.ForeignKeysTo(table.Name)
	if len(toParent) == 0 || len(toTarget) == 0 {
		return SQLQuery{}, fmt.Errorf("%s does not link %s and %s", linker.Name, parentTable, table.Name)
	}

	linkerAlias := mainAlias(linker)
	on, err := joinColumns(linker, table, alias, toTarget[0])
	if err != nil {
		return SQLQuery{}, err
	}
	q.LeftJoin(linker.Name, linkerAlias, on)

	where, err := keyCondition(linker, linkerAlias, toParent[0].Columns, recordValues(parent, toParent[0].ReferredColumns))
	if err != nil {
		return SQLQuery{}, err
	}
	q.Where(where)
	if err := applySort(q, table, tab, alias, nil); err != nil {
		return SQLQuery{}, err
	}
	return q.SetPage(page).ToSQL()
}

// Lookup plans one page of dropdown choices: the source's primary key and display columns.
func (p *QueryPlanner) Lookup(dropdown window.DropdownInfo, page Page) (SQLQuery, error) {
	table, err := p.table(dropdown.Source)
	if err != nil {
		return SQLQuery{}, err
	}
	if len(table.PrimaryKey) == 0 {
		return SQLQuery{}, fmt.Errorf("lookup source %s: %w", table.Name, ErrNoPrimaryKey)
	}
	alias := mainAlias(table)

	seen := make(map[string]bool)
	var columns []introspection.Column
	for _, name := range append(append([]string(nil), table.PrimaryKey...), dropdown.Display.Columns...) {
		if seen[name] {
			continue
		}
		col, ok := table.Column(name)
		if !ok {
			return SQLQuery{}, fmt.Errorf("lookup source %s has no column %s", table.Name, name)
		}
		seen[name] = true
		columns = append(columns, *col)
	}

	q := NewQueryBuilder().EnumerateColumns(alias, columns).From(table.Name, alias)
	for _, pk := range table.PrimaryKeyColumns() {
		q.OrderBy(alias, pk.Ident(), false)
	}
	return q.SetPage(page).ToSQL()
}

// selectTab selects the tab's columns from its table and joins the display
// columns of every dropdown field.
func (p *QueryPlanner) selectTab(tab window.Tab) (*QueryBuilder, *introspection.Table, introspection.Ident, error) {
	table, err := p.table(tab.Table)
	if err != nil {
		return nil, nil, introspection.Ident{}, err
	}
	alias := mainAlias(table)

	columns := make([]introspection.Column, 0, len(tab.Fields))
	for _, col := range tab.Columns() {
		known, ok := table.Column(col.Name)
		if !ok {
			return nil, nil, introspection.Ident{}, fmt.Errorf("tab %s refers to unknown column %s", tab.Name, col.Name)
		}
		columns = append(columns, *known)
	}

	q := NewQueryBuilder().EnumerateColumns(alias, columns).From(table.Name, alias)
	for _, field := range tab.DropdownFields() {
		if err := p.joinLookup(q, table, alias, field); err != nil {
			return nil, nil, introspection.Ident{}, err
		}
	}
	return q, table, alias, nil
}

// joinLookup left-joins the dropdown source as "<column>_<source>" and selects its
// display columns as "<column>.<source>.<display>".
func (p *QueryPlanner) joinLookup(q *QueryBuilder, table *introspection.Table, alias introspection.Ident, field window.Field) error {
	names := field.ColumnNames()
	if len(names) == 0 || len(field.Dropdown.Display.Columns) == 0 {
		return nil
	}
	source, err := p.table(field.Dropdown.Source)
	if err != nil {
		return err
	}
	fk, ok := table.ForeignKeyForColumn(names[0])
	if !ok {
		return fmt.Errorf("field %s of %s is not a foreign key", field.Name, table.Name)
	}
	fieldIdent, ok := table.ColumnIdent(names[0])
	if !ok {
		return fmt.Errorf("field %s of %s has no column %s", field.Name, table.Name, names[0])
	}

	sourceIdent := source.Name.Ident()
	joinAlias := introspection.Compose("_", fieldIdent, sourceIdent)
	on, err := joinColumns(source, table, alias, reverse(*fk))
	if err != nil {
		return err
	}
	q.LeftJoin(source.Name, joinAlias, on)

	for _, name := range field.Dropdown.Display.Columns {
		col, ok := source.Column(name)
		if !ok {
			return fmt.Errorf("display column %s missing from %s", name, source.Name)
		}
		q.SelectAs(joinAlias, *col, introspection.Compose(".", fieldIdent, sourceIdent, col.Ident()))
	}
	return nil
}

func (p *QueryPlanner) table(name introspection.TableName) (*introspection.Table, error) {
	if p.tables == nil {
		return nil, fmt.Errorf("no table metadata")
	}
	table := p.tables.Table(name)
	if table == nil {
		return nil, fmt.Errorf("unknown table %s", name)
	}
	return table, nil
}

func mainAlias(table *introspection.Table) introspection.Ident {
	return introspection.Compose("", table.Name.Ident())
}

// joinColumns pairs each column of fk on from with the referred column on to,
// qualified by toAlias.
func joinColumns(from, to *introspection.Table, toAlias introspection.Ident, fk introspection.ForeignKey) ([]JoinOn, error) {
	on := make([]JoinOn, len(fk.Columns))
	for i, name := range fk.Columns {
		local, ok := from.ColumnIdent(name)
		if !ok {
			return nil, fmt.Errorf("%s has no column %s", from.Name, name)
		}
		if i >= len(fk.ReferredColumns) {
			return nil, fmt.Errorf("foreign key %s is missing referred columns", fk.ConstraintName)
		}
		remote, ok := to.ColumnIdent(fk.ReferredColumns[i])
		if !ok {
			return nil, fmt.Errorf("%s has no column %s", to.Name, fk.ReferredColumns[i])
		}
		on[i] = JoinOn{Column: local, OtherAlias: toAlias, OtherColumn: remote}
	}
	return on, nil
}

// keyCondition matches alias.columns against values position by position.
func keyCondition(table *introspection.Table, alias introspection.Ident, columns []string, values []value.Value) (sq.Sqlizer, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", table.Name, ErrNoPrimaryKey)
	}
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%s: expected %d key values, got %d", table.Name, len(columns), len(values))
	}
	conds := make(sq.And, len(columns))
	for i, name := range columns {
		ident, ok := table.ColumnIdent(name)
		if !ok {
			return nil, fmt.Errorf("%s has no column %s", table.Name, name)
		}
		conds[i] = sq.Eq{alias.Dot(ident): values[i]}
	}
	return conds, nil
}

// reverse swaps the sides of fk so the referred table becomes the joining side.
func reverse(fk introspection.ForeignKey) introspection.ForeignKey {
	return introspection.ForeignKey{
		ConstraintName:  fk.ConstraintName,
		Columns:         fk.ReferredColumns,
		ReferredTable:   fk.ReferredTable,
		ReferredColumns: fk.Columns,
	}
}

func recordValues(rec *value.Record, columns []string) []value.Value {
	out := make([]value.Value, len(columns))
	for i, col := range columns {
		if rec != nil {
			out[i] = rec.Get(col)
		}
	}
	return out
}
