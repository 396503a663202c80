package window

import (
	"log/slog"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/naming"
	"github.com/ivanceras/diwata-sub000/internal/relation"
)

// Builder derives windows from a relationship graph.
type Builder struct {
	graph  *relation.Graph
	namer  *naming.Namer
	logger *slog.Logger
	tabs   map[relation.TableID]Tab
}

// NewBuilder creates a Builder. A nil namer uses default naming.
func NewBuilder(graph *relation.Graph, namer *naming.Namer, logger *slog.Logger) *Builder {
	if namer == nil {
		namer = naming.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		graph:  graph,
		namer:  namer,
		logger: logger,
		tabs:   make(map[relation.TableID]Tab),
	}
}

// BuildWindows derives one window per non-linker table using default naming.
func BuildWindows(graph *relation.Graph) []Window {
	return NewBuilder(graph, nil, nil).Build()
}

// Build derives one window per non-linker table, in graph order. Repeated calls
// return the same names.
func (b *Builder) Build() []Window {
	b.namer.Reset()
	b.tabs = make(map[relation.TableID]Tab)

	ids := b.graph.WindowTables()
	windows := make([]Window, 0, len(ids))
	for _, id := range ids {
		windows = append(windows, b.buildWindow(id))
	}
	b.logger.Debug("built windows",
		slog.Int("tables", b.graph.Len()),
		slog.Int("windows", len(windows)),
	)
	return windows
}

func (b *Builder) buildWindow(id relation.TableID) Window {
	table := b.graph.Table(id)
	w := Window{
		Name:        table.Name.Name,
		Description: table.Comment,
		Group:       table.Name.Schema,
		Table:       table.Name,
		MainTab:     b.tab(id),
	}

	for _, t := range b.graph.OneOneTables(id) {
		tab := b.tab(t)
		tab.Label = b.namer.SingularLabel(tab.Name)
		w.OneOneTabs = append(w.OneOneTabs, tab)
	}
	for _, t := range b.graph.HasManyTables(id) {
		tab := b.tab(t)
		tab.Label = b.namer.PluralLabel(tab.Name)
		w.HasManyTabs = append(w.HasManyTabs, tab)
	}

	indirect := b.graph.IndirectTables(id)
	reach := make(map[relation.TableID]int, len(indirect))
	for _, ind := range indirect {
		reach[ind.Table]++
	}
	for _, ind := range indirect {
		tab := b.tab(ind.Table)
		linker := b.graph.Table(ind.Linker).Name
		if reach[ind.Table] > 1 {
			tab.Name = b.namer.IndirectTabName(tab.Name, linker.Name, true)
			tab.Label = b.namer.IndirectTabName(b.namer.PluralLabel(tab.Table.Name), linker.Name, true)
		} else {
			tab.Label = b.namer.PluralLabel(tab.Table.Name)
		}
		w.IndirectTabs = append(w.IndirectTabs, IndirectTab{Linker: linker, Tab: tab})
	}
	return w
}

// tab builds the tab of a table once and returns copies afterwards.
func (b *Builder) tab(id relation.TableID) Tab {
	if tab, ok := b.tabs[id]; ok {
		return tab
	}
	table := b.graph.Table(id)
	tab := Tab{
		Name:        table.Name.Name,
		Label:       b.namer.Label(table.Name.Name),
		Description: table.Comment,
		Table:       table.Name,
		Fields:      b.fields(table),
		IsView:      table.IsView,
	}
	if len(table.PrimaryKey) > 0 {
		display := DeriveDisplay(table)
		tab.Display = &display
	}
	b.tabs[id] = tab
	return tab
}

// fields lists plain columns as Simple fields and merges each foreign key's columns
// into one field placed at the position of its first column. A column in several
// foreign keys belongs to the first of them.
func (b *Builder) fields(table *introspection.Table) []Field {
	scope := table.Name.String()
	owner := make(map[string]int)
	for i, fk := range table.ForeignKeys {
		for _, col := range fk.Columns {
			if _, taken := owner[col]; !taken {
				owner[col] = i
			}
		}
	}

	emitted := make(map[int]bool)
	fields := make([]Field, 0, len(table.Columns))
	for _, col := range table.Columns {
		fkIndex, inFK := owner[col.Name]
		if !inFK {
			name := b.namer.ColumnFieldName(scope, col.Name)
			fields = append(fields, Field{
				Name:        name,
				Label:       b.namer.Label(name),
				Description: col.Comment,
				IsPrimary:   table.IsPrimaryKey(col.Name),
				Detail:      Simple{Column: col},
			})
			continue
		}
		if emitted[fkIndex] {
			continue
		}
		emitted[fkIndex] = true
		fields = append(fields, b.foreignKeyField(scope, table, fkIndex, owner))
	}
	return fields
}

func (b *Builder) foreignKeyField(scope string, table *introspection.Table, fkIndex int, owner map[string]int) Field {
	fk := table.ForeignKeys[fkIndex]
	var cols []introspection.Column
	isPrimary := false
	for _, name := range fk.Columns {
		if owner[name] != fkIndex {
			continue
		}
		col, ok := table.Column(name)
		if !ok {
			continue
		}
		cols = append(cols, *col)
		if table.IsPrimaryKey(name) {
			isPrimary = true
		}
	}

	name := b.namer.ForeignKeyFieldName(scope, cols[0].Name, fk.ReferredTable.Name)
	field := Field{
		Name:        name,
		Label:       b.namer.Label(name),
		Description: cols[0].Comment,
		IsPrimary:   isPrimary,
	}
	if len(cols) == 1 {
		field.Detail = Simple{Column: cols[0]}
	} else {
		field.Detail = Compound{Columns: cols}
	}

	if refID, ok := b.graph.ID(fk.ReferredTable); ok {
		referred := b.graph.Table(refID)
		if len(referred.PrimaryKey) > 0 {
			field.Dropdown = &DropdownInfo{Source: referred.Name, Display: DeriveDisplay(referred)}
		}
	} else {
		b.logger.Debug("foreign key refers to a table outside the schema",
			slog.String("table", table.Name.String()),
			slog.String("referred", fk.ReferredTable.String()),
		)
	}
	return field
}
