// Package relation classifies how tables relate to each other through their foreign keys.
// Tables live in an arena addressed by TableID, with an adjacency index from each
// table to the tables whose foreign keys refer to its primary key.
package relation

import (
	"sort"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
)

// Kind is the relationship of one table relative to another.
type Kind int

const (
	// Unrelated indicates no classified relationship.
	Unrelated Kind = iota
	// OneOne is an owned table whose identity is a reference to the other table.
	OneOne
	// HasOne is a plain outward foreign key lookup.
	HasOne
	// HasMany is a table referring to the other table without being owned or a linker.
	HasMany
	// Linker is a pure many-to-many bridge referring to the other table.
	Linker
)

// String returns a human-readable representation of the relationship kind.
func (k Kind) String() string {
	switch k {
	case Unrelated:
		return "Unrelated"
	case OneOne:
		return "OneOne"
	case HasOne:
		return "HasOne"
	case HasMany:
		return "HasMany"
	case Linker:
		return "Linker"
	default:
		return "Unknown"
	}
}

// TableID addresses a table in a Graph.
type TableID int

// Indirect pairs a table reached through a linker with that linker.
type Indirect struct {
	Table  TableID
	Linker TableID
}

// Graph is an immutable classification index over a set of tables.
type Graph struct {
	tables    []*introspection.Table
	byName    map[introspection.TableName]TableID
	refersTo  [][]TableID // a -> distinct b with RefersTo(a, b), in FK declaration order
	referrers [][]TableID // b -> distinct a with RefersTo(a, b), ascending id
	owned     []bool
	linker    []bool
}

// NewGraph indexes the tables. The slice must not be modified while the graph is in use.
func NewGraph(tables []introspection.Table) *Graph {
	g := &Graph{
		tables:    make([]*introspection.Table, len(tables)),
		byName:    make(map[introspection.TableName]TableID, len(tables)),
		refersTo:  make([][]TableID, len(tables)),
		referrers: make([][]TableID, len(tables)),
		owned:     make([]bool, len(tables)),
		linker:    make([]bool, len(tables)),
	}
	for i := range tables {
		g.tables[i] = &tables[i]
		g.byName[tables[i].Name] = TableID(i)
	}

	for i, table := range g.tables {
		a := TableID(i)
		g.owned[i] = isOwned(table)
		g.linker[i] = isLinker(table)
		for _, fk := range table.ForeignKeys {
			b, ok := g.ID(fk.ReferredTable)
			if !ok || !sameColumns(fk.ReferredColumns, g.tables[b].PrimaryKey) {
				continue
			}
			if !containsID(g.refersTo[a], b) {
				g.refersTo[a] = append(g.refersTo[a], b)
			}
			if !containsID(g.referrers[b], a) {
				g.referrers[b] = append(g.referrers[b], a)
			}
		}
	}
	for i := range g.referrers {
		ids := g.referrers[i]
		sort.Slice(ids, func(x, y int) bool { return ids[x] < ids[y] })
	}
	return g
}

// FromSchema indexes every table of an introspected schema.
func FromSchema(schema *introspection.Schema) *Graph {
	if schema == nil {
		return NewGraph(nil)
	}
	return NewGraph(schema.Tables)
}

// Len returns the number of tables in the graph.
func (g *Graph) Len() int {
	return len(g.tables)
}

// Table returns the table behind id.
func (g *Graph) Table(id TableID) *introspection.Table {
	return g.tables[id]
}

// ID resolves a table name. An unqualified name matches the first table with that name.
func (g *Graph) ID(name introspection.TableName) (TableID, bool) {
	if id, ok := g.byName[name]; ok {
		return id, true
	}
	for i, table := range g.tables {
		if table.Name.Matches(name) {
			return TableID(i), true
		}
	}
	return 0, false
}

// IsOwned reports whether the table's primary key lies entirely within one of its foreign keys.
func (g *Graph) IsOwned(id TableID) bool {
	return g.owned[id]
}

// IsLinker reports whether the table is a pure bridge between exactly two other tables.
func (g *Graph) IsLinker(id TableID) bool {
	return g.linker[id]
}

// IsWindow reports whether the table gets its own window.
func (g *Graph) IsWindow(id TableID) bool {
	return !g.linker[id]
}

// RefersTo reports whether a has a foreign key onto b's primary key.
func (g *Graph) RefersTo(a, b TableID) bool {
	return containsID(g.refersTo[a], b)
}

// IsReferredBy reports whether b has a foreign key onto a's primary key.
func (g *Graph) IsReferredBy(a, b TableID) bool {
	return g.RefersTo(b, a)
}

// Referrers returns the tables that refer to id, in ascending id order.
func (g *Graph) Referrers(id TableID) []TableID {
	return append([]TableID(nil), g.referrers[id]...)
}

// OneOneTables returns owned tables whose identity is a reference to s.
func (g *Graph) OneOneTables(s TableID) []TableID {
	var out []TableID
	for _, t := range g.referrers[s] {
		if t != s && g.owned[t] {
			out = append(out, t)
		}
	}
	return out
}

// HasOneTables returns the non-owned tables s points to.
func (g *Graph) HasOneTables(s TableID) []TableID {
	var out []TableID
	for _, t := range g.refersTo[s] {
		if !g.owned[t] {
			out = append(out, t)
		}
	}
	return out
}

// HasManyTables returns tables referring to s that are neither owned nor linkers.
func (g *Graph) HasManyTables(s TableID) []TableID {
	var out []TableID
	for _, t := range g.referrers[s] {
		if !g.owned[t] && !g.linker[t] {
			out = append(out, t)
		}
	}
	return out
}

// IndirectTables returns the far side of every linker referring to s.
func (g *Graph) IndirectTables(s TableID) []Indirect {
	var out []Indirect
	for _, l := range g.referrers[s] {
		if !g.linker[l] {
			continue
		}
		targets := g.HasOneTables(l)
		if len(targets) != 2 {
			continue
		}
		for _, t := range targets {
			if t != s {
				out = append(out, Indirect{Table: t, Linker: l})
			}
		}
	}
	return out
}

// Kind classifies t relative to s.
func (g *Graph) Kind(s, t TableID) Kind {
	switch {
	case g.RefersTo(t, s) && g.linker[t]:
		return Linker
	case g.RefersTo(t, s) && g.owned[t]:
		return OneOne
	case g.RefersTo(s, t) && !g.owned[t]:
		return HasOne
	case g.RefersTo(t, s):
		return HasMany
	default:
		return Unrelated
	}
}

// WindowTables returns every table that gets its own window, in arena order.
func (g *Graph) WindowTables() []TableID {
	var out []TableID
	for i := range g.tables {
		if !g.linker[i] {
			out = append(out, TableID(i))
		}
	}
	return out
}

// ForeignKeyTo returns the first key of from whose referred columns are to's primary key.
func (g *Graph) ForeignKeyTo(from, to TableID) (introspection.ForeignKey, bool) {
	target := g.tables[to]
	for _, fk := range g.tables[from].ForeignKeys {
		if fk.ReferredTable.Matches(target.Name) && sameColumns(fk.ReferredColumns, target.PrimaryKey) {
			return fk, true
		}
	}
	return introspection.ForeignKey{}, false
}

func isOwned(table *introspection.Table) bool {
	if len(table.PrimaryKey) == 0 {
		return false
	}
	for _, fk := range table.ForeignKeys {
		if subset(table.PrimaryKey, fk.Columns) {
			return true
		}
	}
	return false
}

// isLinker requires exactly two foreign key constraints to two distinct tables,
// all of whose columns are primary key columns.
func isLinker(table *introspection.Table) bool {
	if len(table.ForeignKeys) != 2 {
		return false
	}
	referred := make(map[introspection.TableName]struct{})
	for _, fk := range table.ForeignKeys {
		referred[fk.ReferredTable] = struct{}{}
		for _, col := range fk.Columns {
			if !table.IsPrimaryKey(col) {
				return false
			}
		}
	}
	return len(referred) == 2
}

// sameColumns compares column vectors positionally.
func sameColumns(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func subset(cols, of []string) bool {
	set := make(map[string]struct{}, len(of))
	for _, c := range of {
		set[c] = struct{}{}
	}
	for _, c := range cols {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

func containsID(ids []TableID, id TableID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
