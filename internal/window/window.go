// Package window turns classified table metadata into navigable windows: a main tab
// for the table itself plus one-one, has-many and indirect tabs for related tables.
package window

import (
	"github.com/ivanceras/diwata-sub000/internal/introspection"
)

// Window is the editable view of one non-linker table.
type Window struct {
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	Group        string                  `json:"group"`
	Table        introspection.TableName `json:"table"`
	MainTab      Tab                     `json:"main_tab"`
	OneOneTabs   []Tab                   `json:"one_one_tabs"`
	HasManyTabs  []Tab                   `json:"has_many_tabs"`
	IndirectTabs []IndirectTab           `json:"indirect_tabs"`
}

// IndirectTab is a tab reached through a linker table.
type IndirectTab struct {
	Linker introspection.TableName `json:"linker"`
	Tab    Tab                     `json:"tab"`
}

// Tab is a table's field projection.
type Tab struct {
	Name        string                  `json:"name"`
	Label       string                  `json:"label"`
	Description string                  `json:"description,omitempty"`
	Table       introspection.TableName `json:"table"`
	Fields      []Field                 `json:"fields"`
	IsView      bool                    `json:"is_view"`
	Display     *IdentifierDisplay      `json:"display,omitempty"`
}

// Field is one displayed value of a tab: a plain column or a foreign key's columns merged.
type Field struct {
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Description string        `json:"description,omitempty"`
	IsPrimary   bool          `json:"is_primary"`
	Detail      ColumnDetail  `json:"column_detail"`
	Dropdown    *DropdownInfo `json:"dropdown,omitempty"`
}

// ColumnDetail is either Simple or Compound.
type ColumnDetail interface {
	isColumnDetail()
}

// Simple is a field backed by exactly one column.
type Simple struct {
	Column introspection.Column `json:"simple"`
}

// Compound is a field backed by a multi-column foreign key.
type Compound struct {
	Columns []introspection.Column `json:"compound"`
}

func (Simple) isColumnDetail()   {}
func (Compound) isColumnDetail() {}

// DropdownInfo describes where a foreign key field looks up its choices.
type DropdownInfo struct {
	Source  introspection.TableName `json:"source"`
	Display IdentifierDisplay       `json:"display"`
}

// IdentifierDisplay names the columns that label a record of a table.
type IdentifierDisplay struct {
	Columns   []string `json:"columns"`
	Separator string   `json:"separator,omitempty"`
	PK        []string `json:"pk"`
}

// GroupedWindow lists window names under one group.
type GroupedWindow struct {
	Group       string   `json:"group"`
	WindowNames []string `json:"window_names"`
}

// Columns returns the columns behind the field.
func (f Field) Columns() []introspection.Column {
	switch d := f.Detail.(type) {
	case Simple:
		return []introspection.Column{d.Column}
	case Compound:
		return d.Columns
	default:
		return nil
	}
}

// ColumnNames returns the names of the columns behind the field.
func (f Field) ColumnNames() []string {
	cols := f.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns every column of the tab in field order.
func (t Tab) Columns() []introspection.Column {
	var out []introspection.Column
	for _, f := range t.Fields {
		out = append(out, f.Columns()...)
	}
	return out
}

// Column returns the tab column with the given name.
func (t Tab) Column(name string) (introspection.Column, bool) {
	for _, f := range t.Fields {
		for _, c := range f.Columns() {
			if c.Name == name {
				return c, true
			}
		}
	}
	return introspection.Column{}, false
}

// FieldForColumn returns the field that contains the named column.
func (t Tab) FieldForColumn(name string) (Field, bool) {
	for _, f := range t.Fields {
		for _, c := range f.Columns() {
			if c.Name == name {
				return f, true
			}
		}
	}
	return Field{}, false
}

// DropdownFields returns the fields that look up their values in another table.
func (t Tab) DropdownFields() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.Dropdown != nil {
			out = append(out, f)
		}
	}
	return out
}

// Tabs returns the main tab followed by every related tab.
func (w *Window) Tabs() []Tab {
	tabs := make([]Tab, 0, 1+len(w.OneOneTabs)+len(w.HasManyTabs)+len(w.IndirectTabs))
	tabs = append(tabs, w.MainTab)
	tabs = append(tabs, w.OneOneTabs...)
	tabs = append(tabs, w.HasManyTabs...)
	for _, it := range w.IndirectTabs {
		tabs = append(tabs, it.Tab)
	}
	return tabs
}

// HasManyTab returns the has-many tab for a table.
func (w *Window) HasManyTab(table introspection.TableName) (Tab, bool) {
	for _, tab := range w.HasManyTabs {
		if tab.Table.Matches(table) {
			return tab, true
		}
	}
	return Tab{}, false
}

// IndirectTabVia returns the indirect tab for a table reached through linker.
// A zero linker matches the first tab for the table.
func (w *Window) IndirectTabVia(table, linker introspection.TableName) (IndirectTab, bool) {
	for _, it := range w.IndirectTabs {
		if !it.Tab.Table.Matches(table) {
			continue
		}
		if linker.Name == "" || it.Linker.Matches(linker) {
			return it, true
		}
	}
	return IndirectTab{}, false
}

// Find returns the window whose main table matches name.
func Find(windows []Window, name introspection.TableName) (*Window, bool) {
	for i := range windows {
		if windows[i].Table.Matches(name) {
			return &windows[i], true
		}
	}
	return nil, false
}

// Group collects window names per group in first-seen order.
func Group(windows []Window) []GroupedWindow {
	var groups []GroupedWindow
	index := make(map[string]int)
	for _, w := range windows {
		i, ok := index[w.Group]
		if !ok {
			i = len(groups)
			index[w.Group] = i
			groups = append(groups, GroupedWindow{Group: w.Group})
		}
		groups[i].WindowNames = append(groups[i].WindowNames, w.Name)
	}
	return groups
}
