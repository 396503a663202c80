// Package schemafilter applies allow/deny filters to schema snapshots.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
)

// Config controls allow/deny filters for tables and columns.
// Table patterns are matched against both "schema.table" and the bare table name.
type Config struct {
	AllowTables      []string            `mapstructure:"allow_tables"`
	DenyTables       []string            `mapstructure:"deny_tables"`
	ScanViewsEnabled bool                `mapstructure:"scan_views_enabled"`
	AllowColumns     map[string][]string `mapstructure:"allow_columns"`
	DenyColumns      map[string][]string `mapstructure:"deny_columns"`
	// DenyMutationTables and DenyMutationColumns apply additional restrictions to writes.
	// They do not affect window visibility and are evaluated when a changeset is saved.
	DenyMutationTables  []string            `mapstructure:"deny_mutation_tables"`
	DenyMutationColumns map[string][]string `mapstructure:"deny_mutation_columns"`
}

// Apply filters tables, columns, primary keys and foreign keys in place.
// Missing allow lists default to allow-all; deny rules always win.
func Apply(schema *introspection.Schema, cfg Config) {
	if schema == nil {
		return
	}

	filteredTables := make([]introspection.Table, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		if table.IsView && !cfg.ScanViewsEnabled {
			continue
		}
		if !tableAllowed(table.Name, cfg.AllowTables, cfg.DenyTables) {
			continue
		}
		filteredColumns := make([]introspection.Column, 0, len(table.Columns))
		for _, column := range table.Columns {
			if !columnAllowed(table.Name, column.Name, cfg.AllowColumns, cfg.DenyColumns) {
				continue
			}
			filteredColumns = append(filteredColumns, column)
		}
		if len(filteredColumns) == 0 {
			continue
		}
		table.Columns = filteredColumns
		filteredTables = append(filteredTables, table)
	}

	if len(filteredTables) == 0 {
		schema.Tables = nil
		return
	}

	for i := range filteredTables {
		table := &filteredTables[i]
		// A partially hidden key no longer identifies a row.
		if !allColumns(table, table.PrimaryKey) {
			table.PrimaryKey = nil
		}
		table.ForeignKeys = filterForeignKeys(table, filteredTables)
	}
	schema.Tables = filteredTables
}

func tableAllowed(table introspection.TableName, allow, deny []string) bool {
	if matchesTable(table, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesTable(table, allow)
}

func matchesTable(table introspection.TableName, patterns []string) bool {
	return matchesAny(table.Name, patterns) || (table.Schema != "" && matchesAny(table.String(), patterns))
}

func columnAllowed(table introspection.TableName, column string, allow, deny map[string][]string) bool {
	denyPatterns := mergePatterns(deny, table)
	if matchesAny(column, denyPatterns) {
		return false
	}
	allowPatterns := mergePatterns(allow, table)
	if len(allowPatterns) == 0 {
		return true
	}
	return matchesAny(column, allowPatterns)
}

func mergePatterns(patterns map[string][]string, table introspection.TableName) []string {
	if patterns == nil {
		return nil
	}
	combined := append([]string{}, patterns["*"]...)
	combined = append(combined, patterns[table.Name]...)
	if table.Schema != "" {
		combined = append(combined, patterns[table.String()]...)
	}
	return slices.Compact(combined)
}

func filterForeignKeys(table *introspection.Table, tables []introspection.Table) []introspection.ForeignKey {
	filtered := make([]introspection.ForeignKey, 0, len(table.ForeignKeys))
	for _, fk := range table.ForeignKeys {
		if !allColumns(table, fk.Columns) {
			continue
		}
		remote := findTable(tables, fk.ReferredTable)
		if remote == nil || !allColumns(remote, fk.ReferredColumns) {
			continue
		}
		filtered = append(filtered, fk)
	}
	return filtered
}

func findTable(tables []introspection.Table, name introspection.TableName) *introspection.Table {
	for i := range tables {
		if tables[i].Name.Matches(name) {
			return &tables[i]
		}
	}
	return nil
}

func allColumns(table *introspection.Table, columns []string) bool {
	for _, col := range columns {
		if !table.HasColumn(col) {
			return false
		}
	}
	return true
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		// matching should be case-insensitive
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// MutationTableAllowed reports whether a table accepts changesets.
// It only applies deny lists and keeps matching logic consistent with visibility filters.
func MutationTableAllowed(table introspection.TableName, cfg Config) bool {
	return !matchesTable(table, cfg.DenyMutationTables)
}

// MutationColumnAllowed reports whether a column may be written by a changeset.
func MutationColumnAllowed(table introspection.TableName, column string, cfg Config) bool {
	denyPatterns := mergePatterns(cfg.DenyMutationColumns, table)
	return !matchesAny(column, denyPatterns)
}
