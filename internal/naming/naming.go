package naming

import (
	"log/slog"
	"strings"
)

// Namer provides the name transformations used when building windows.
// A Namer is not safe for concurrent use; build one per schema.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// Label converts a snake_case name to a display label.
// Example: "first_name" -> "First Name"
func (n *Namer) Label(name string) string {
	if label, ok := n.config.Labels[name]; ok {
		return label
	}
	return toTitleWords(name)
}

// PluralLabel labels a table as a collection.
// Example: "api_key" -> "Api Keys"
func (n *Namer) PluralLabel(table string) string {
	if label, ok := n.config.Labels[table]; ok {
		return label
	}
	return toTitleWords(n.Pluralize(table))
}

// SingularLabel labels one record of a table.
// Example: "users" -> "User"
func (n *Namer) SingularLabel(table string) string {
	if label, ok := n.config.Labels[table]; ok {
		return label
	}
	return toTitleWords(n.Singularize(table))
}

// ForeignKeyFieldName returns the name of the field that merges a foreign key's columns.
// The field is named after the referred table; when that name is already taken within
// the tab, the first local column with common FK suffixes stripped is used instead.
// Example: ("film", "original_language_id", "language") -> "original_language"
func (n *Namer) ForeignKeyFieldName(tab, fkColumn, referredTable string) string {
	if !n.resolver.Exists(tab, referredTable) {
		return n.resolver.Register(tab, referredTable, "fk:"+fkColumn)
	}
	return n.resolver.Register(tab, StripKeySuffix(fkColumn), "fk:"+fkColumn)
}

// ColumnFieldName registers a plain column field name within a tab.
func (n *Namer) ColumnFieldName(tab, column string) string {
	return n.resolver.Register(tab, column, "column:"+column)
}

// IndirectTabName names an indirect tab. When the same table is reachable through
// more than one linker the linker is appended.
// Example: ("review", "user_review", true) -> "review (via user_review)"
func (n *Namer) IndirectTabName(table, linker string, ambiguous bool) string {
	if !ambiguous {
		return table
	}
	return table + " (via " + linker + ")"
}

// StripKeySuffix removes common foreign key suffixes from a column name.
// Example: "author_id" -> "author"
func StripKeySuffix(column string) string {
	lower := strings.ToLower(column)
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(lower, suffix) && len(column) > len(suffix) {
			return column[:len(column)-len(suffix)]
		}
	}
	return column
}

// toTitleWords converts snake_case to space separated title case
func toTitleWords(s string) string {
	parts := strings.Split(s, "_")
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		words = append(words, strings.ToUpper(part[:1])+part[1:])
	}
	return strings.Join(words, " ")
}
