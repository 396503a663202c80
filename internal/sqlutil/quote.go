// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a PostgreSQL identifier (table name, column name, alias)
// with double quotes and escapes any double quotes within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// QuoteQualified quotes a dotted path such as schema.table, quoting each part.
// Empty parts are skipped so an unqualified name renders as a single identifier.
func QuoteQualified(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		quoted = append(quoted, QuoteIdentifier(part))
	}
	return strings.Join(quoted, ".")
}
