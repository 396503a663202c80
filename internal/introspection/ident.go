package introspection

import (
	"strings"

	"github.com/ivanceras/diwata-sub000/internal/sqlutil"
)

// Ident is an SQL identifier taken from introspected metadata.
// It has no exported constructor accepting raw strings, so a user-supplied
// name can only become an Ident after it has been matched against a Table.
type Ident struct {
	parts []string
}

// Ident returns the schema-qualified identifier of the table.
func (n TableName) Ident() Ident {
	if n.Schema == "" {
		return Ident{parts: []string{n.Name}}
	}
	return Ident{parts: []string{n.Schema, n.Name}}
}

// Ident returns the identifier of the column.
func (c Column) Ident() Ident {
	return Ident{parts: []string{c.Name}}
}

// ColumnIdent validates name against the table's columns.
func (t *Table) ColumnIdent(name string) (Ident, bool) {
	col, ok := t.Column(name)
	if !ok {
		return Ident{}, false
	}
	return col.Ident(), true
}

// IdentsOf returns the identifiers of the named columns of t; ok is false if any is unknown.
func (t *Table) IdentsOf(names []string) ([]Ident, bool) {
	out := make([]Ident, 0, len(names))
	for _, name := range names {
		ident, ok := t.ColumnIdent(name)
		if !ok {
			return nil, false
		}
		out = append(out, ident)
	}
	return out, true
}

// Compose joins the unqualified names of validated identifiers with sep,
// producing derived aliases such as "actor_id_actor" or "actor_id.actor.name".
func Compose(sep string, parts ...Ident) Ident {
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Name())
	}
	return Ident{parts: []string{strings.Join(names, sep)}}
}

// Name returns the unqualified, unquoted name.
func (i Ident) Name() string {
	if len(i.parts) == 0 {
		return ""
	}
	return i.parts[len(i.parts)-1]
}

// IsZero reports whether the identifier is unset.
func (i Ident) IsZero() bool {
	return len(i.parts) == 0
}

// SQL renders the quoted, qualified identifier.
func (i Ident) SQL() string {
	return sqlutil.QuoteQualified(i.parts...)
}

// Dot renders child qualified by the unqualified name of i, as in alias."column".
func (i Ident) Dot(child Ident) string {
	return sqlutil.QuoteQualified(i.Name(), child.Name())
}

func (i Ident) String() string {
	return i.SQL()
}
