package window

import (
	"strings"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
)

const nameSeparator = ", "

// DeriveDisplay picks the columns that best label a record of table.
// The first matching rule wins:
//  1. a column named name, title, the table name or <table>_name
//  2. username or email for a user/users table
//  3. the only non-primary-key column
//  4. last_name and first_name, joined with ", "
//
// Otherwise no display column is chosen and records are shown by primary key.
func DeriveDisplay(table *introspection.Table) IdentifierDisplay {
	display := IdentifierDisplay{PK: append([]string(nil), table.PrimaryKey...)}
	name := table.Name.Name

	for _, candidate := range []string{"name", "title", name, name + "_name"} {
		if table.HasColumn(candidate) {
			display.Columns = []string{candidate}
			return display
		}
	}

	if name == "user" || name == "users" {
		for _, candidate := range []string{"username", "email"} {
			if table.HasColumn(candidate) {
				display.Columns = []string{candidate}
				return display
			}
		}
	}

	if rest := table.NonPrimaryKeyColumns(); len(rest) == 1 {
		display.Columns = []string{rest[0].Name}
		return display
	}

	for _, pair := range [][2]string{{"first_name", "last_name"}, {"firstname", "lastname"}} {
		if table.HasColumn(pair[0]) && table.HasColumn(pair[1]) {
			display.Columns = []string{pair[1], pair[0]}
			display.Separator = nameSeparator
			return display
		}
	}

	return display
}

// Label joins the display values of one record.
func (d IdentifierDisplay) Label(values []string) string {
	sep := d.Separator
	if sep == "" {
		sep = " "
	}
	return strings.Join(values, sep)
}
