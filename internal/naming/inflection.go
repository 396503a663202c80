package naming

import (
	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of a table name, e.g. "category" -> "categories".
func (n *Namer) Pluralize(word string) string {
	return inflect(n.config.PluralOverrides, word, inflection.Plural)
}

// Singularize returns the singular of a table name, e.g. "users" -> "user".
func (n *Namer) Singularize(word string) string {
	return inflect(n.config.SingularOverrides, word, inflection.Singular)
}

// inflect prefers a configured override over the inflection rules.
func inflect(overrides map[string]string, word string, rule func(string) string) string {
	if override, ok := overrides[word]; ok {
		return override
	}
	return rule(word)
}
