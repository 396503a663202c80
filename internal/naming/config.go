// Package naming derives display labels and field names from SQL table and
// column names, including pluralization and collision handling.
package naming

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// Labels maps a table or column name to a fixed display label.
	// Example: {"film_actor": "Cast", "rental_rate": "Rate"}
	Labels map[string]string `mapstructure:"labels"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
		Labels:            make(map[string]string),
	}
}
