package naming

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"first_name", "First Name"},
		{"film_actor", "Film Actor"},
		{"title", "Title"},
		{"__weird__name", "Weird Name"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Label(tt.input))
		})
	}
}

func TestPluralAndSingularLabels(t *testing.T) {
	namer := New(Config{Labels: map[string]string{"film_actor": "Cast"}}, nil)

	assert.Equal(t, "Api Keys", namer.PluralLabel("api_key"))
	assert.Equal(t, "Categories", namer.PluralLabel("category"))
	assert.Equal(t, "User", namer.SingularLabel("users"))
	assert.Equal(t, "Cast", namer.PluralLabel("film_actor"))
	assert.Equal(t, "Cast", namer.Label("film_actor"))
}

func TestPluralize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"user", "users"},
		{"category", "categories"},
		{"person", "people"},
		{"child", "children"},
		{"status", "statuses"},
		{"analysis", "analyses"},
		{"orderItem", "orderItems"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := namer.Pluralize(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSingularize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"users", "user"},
		{"categories", "category"},
		{"people", "person"},
		{"children", "child"},
		{"statuses", "status"},
		{"analyses", "analysis"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := namer.Singularize(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPluralizeWithOverrides(t *testing.T) {
	cfg := Config{
		PluralOverrides: map[string]string{
			"staff": "staff", // Same singular/plural
		},
		SingularOverrides: make(map[string]string),
	}
	namer := New(cfg, nil)

	assert.Equal(t, "staff", namer.Pluralize("staff"))
	assert.Equal(t, "users", namer.Pluralize("user")) // Falls back to library
}

func TestSingularizeWithOverrides(t *testing.T) {
	cfg := Config{
		PluralOverrides: make(map[string]string),
		SingularOverrides: map[string]string{
			"data": "datum",
		},
	}
	namer := New(cfg, nil)

	assert.Equal(t, "datum", namer.Singularize("data"))
	assert.Equal(t, "user", namer.Singularize("users")) // Falls back to library
}

func TestStripKeySuffix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"author_id", "author"},
		{"original_language_id", "original_language"},
		{"owner_FK", "owner"},
		{"_id", "_id"},
		{"name", "name"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripKeySuffix(tt.input))
		})
	}
}

func TestForeignKeyFieldName_FallsBackToColumn(t *testing.T) {
	namer := Default()

	assert.Equal(t, "language", namer.ForeignKeyFieldName("film", "language_id", "language"))
	assert.Equal(t, "original_language", namer.ForeignKeyFieldName("film", "original_language_id", "language"))
	// Scopes are independent.
	assert.Equal(t, "language", namer.ForeignKeyFieldName("film_list", "language_id", "language"))
}

func TestCollision_ColumnToForeignKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	assert.Equal(t, "owner", namer.ColumnFieldName("pet", "owner"))
	assert.Equal(t, "users", namer.ForeignKeyFieldName("pet", "owner_id", "users"))
	assert.Equal(t, "owner2", namer.ForeignKeyFieldName("pet", "owner_id", "users"))

	assert.Contains(t, buf.String(), "naming collision detected")
}

func TestIndirectTabName(t *testing.T) {
	namer := Default()

	assert.Equal(t, "review", namer.IndirectTabName("review", "user_review", false))
	assert.Equal(t, "review (via user_review)", namer.IndirectTabName("review", "user_review", true))
}

func TestReset(t *testing.T) {
	namer := Default()

	namer.ColumnFieldName("users", "email")
	namer.Reset()

	assert.Equal(t, "email", namer.ColumnFieldName("users", "email"))
}
