// Package fixture provides in-memory table metadata for tests.
// Sakila mirrors the PostgreSQL port of the DVD rental sample database;
// Bazaar is a small marketplace schema with users, products and reviews.
package fixture

import (
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

// Schema is the schema every fixture table lives in.
const Schema = "public"

// Name returns a table name in the fixture schema.
func Name(table string) introspection.TableName {
	return introspection.TableName{Schema: Schema, Name: table}
}

// Col builds a not-null column without default.
func Col(name, dataType string) introspection.Column {
	return introspection.Column{Name: name, DataType: dataType, Type: sqltype.Map(dataType)}
}

// Nullable builds a nullable column.
func Nullable(name, dataType string) introspection.Column {
	c := Col(name, dataType)
	c.IsNullable = true
	return c
}

// Defaulted builds a not-null column with a database default.
func Defaulted(name, dataType, expr string) introspection.Column {
	c := Col(name, dataType)
	c.HasDefault = true
	c.ColumnDefault = expr
	return c
}

// Serial builds an integer key filled from a sequence.
func Serial(name, table string) introspection.Column {
	return Defaulted(name, "integer", "nextval('"+table+"_"+name+"_seq'::regclass)")
}

// FK builds a single-column foreign key onto a same-named column.
func FK(table, column, referred string) introspection.ForeignKey {
	return FKTo(table, column, referred, column)
}

// FKTo builds a single-column foreign key onto referredColumn.
func FKTo(table, column, referred, referredColumn string) introspection.ForeignKey {
	return introspection.ForeignKey{
		ConstraintName:  table + "_" + column + "_fkey",
		Columns:         []string{column},
		ReferredTable:   Name(referred),
		ReferredColumns: []string{referredColumn},
	}
}

// Sakila returns actor, category, film, film_actor, film_category, inventory and language.
func Sakila() []introspection.Table {
	lastUpdate := Defaulted("last_update", "timestamp without time zone", "now()")
	return []introspection.Table{
		{
			Name:       Name("actor"),
			Columns:    []introspection.Column{Serial("actor_id", "actor"), Col("first_name", "character varying(45)"), Col("last_name", "character varying(45)"), lastUpdate},
			PrimaryKey: []string{"actor_id"},
		},
		{
			Name:       Name("category"),
			Columns:    []introspection.Column{Serial("category_id", "category"), Col("name", "character varying(25)"), lastUpdate},
			PrimaryKey: []string{"category_id"},
		},
		{
			Name: Name("film"),
			Columns: []introspection.Column{
				Serial("film_id", "film"),
				Col("title", "character varying(255)"),
				Nullable("description", "text"),
				Nullable("release_year", "integer"),
				Col("language_id", "smallint"),
				Nullable("original_language_id", "smallint"),
				Defaulted("rental_rate", "numeric(4,2)", "4.99"),
				lastUpdate,
			},
			PrimaryKey: []string{"film_id"},
			ForeignKeys: []introspection.ForeignKey{
				FK("film", "language_id", "language"),
				FKTo("film", "original_language_id", "language", "language_id"),
			},
		},
		{
			Name:       Name("film_actor"),
			Columns:    []introspection.Column{Col("actor_id", "smallint"), Col("film_id", "smallint"), lastUpdate},
			PrimaryKey: []string{"actor_id", "film_id"},
			ForeignKeys: []introspection.ForeignKey{
				FK("film_actor", "actor_id", "actor"),
				FK("film_actor", "film_id", "film"),
			},
		},
		{
			Name:       Name("film_category"),
			Columns:    []introspection.Column{Col("film_id", "smallint"), Col("category_id", "smallint"), lastUpdate},
			PrimaryKey: []string{"film_id", "category_id"},
			ForeignKeys: []introspection.ForeignKey{
				FK("film_category", "film_id", "film"),
				FK("film_category", "category_id", "category"),
			},
		},
		{
			Name:        Name("inventory"),
			Columns:     []introspection.Column{Serial("inventory_id", "inventory"), Col("film_id", "smallint"), Col("store_id", "smallint"), lastUpdate},
			PrimaryKey:  []string{"inventory_id"},
			ForeignKeys: []introspection.ForeignKey{FK("inventory", "film_id", "film")},
		},
		{
			Name:       Name("language"),
			Columns:    []introspection.Column{Serial("language_id", "language"), Col("name", "character(20)"), lastUpdate},
			PrimaryKey: []string{"language_id"},
		},
	}
}

// Bazaar returns a marketplace schema: users with api keys, settings, profile info,
// products (with an owned availability table) and reviews linked to users and products.
func Bazaar() []introspection.Table {
	uuidKey := func(name string) introspection.Column {
		return Defaulted(name, "uuid", "uuid_generate_v4()")
	}
	return []introspection.Table{
		{
			Name:        Name("api_key"),
			Columns:     []introspection.Column{uuidKey("api_key_id"), Col("api_key", "character varying"), Col("user_id", "uuid")},
			PrimaryKey:  []string{"api_key_id"},
			ForeignKeys: []introspection.ForeignKey{FK("api_key", "user_id", "users")},
		},
		{
			Name: Name("product"),
			Columns: []introspection.Column{
				uuidKey("product_id"),
				Col("name", "character varying"),
				Nullable("description", "character varying"),
				Nullable("price", "numeric"),
				Col("owner_id", "uuid"),
			},
			PrimaryKey:  []string{"product_id"},
			ForeignKeys: []introspection.ForeignKey{FKTo("product", "owner_id", "users", "user_id")},
		},
		{
			Name:        Name("product_availability"),
			Columns:     []introspection.Column{Col("product_id", "uuid"), Nullable("available", "boolean"), Nullable("stocks", "numeric")},
			PrimaryKey:  []string{"product_id"},
			ForeignKeys: []introspection.ForeignKey{FK("product_availability", "product_id", "product")},
		},
		{
			Name:       Name("product_review"),
			Columns:    []introspection.Column{Col("product_id", "uuid"), Col("review_id", "uuid")},
			PrimaryKey: []string{"product_id", "review_id"},
			ForeignKeys: []introspection.ForeignKey{
				FK("product_review", "product_id", "product"),
				FK("product_review", "review_id", "review"),
			},
		},
		{
			Name:        Name("review"),
			Columns:     []introspection.Column{uuidKey("review_id"), Nullable("rating", "integer"), Nullable("comment", "character varying"), Col("user_id", "uuid")},
			PrimaryKey:  []string{"review_id"},
			ForeignKeys: []introspection.ForeignKey{FK("review", "user_id", "users")},
		},
		{
			Name:        Name("settings"),
			Columns:     []introspection.Column{uuidKey("settings_id"), Col("user_id", "uuid"), Nullable("value", "json")},
			PrimaryKey:  []string{"settings_id"},
			ForeignKeys: []introspection.ForeignKey{FK("settings", "user_id", "users")},
		},
		{
			Name: Name("user_info"),
			Columns: []introspection.Column{
				uuidKey("user_info_id"),
				Col("user_id", "uuid"),
				Nullable("first_name", "character varying"),
				Nullable("last_name", "character varying"),
				Nullable("address", "character varying"),
			},
			PrimaryKey:  []string{"user_info_id"},
			ForeignKeys: []introspection.ForeignKey{FK("user_info", "user_id", "users")},
		},
		{
			Name:       Name("user_review"),
			Columns:    []introspection.Column{Col("user_id", "uuid"), Col("review_id", "uuid")},
			PrimaryKey: []string{"user_id", "review_id"},
			ForeignKeys: []introspection.ForeignKey{
				FK("user_review", "user_id", "users"),
				FK("user_review", "review_id", "review"),
			},
		},
		{
			Name:       Name("users"),
			Columns:    []introspection.Column{uuidKey("user_id"), Col("username", "character varying"), Col("email", "character varying"), Col("password", "character varying")},
			PrimaryKey: []string{"user_id"},
		},
	}
}
