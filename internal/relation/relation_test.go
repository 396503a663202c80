package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/testutil/fixture"
)

func names(g *Graph, ids []TableID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Table(id).Name.Name)
	}
	return out
}

func mustID(t *testing.T, g *Graph, name string) TableID {
	t.Helper()
	id, ok := g.ID(fixture.Name(name))
	require.True(t, ok, "table %s not found", name)
	return id
}

func TestOwnedTable(t *testing.T) {
	g := NewGraph(fixture.Bazaar())
	availability := mustID(t, g, "product_availability")
	product := mustID(t, g, "product")

	assert.True(t, g.IsOwned(availability))
	assert.False(t, g.IsOwned(product))
	assert.Equal(t, []string{"product_availability"}, names(g, g.OneOneTables(product)))
	assert.Equal(t, OneOne, g.Kind(product, availability))
	assert.NotContains(t, names(g, g.HasManyTables(product)), "product_availability")
}

func TestLinkerTable(t *testing.T) {
	g := NewGraph(fixture.Bazaar())
	userReview := mustID(t, g, "user_review")

	assert.True(t, g.IsLinker(userReview))
	assert.False(t, g.IsWindow(userReview))
	assert.Equal(t, Linker, g.Kind(mustID(t, g, "users"), userReview))
	assert.NotContains(t, names(g, g.WindowTables()), "user_review")
	assert.NotContains(t, names(g, g.WindowTables()), "product_review")
}

func TestUsersRelations(t *testing.T) {
	g := NewGraph(fixture.Bazaar())
	users := mustID(t, g, "users")

	assert.Equal(t, []string{"api_key", "product", "review", "settings", "user_info"}, names(g, g.HasManyTables(users)))
	assert.Empty(t, g.OneOneTables(users))
	assert.Empty(t, g.HasOneTables(users))

	indirect := g.IndirectTables(users)
	require.Len(t, indirect, 1)
	assert.Equal(t, "review", g.Table(indirect[0].Table).Name.Name)
	assert.Equal(t, "user_review", g.Table(indirect[0].Linker).Name.Name)
}

func TestReviewReachesBothSides(t *testing.T) {
	g := NewGraph(fixture.Bazaar())
	review := mustID(t, g, "review")

	var far []string
	for _, ind := range g.IndirectTables(review) {
		far = append(far, g.Table(ind.Table).Name.Name+" via "+g.Table(ind.Linker).Name.Name)
	}
	assert.Equal(t, []string{"product via product_review", "users via user_review"}, far)
	assert.Equal(t, []string{"users"}, names(g, g.HasOneTables(review)))
	assert.Equal(t, HasOne, g.Kind(review, mustID(t, g, "users")))
}

func TestRefersToComparesOrderedPrimaryKey(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:       fixture.Name("account"),
			Columns:    []introspection.Column{fixture.Col("tenant_id", "int"), fixture.Col("id", "int")},
			PrimaryKey: []string{"tenant_id", "id"},
		},
		{
			Name:       fixture.Name("ordered"),
			Columns:    []introspection.Column{fixture.Col("order_id", "int"), fixture.Col("tenant_id", "int"), fixture.Col("account_id", "int")},
			PrimaryKey: []string{"order_id"},
			ForeignKeys: []introspection.ForeignKey{{
				ConstraintName:  "ordered_account_fkey",
				Columns:         []string{"tenant_id", "account_id"},
				ReferredTable:   fixture.Name("account"),
				ReferredColumns: []string{"tenant_id", "id"},
			}},
		},
		{
			Name:       fixture.Name("swapped"),
			Columns:    []introspection.Column{fixture.Col("swapped_id", "int"), fixture.Col("tenant_id", "int"), fixture.Col("account_id", "int")},
			PrimaryKey: []string{"swapped_id"},
			ForeignKeys: []introspection.ForeignKey{{
				ConstraintName:  "swapped_account_fkey",
				Columns:         []string{"account_id", "tenant_id"},
				ReferredTable:   fixture.Name("account"),
				ReferredColumns: []string{"id", "tenant_id"},
			}},
		},
	}
	g := NewGraph(tables)
	account := mustID(t, g, "account")

	assert.True(t, g.RefersTo(mustID(t, g, "ordered"), account))
	assert.True(t, g.IsReferredBy(account, mustID(t, g, "ordered")))
	assert.False(t, g.RefersTo(mustID(t, g, "swapped"), account))
	assert.Equal(t, []string{"ordered"}, names(g, g.HasManyTables(account)))
}

func TestTernaryAssociationIsNotALinker(t *testing.T) {
	tables := append(fixture.Sakila(), introspection.Table{
		Name:       fixture.Name("casting"),
		Columns:    []introspection.Column{fixture.Col("actor_id", "int"), fixture.Col("film_id", "int"), fixture.Col("category_id", "int")},
		PrimaryKey: []string{"actor_id", "film_id", "category_id"},
		ForeignKeys: []introspection.ForeignKey{
			fixture.FK("casting", "actor_id", "actor"),
			fixture.FK("casting", "film_id", "film"),
			fixture.FK("casting", "category_id", "category"),
		},
	})
	g := NewGraph(tables)
	casting := mustID(t, g, "casting")
	film := mustID(t, g, "film")

	assert.False(t, g.IsLinker(casting))
	assert.True(t, g.IsWindow(casting))
	assert.Contains(t, names(g, g.HasManyTables(film)), "casting")
}

func TestExtraConstraintToSameTableIsNotALinker(t *testing.T) {
	tables := []introspection.Table{
		{Name: fixture.Name("person"), Columns: []introspection.Column{fixture.Col("person_id", "int")}, PrimaryKey: []string{"person_id"}},
		{Name: fixture.Name("team"), Columns: []introspection.Column{fixture.Col("team_id", "int")}, PrimaryKey: []string{"team_id"}},
		{
			Name:       fixture.Name("pairing"),
			Columns:    []introspection.Column{fixture.Col("person_id", "int"), fixture.Col("mentor_id", "int"), fixture.Col("team_id", "int")},
			PrimaryKey: []string{"person_id", "mentor_id", "team_id"},
			ForeignKeys: []introspection.ForeignKey{
				fixture.FK("pairing", "person_id", "person"),
				fixture.FKTo("pairing", "mentor_id", "person", "person_id"),
				fixture.FK("pairing", "team_id", "team"),
			},
		},
	}
	g := NewGraph(tables)
	pairing := mustID(t, g, "pairing")
	team := mustID(t, g, "team")
	person := mustID(t, g, "person")

	assert.False(t, g.IsLinker(pairing))
	assert.True(t, g.IsWindow(pairing))
	assert.Empty(t, g.IndirectTables(team))
	assert.Empty(t, g.IndirectTables(person))
	assert.Equal(t, []string{"pairing"}, names(g, g.HasManyTables(team)))
	assert.Equal(t, []string{"pairing"}, names(g, g.HasManyTables(person)))
}

func TestSakilaFilm(t *testing.T) {
	g := NewGraph(fixture.Sakila())
	film := mustID(t, g, "film")
	language := mustID(t, g, "language")

	assert.Equal(t, []string{"language"}, names(g, g.HasOneTables(film)))
	assert.Equal(t, []string{"inventory"}, names(g, g.HasManyTables(film)))
	assert.Equal(t, []string{"film"}, names(g, g.HasManyTables(language)))
	assert.Equal(t, []TableID{film}, g.Referrers(language))

	var far []string
	for _, ind := range g.IndirectTables(film) {
		far = append(far, g.Table(ind.Table).Name.Name)
	}
	assert.Equal(t, []string{"actor", "category"}, far)

	fk, ok := g.ForeignKeyTo(mustID(t, g, "film_actor"), mustID(t, g, "actor"))
	require.True(t, ok)
	assert.Equal(t, []string{"actor_id"}, fk.Columns)
}

func TestTableWithoutPrimaryKeyIsNeverReferred(t *testing.T) {
	tables := []introspection.Table{
		{Name: fixture.Name("log"), Columns: []introspection.Column{fixture.Col("id", "int")}},
		{
			Name:        fixture.Name("entry"),
			Columns:     []introspection.Column{fixture.Col("entry_id", "int"), fixture.Col("log_id", "int")},
			PrimaryKey:  []string{"entry_id"},
			ForeignKeys: []introspection.ForeignKey{fixture.FKTo("entry", "log_id", "log", "id")},
		},
	}
	g := NewGraph(tables)
	log := mustID(t, g, "log")

	assert.False(t, g.IsOwned(log))
	assert.Empty(t, g.HasManyTables(log))
	assert.Equal(t, Unrelated, g.Kind(log, mustID(t, g, "entry")))
}
