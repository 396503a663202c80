package introspection

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

func expectFilmSchema(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM pg_class c").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "is_view", "comment"}).
			AddRow("actor", false, "people on screen").
			AddRow("film", false, nil).
			AddRow("film_actor", false, nil).
			AddRow("film_list", true, nil))

	mock.ExpectQuery("FROM pg_attribute a").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "attname", "type", "nullable", "default", "identity", "generated", "comment"}).
			AddRow("actor", "actor_id", "integer", false, "nextval('actor_actor_id_seq'::regclass)", false, false, nil).
			AddRow("actor", "first_name", "character varying(45)", false, nil, false, false, nil).
			AddRow("actor", "last_name", "character varying(45)", false, nil, false, false, " surname ").
			AddRow("film", "film_id", "integer", false, nil, true, false, nil).
			AddRow("film", "title", "text", false, nil, false, false, nil).
			AddRow("film", "rental_rate", "numeric(4,2)", false, "4.99", false, false, nil).
			AddRow("film_actor", "actor_id", "smallint", false, nil, false, false, nil).
			AddRow("film_actor", "film_id", "smallint", false, nil, false, false, nil).
			AddRow("film_list", "title", "text", true, nil, false, false, nil))

	mock.ExpectQuery("contype = 'p'").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "attname"}).
			AddRow("actor", "actor_id").
			AddRow("film", "film_id").
			AddRow("film_actor", "actor_id").
			AddRow("film_actor", "film_id"))

	mock.ExpectQuery("contype = 'f'").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "conname", "nspname", "tgt", "col", "ref", "ord"}).
			AddRow("film_actor", "film_actor_actor_id_fkey", "public", "actor", "actor_id", "actor_id", 1).
			AddRow("film_actor", "film_actor_film_id_fkey", "public", "film", "film_id", "film_id", 1))
}

func TestIntrospectDatabaseContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFilmSchema(mock)

	schema, err := IntrospectDatabaseContext(context.Background(), db, nil)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 4)

	actor := schema.Table(TableName{Schema: "public", Name: "actor"})
	require.NotNil(t, actor)
	assert.Equal(t, "people on screen", actor.Comment)
	assert.Equal(t, []string{"actor_id"}, actor.PrimaryKey)
	require.Len(t, actor.Columns, 3)
	assert.Equal(t, sqltype.TypeInt32, actor.Columns[0].Type)
	assert.True(t, actor.Columns[0].HasGeneratedDefault())
	assert.Equal(t, "surname", actor.Columns[2].Comment)

	film := schema.Table(TableName{Name: "film"})
	require.NotNil(t, film)
	assert.True(t, film.Columns[0].IsIdentity)
	assert.Equal(t, sqltype.TypeDecimal, film.Columns[2].Type)
	assert.Equal(t, "4.99", film.Columns[2].ColumnDefault)

	link := schema.Table(TableName{Schema: "public", Name: "film_actor"})
	require.NotNil(t, link)
	require.Len(t, link.ForeignKeys, 2)
	assert.Equal(t, TableName{Schema: "public", Name: "actor"}, link.ForeignKeys[0].ReferredTable)
	assert.Equal(t, []string{"film_id"}, link.ForeignKeys[1].Columns)

	view := schema.Table(TableName{Name: "film_list"})
	require.NotNil(t, view)
	assert.True(t, view.IsView)
	assert.Empty(t, view.PrimaryKey)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectDatabaseContext_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("permission denied for pg_class")
	mock.ExpectQuery("FROM pg_class c").WithArgs("sales").WillReturnError(boom)

	_, err = IntrospectDatabaseContext(context.Background(), db, []string{"sales"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "schema sales")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupForeignKeys_CompositeKeepsOrdinalOrder(t *testing.T) {
	rows := []foreignKeyColumn{
		{ConstraintName: "fk_user", ReferredSchema: "public", ReferredTable: "users", Column: "user_id", ReferredColumn: "id", OrdinalPosition: 2},
		{ConstraintName: "fk_group", ReferredSchema: "public", ReferredTable: "groups", Column: "group_id", ReferredColumn: "id", OrdinalPosition: 1},
		{ConstraintName: "fk_user", ReferredSchema: "public", ReferredTable: "users", Column: "tenant_id", ReferredColumn: "tenant_id", OrdinalPosition: 1},
	}

	got := groupForeignKeys(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "fk_user", got[0].ConstraintName)
	assert.Equal(t, []string{"tenant_id", "user_id"}, got[0].Columns)
	assert.Equal(t, []string{"tenant_id", "id"}, got[0].ReferredColumns)
	assert.Equal(t, "groups", got[1].ReferredTable.Name)
}

func TestGroupForeignKeys_UnnamedRowsStayIsolated(t *testing.T) {
	rows := []foreignKeyColumn{
		{ReferredTable: "users", Column: "author_id", ReferredColumn: "id"},
		{ReferredTable: "users", Column: "editor_id", ReferredColumn: "id"},
	}
	got := groupForeignKeys(rows)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].Columns[0], got[1].Columns[0])
}

func TestTableHelpers(t *testing.T) {
	table := Table{
		Name: TableName{Schema: "public", Name: "film_actor"},
		Columns: []Column{
			{Name: "actor_id", Type: sqltype.TypeInt16},
			{Name: "film_id", Type: sqltype.TypeInt16},
			{Name: "last_update", Type: sqltype.TypeTimestamp},
		},
		PrimaryKey: []string{"actor_id", "film_id"},
		ForeignKeys: []ForeignKey{
			{ConstraintName: "a", Columns: []string{"actor_id"}, ReferredTable: TableName{Schema: "public", Name: "actor"}, ReferredColumns: []string{"actor_id"}},
			{ConstraintName: "f", Columns: []string{"film_id"}, ReferredTable: TableName{Schema: "public", Name: "film"}, ReferredColumns: []string{"film_id"}},
		},
	}

	assert.Equal(t, []sqltype.Type{sqltype.TypeInt16, sqltype.TypeInt16}, table.PrimaryKeyTypes())
	assert.Len(t, table.NonPrimaryKeyColumns(), 1)

	fk, ok := table.ForeignKeyForColumn("film_id")
	require.True(t, ok)
	assert.Equal(t, "f", fk.ConstraintName)
	ref, ok := fk.ReferredColumnFor("film_id")
	require.True(t, ok)
	assert.Equal(t, "film_id", ref)

	_, ok = table.ForeignKeyForColumn("last_update")
	assert.False(t, ok)
	assert.Len(t, table.ForeignKeysTo(TableName{Name: "actor"}), 1)
}

func TestIdent(t *testing.T) {
	table := Table{
		Name:    TableName{Schema: "public", Name: "actor"},
		Columns: []Column{{Name: "actor_id"}, {Name: "first_name"}},
	}

	assert.Equal(t, `"public"."actor"`, table.Name.Ident().SQL())

	col, ok := table.ColumnIdent("first_name")
	require.True(t, ok)
	assert.Equal(t, `"first_name"`, col.SQL())
	assert.Equal(t, `"actor"."first_name"`, table.Name.Ident().Dot(col))

	_, ok = table.ColumnIdent("first_name; DROP TABLE actor")
	assert.False(t, ok)

	_, ok = table.IdentsOf([]string{"actor_id", "nope"})
	assert.False(t, ok)

	alias := Compose(".", col, table.Name.Ident())
	assert.Equal(t, `"first_name.actor"`, alias.SQL())
	assert.True(t, Ident{}.IsZero())
}

func TestTableName(t *testing.T) {
	assert.Equal(t, TableName{Schema: "public", Name: "film"}, ParseTableName("public.film"))
	assert.Equal(t, TableName{Name: "film"}, ParseTableName(" film "))
	assert.Equal(t, "public.film", TableName{Schema: "public", Name: "film"}.String())
	assert.True(t, TableName{Name: "film"}.Matches(TableName{Schema: "public", Name: "film"}))
	assert.False(t, TableName{Schema: "sales", Name: "film"}.Matches(TableName{Schema: "public", Name: "film"}))
}

func TestTableName_Text(t *testing.T) {
	text, err := TableName{Schema: "public", Name: "film"}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "public.film", string(text))

	var name TableName
	require.NoError(t, name.UnmarshalText([]byte("sales.orders")))
	assert.Equal(t, TableName{Schema: "sales", Name: "orders"}, name)
	assert.Error(t, name.UnmarshalText([]byte("  ")))
}
