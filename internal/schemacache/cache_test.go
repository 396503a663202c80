package schemacache

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/schemafilter"
)

type fakeSource struct {
	mu    sync.Mutex
	db    *sql.DB
	err   error
	calls map[string]int
}

func (s *fakeSource) DB(ctx context.Context, dsn string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[dsn]++
	return s.db, s.err
}

// expectBlogSchema queues one introspection pass: users has many posts.
func expectBlogSchema(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM pg_class c").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "is_view", "comment"}).
			AddRow("users", false, nil).
			AddRow("posts", false, nil).
			AddRow("audit_log", false, nil))

	mock.ExpectQuery("FROM pg_attribute a").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "attname", "type", "nullable", "default", "identity", "generated", "comment"}).
			AddRow("users", "id", "integer", false, nil, true, false, nil).
			AddRow("users", "name", "text", false, nil, false, false, nil).
			AddRow("posts", "id", "integer", false, nil, true, false, nil).
			AddRow("posts", "user_id", "integer", false, nil, false, false, nil).
			AddRow("posts", "title", "text", false, nil, false, false, nil).
			AddRow("audit_log", "id", "bigint", false, nil, true, false, nil))

	mock.ExpectQuery("contype = 'p'").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "attname"}).
			AddRow("users", "id").
			AddRow("posts", "id").
			AddRow("audit_log", "id"))

	mock.ExpectQuery("contype = 'f'").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "conname", "nspname", "tgt", "col", "ref", "ord"}).
			AddRow("posts", "posts_user_id_fkey", "public", "users", "user_id", "id", 1))
}

func newTestCache(t *testing.T, source *fakeSource, filters schemafilter.Config) *Cache {
	t.Helper()
	cache, err := New(Config{Source: source, Schemas: []string{"public"}, Filters: filters})
	require.NoError(t, err)
	return cache
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetCachedTables_PopulatesOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectBlogSchema(mock)

	source := &fakeSource{db: db}
	cache := newTestCache(t, source, schemafilter.Config{DenyTables: []string{"audit_*"}})

	first, err := cache.GetCachedTables(context.Background(), "postgres://blog")
	require.NoError(t, err)
	require.Len(t, first.Tables, 2)
	assert.Nil(t, first.Table(introspection.TableName{Name: "audit_log"}))

	second, err := cache.GetCachedTables(context.Background(), "postgres://blog")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, source.calls["postgres://blog"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCachedTables_ConcurrentCallersShareOnePopulation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectBlogSchema(mock)

	cache := newTestCache(t, &fakeSource{db: db}, schemafilter.Config{})

	const callers = 8
	results := make([]*introspection.Schema, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetCachedTables(context.Background(), "postgres://blog")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCachedWindows_EnsuresTablesFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectBlogSchema(mock)

	cache := newTestCache(t, &fakeSource{db: db}, schemafilter.Config{})

	windows, err := cache.GetCachedWindows(context.Background(), "postgres://blog")
	require.NoError(t, err)

	names := make([]string, 0, len(windows))
	for _, w := range windows {
		names = append(names, w.Name)
	}
	assert.ElementsMatch(t, []string{"users", "posts", "audit_log"}, names)

	for _, w := range windows {
		if w.Name == "users" {
			require.Len(t, w.HasManyTabs, 1)
			assert.Equal(t, "posts", w.HasManyTabs[0].Name)
		}
	}

	again, err := cache.GetCachedWindows(context.Background(), "postgres://blog")
	require.NoError(t, err)
	assert.Equal(t, windows, again)

	_, err = cache.GetCachedTables(context.Background(), "postgres://blog")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCachedTables_ErrorIsNotCached(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("permission denied for pg_class")
	mock.ExpectQuery("FROM pg_class c").WithArgs("public").WillReturnError(boom)
	expectBlogSchema(mock)

	cache := newTestCache(t, &fakeSource{db: db}, schemafilter.Config{})

	_, err = cache.GetCachedTables(context.Background(), "postgres://blog")
	require.Error(t, err)
	var cacheErr *Error
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, "introspect", cacheErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, err.Error(), "postgres://blog")

	schema, err := cache.GetCachedTables(context.Background(), "postgres://blog")
	require.NoError(t, err)
	assert.Len(t, schema.Tables, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCachedTables_SourceError(t *testing.T) {
	refused := errors.New("connection refused")
	cache := newTestCache(t, &fakeSource{err: refused}, schemafilter.Config{})

	_, err := cache.GetCachedWindows(context.Background(), "postgres://down")
	require.Error(t, err)
	var cacheErr *Error
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, "connect", cacheErr.Op)
	assert.ErrorIs(t, err, refused)
}

func TestClear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectBlogSchema(mock)
	expectBlogSchema(mock)
	expectBlogSchema(mock)

	source := &fakeSource{db: db}
	cache := newTestCache(t, source, schemafilter.Config{})
	ctx := context.Background()

	_, err = cache.GetCachedTables(ctx, "postgres://blog")
	require.NoError(t, err)

	cache.ClearKey("postgres://blog")
	_, err = cache.GetCachedTables(ctx, "postgres://blog")
	require.NoError(t, err)

	cache.Clear()
	_, err = cache.GetCachedTables(ctx, "postgres://blog")
	require.NoError(t, err)

	assert.Equal(t, 3, source.calls["postgres://blog"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeysAreIndependent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectBlogSchema(mock)
	expectBlogSchema(mock)

	source := &fakeSource{db: db}
	cache := newTestCache(t, source, schemafilter.Config{})

	a, err := cache.GetCachedTables(context.Background(), "postgres://a")
	require.NoError(t, err)
	b, err := cache.GetCachedTables(context.Background(), "postgres://b")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	cache.ClearKey("postgres://b")
	again, err := cache.GetCachedTables(context.Background(), "postgres://a")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// gatedSource blocks connections to one dsn until release is closed.
type gatedSource struct {
	gated   string
	entered chan struct{}
	release chan struct{}
	db      *sql.DB
}

func (s *gatedSource) DB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != s.gated {
		return s.db, nil
	}
	close(s.entered)
	select {
	case <-s.release:
		return nil, errors.New("connection refused")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSlowPopulationDoesNotBlockOtherKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectBlogSchema(mock)

	source := &gatedSource{
		gated:   "postgres://slow",
		entered: make(chan struct{}),
		release: make(chan struct{}),
		db:      db,
	}
	cache, err := New(Config{Source: source, Schemas: []string{"public"}})
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := cache.GetCachedTables(context.Background(), "postgres://slow")
		slowDone <- err
	}()
	<-source.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := cache.GetCachedTables(context.Background(), "postgres://fast")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("population of one key blocked another key")
	}

	select {
	case <-slowDone:
		t.Fatal("slow population finished before it was released")
	default:
	}

	close(source.release)
	assert.Error(t, <-slowDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
