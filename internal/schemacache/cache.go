// Package schemacache memoizes introspected tables and derived windows per
// connection string. Entries are populated lazily and only dropped by an
// explicit Clear or ClearKey.
package schemacache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/logging"
	"github.com/ivanceras/diwata-sub000/internal/naming"
	"github.com/ivanceras/diwata-sub000/internal/observability"
	"github.com/ivanceras/diwata-sub000/internal/relation"
	"github.com/ivanceras/diwata-sub000/internal/schemafilter"
	"github.com/ivanceras/diwata-sub000/internal/window"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	kindTables  = "tables"
	kindWindows = "windows"
)

// Source hands out a database handle for a connection string.
type Source interface {
	DB(ctx context.Context, dsn string) (*sql.DB, error)
}

// Error reports a failed cache population.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema cache %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config controls what a populated entry contains.
type Config struct {
	Source  Source
	Schemas []string
	Filters schemafilter.Config
	Naming  naming.Config
	Logger  *logging.Logger
	Metrics *observability.CacheMetrics
}

type entry struct {
	tables  *introspection.Schema
	windows []window.Window
}

// Cache holds one entry per connection string.
type Cache struct {
	source  Source
	schemas []string
	filters schemafilter.Config
	naming  naming.Config
	logger  *logging.Logger
	metrics *observability.CacheMetrics

	// mu guards entries and the fields of each entry; it is never held across I/O.
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
}

// New creates an empty cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("schema cache requires a database source")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	return &Cache{
		source:  cfg.Source,
		schemas: append([]string(nil), cfg.Schemas...),
		filters: cfg.Filters,
		naming:  cfg.Naming,
		logger:  cfg.Logger.WithFields(slog.String("component", "schema_cache")),
		metrics: cfg.Metrics,
		entries: make(map[string]*entry),
	}, nil
}

// GetCachedTables returns the filtered table metadata for dsn, introspecting on first use.
// The returned schema is shared and must not be modified.
func (c *Cache) GetCachedTables(ctx context.Context, dsn string) (*introspection.Schema, error) {
	e := c.entry(dsn)
	c.mu.Lock()
	tables := e.tables
	c.mu.Unlock()
	c.metrics.RecordLookup(ctx, kindTables, tables != nil)
	if tables != nil {
		return tables, nil
	}

	v, err, _ := c.group.Do(kindTables+"\x00"+dsn, func() (any, error) {
		c.mu.Lock()
		cached := e.tables
		c.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		schema, err := c.populateTables(ctx, dsn)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		e.tables = schema
		c.mu.Unlock()
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*introspection.Schema), nil
}

// GetCachedWindows returns the windows derived from the cached tables of dsn.
func (c *Cache) GetCachedWindows(ctx context.Context, dsn string) ([]window.Window, error) {
	e := c.entry(dsn)
	c.mu.Lock()
	windows := e.windows
	c.mu.Unlock()
	c.metrics.RecordLookup(ctx, kindWindows, windows != nil)
	if windows != nil {
		return windows, nil
	}

	v, err, _ := c.group.Do(kindWindows+"\x00"+dsn, func() (any, error) {
		c.mu.Lock()
		cached := e.windows
		c.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		schema, err := c.GetCachedTables(ctx, dsn)
		if err != nil {
			return nil, err
		}
		built := c.buildWindows(ctx, schema)
		c.mu.Lock()
		e.windows = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]window.Window), nil
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for dsn := range c.entries {
		keys = append(keys, dsn)
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for _, dsn := range keys {
		c.forget(dsn)
	}
	c.logger.Info("schema cache cleared", slog.Int("entries", len(keys)))
}

// ClearKey drops the entry of one connection string.
func (c *Cache) ClearKey(dsn string) {
	c.mu.Lock()
	delete(c.entries, dsn)
	c.mu.Unlock()
	c.forget(dsn)
}

func (c *Cache) forget(dsn string) {
	c.group.Forget(kindTables + "\x00" + dsn)
	c.group.Forget(kindWindows + "\x00" + dsn)
}

// entry returns the entry for dsn, creating an empty one.
// A population racing a Clear writes into the detached entry and is discarded.
func (c *Cache) entry(dsn string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[dsn]
	if !ok {
		e = &entry{}
		c.entries[dsn] = e
	}
	return e
}

func (c *Cache) populateTables(ctx context.Context, dsn string) (*introspection.Schema, error) {
	tracer := otel.Tracer("diwata/schemacache")
	ctx, span := tracer.Start(ctx, "schemacache.populate_tables")
	defer span.End()

	start := time.Now()
	schema, err := c.introspect(ctx, dsn)
	c.metrics.RecordPopulation(ctx, kindTables, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("schema cache population failed", slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.table_count", len(schema.Tables)))
	c.logger.Info("discovered tables",
		slog.Int("count", len(schema.Tables)),
		slog.Duration("duration", time.Since(start)),
	)
	return schema, nil
}

func (c *Cache) introspect(ctx context.Context, dsn string) (*introspection.Schema, error) {
	db, err := c.source.DB(ctx, dsn)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}

	c.logger.Info("introspecting database schema", slog.Any("schemas", c.schemas))
	schema, err := introspection.IntrospectDatabaseContext(ctx, db, c.schemas)
	if err != nil {
		return nil, &Error{Op: "introspect", Err: err}
	}
	schemafilter.Apply(schema, c.filters)
	return schema, nil
}

func (c *Cache) buildWindows(ctx context.Context, schema *introspection.Schema) []window.Window {
	tracer := otel.Tracer("diwata/schemacache")
	_, span := tracer.Start(ctx, "schemacache.build_windows")
	defer span.End()

	start := time.Now()
	namer := naming.New(c.naming, c.logger.Logger)
	windows := window.NewBuilder(relation.FromSchema(schema), namer, c.logger.Logger).Build()
	c.metrics.RecordPopulation(ctx, kindWindows, time.Since(start), nil)

	span.SetAttributes(attribute.Int("window_count", len(windows)))
	c.logger.Info("built windows", slog.Int("count", len(windows)))
	return windows
}
