// Package service exposes the read and edit operations of the window engine:
// window navigation, record listing and detail, lookups, changesets and deletes.
// Every operation is scoped to one connection string.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ivanceras/diwata-sub000/internal/changeset"
	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/logging"
	"github.com/ivanceras/diwata-sub000/internal/planner"
	"github.com/ivanceras/diwata-sub000/internal/schemacache"
	"github.com/ivanceras/diwata-sub000/internal/schemafilter"
	"github.com/ivanceras/diwata-sub000/internal/window"
)

const (
	// DefaultPageSize is used for listings and related tabs when none is configured.
	DefaultPageSize = 40
	// DefaultLookupPageSize is used for dropdown choices when none is configured.
	DefaultLookupPageSize = 40
)

var (
	// ErrNoMatchingWindow indicates no window exists for the requested table.
	ErrNoMatchingWindow = errors.New("no matching window")
	// ErrRecordNotFound indicates the requested record does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoMatchingLookup indicates the window has no dropdown backed by the requested table.
	ErrNoMatchingLookup = errors.New("no matching lookup")
	// ErrReadOnly indicates a changeset touches a table or column denied for writes.
	ErrReadOnly = errors.New("read-only")
)

// SchemaCache supplies table metadata and windows per connection string.
type SchemaCache interface {
	GetCachedTables(ctx context.Context, dsn string) (*introspection.Schema, error)
	GetCachedWindows(ctx context.Context, dsn string) ([]window.Window, error)
}

// Config wires a Service.
type Config struct {
	Cache   SchemaCache
	Source  schemacache.Source
	Session dbexec.SessionConfig
	// Filters supplies the write deny lists checked before a changeset runs.
	Filters        schemafilter.Config
	PageSize       int
	LookupPageSize int
	Logger         *logging.Logger
	Metrics        changeset.Metrics
}

// Service implements the engine operations.
type Service struct {
	cache          SchemaCache
	source         schemacache.Source
	session        dbexec.SessionConfig
	filters        schemafilter.Config
	pageSize       int
	lookupPageSize int
	logger         *logging.Logger
	metrics        changeset.Metrics
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("service requires a schema cache")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("service requires a database source")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.LookupPageSize <= 0 {
		cfg.LookupPageSize = DefaultLookupPageSize
	}
	return &Service{
		cache:          cfg.Cache,
		source:         cfg.Source,
		session:        cfg.Session,
		filters:        cfg.Filters,
		pageSize:       cfg.PageSize,
		lookupPageSize: cfg.LookupPageSize,
		logger:         cfg.Logger.WithFields(slog.String("component", "service")),
		metrics:        cfg.Metrics,
	}, nil
}

// Window returns the window whose main table is name.
func (s *Service) Window(ctx context.Context, dsn string, name introspection.TableName) (*window.Window, error) {
	windows, err := s.cache.GetCachedWindows(ctx, dsn)
	if err != nil {
		return nil, err
	}
	w, ok := window.Find(windows, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingWindow, name)
	}
	return w, nil
}

// GroupedWindows lists window names per schema.
func (s *Service) GroupedWindows(ctx context.Context, dsn string) ([]window.GroupedWindow, error) {
	windows, err := s.cache.GetCachedWindows(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return window.Group(windows), nil
}

// scope is the metadata an operation resolves before touching the database.
type scope struct {
	schema  *introspection.Schema
	window  *window.Window
	planner *planner.QueryPlanner
}

func (s *Service) resolve(ctx context.Context, dsn string, name introspection.TableName) (*scope, error) {
	schema, err := s.cache.GetCachedTables(ctx, dsn)
	if err != nil {
		return nil, err
	}
	w, err := s.Window(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	return &scope{schema: schema, window: w, planner: planner.NewQueryPlanner(schema)}, nil
}

// entityManager returns an EntityManager for dsn and a release func. With a
// session configured every statement of the operation runs on one pinned connection.
func (s *Service) entityManager(ctx context.Context, dsn string) (dbexec.EntityManager, func(), error) {
	db, err := s.source.DB(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if s.session.Role == "" && len(s.session.SearchPath) == 0 {
		return dbexec.NewManager(dbexec.NewStandardExecutor(db), s.logger.Logger), func() {}, nil
	}

	session, err := dbexec.OpenSession(ctx, db, s.session)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("failed to release session", slog.String("error", err.Error()))
		}
	}
	return dbexec.NewManager(session, s.logger.Logger), release, nil
}

func (s *Service) page(number int) planner.Page {
	if number < 1 {
		number = 1
	}
	return planner.Page{Number: number, Size: s.pageSize}
}

func startSpan(ctx context.Context, name string, table introspection.TableName) (context.Context, trace.Span) {
	return otel.Tracer("diwata/service").Start(ctx, name,
		trace.WithAttributes(attribute.String("db.table", table.String())),
	)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
