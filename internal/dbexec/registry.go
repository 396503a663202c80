package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const driverName = "pgx"

// PoolConfig configures database/sql pooling for every opened database.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// RegistryConfig controls how databases are opened and instrumented.
type RegistryConfig struct {
	Pool                PoolConfig
	ConnectionTimeout   time.Duration
	RetryInterval       time.Duration
	MetricsEnabled      bool
	TracingEnabled      bool
	SQLCommenterEnabled bool
}

type openFunc func(dsn string, cfg RegistryConfig, logger *slog.Logger) (*sql.DB, interface{ Unregister() error }, error)

type pooled struct {
	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
}

// Registry keeps one pool per connection string.
type Registry struct {
	cfg    RegistryConfig
	logger *slog.Logger
	open   openFunc

	mu    sync.Mutex
	pools map[string]*pooled
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		cfg:    cfg,
		logger: logger,
		open:   openInstrumented,
		pools:  make(map[string]*pooled),
	}
}

// DB returns the pool for dsn, opening and verifying it on first use.
func (r *Registry) DB(ctx context.Context, dsn string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[dsn]; ok {
		return p.db, nil
	}

	db, reg, err := r.open(dsn, r.cfg, r.logger)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(r.cfg.Pool.MaxOpen)
	db.SetMaxIdleConns(r.cfg.Pool.MaxIdle)
	db.SetConnMaxLifetime(r.cfg.Pool.MaxLifetime)

	if err := r.waitForDatabase(ctx, db); err != nil {
		_ = db.Close()
		if reg != nil {
			_ = reg.Unregister()
		}
		return nil, &Error{Op: "connect", Err: err}
	}
	r.pools[dsn] = &pooled{db: db, dbStatsReg: reg}
	return db, nil
}

// EntityManager returns a Manager bound to the pool for dsn.
func (r *Registry) EntityManager(ctx context.Context, dsn string) (*Manager, error) {
	db, err := r.DB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewManager(NewStandardExecutor(db), r.logger), nil
}

// Close closes every pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for dsn, p := range r.pools {
		if p.dbStatsReg != nil {
			if err := p.dbStatsReg.Unregister(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := p.db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.pools, dsn)
	}
	return errors.Join(errs...)
}

func (r *Registry) waitForDatabase(ctx context.Context, db *sql.DB) error {
	timeout := r.cfg.ConnectionTimeout
	interval := r.cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	// A zero timeout means a single attempt.
	if timeout == 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}
		r.logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, 30*time.Second)
	}
}

func openInstrumented(dsn string, cfg RegistryConfig, logger *slog.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	if !cfg.MetricsEnabled && !cfg.TracingEnabled {
		db, err := sql.Open(driverName, dsn)
		return db, nil, err
	}

	opts := []otelsql.Option{
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	}
	if cfg.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip: true,
		}))
		if cfg.SQLCommenterEnabled {
			opts = append(opts, otelsql.WithSQLCommenter(true))
		}
	}

	db, err := otelsql.Open(driverName, dsn, opts...)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.MetricsEnabled {
		return db, nil, nil
	}
	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		return db, nil, nil
	}
	return db, reg, nil
}
