package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/schemacache"
	"github.com/ivanceras/diwata-sub000/internal/service"
)

// Init initializes all runtime resources and warms the schema cache. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, cacheMetrics, changesetMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	registry := dbexec.NewRegistry(a.cfg.RegistryConfig(), a.logger.Logger)
	cleanup.push("database registry", func(_ context.Context) error {
		return registry.Close()
	})

	cache, err := schemacache.New(schemacache.Config{
		Source:  registry,
		Schemas: a.cfg.Schema.Schemas,
		Filters: a.cfg.Schema.Filters,
		Naming:  a.cfg.Schema.Naming,
		Logger:  a.logger,
		Metrics: cacheMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize schema cache: %w", err)
	}

	svc, err := service.New(service.Config{
		Cache:          cache,
		Source:         registry,
		Session:        a.cfg.Database.SessionConfig(),
		Filters:        a.cfg.Schema.Filters,
		PageSize:       a.cfg.Schema.PageSize,
		LookupPageSize: a.cfg.Schema.LookupPageSize,
		Logger:         a.logger,
		Metrics:        changesetMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	a.logger.Info("connecting to PostgreSQL",
		slog.Int("port", int(a.target.Port)),
		slog.String("user", a.target.User),
		slog.Any("schemas", a.cfg.Schema.Schemas),
	)
	start := time.Now()
	windows, err := cache.GetCachedWindows(ctx, a.dsn)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	a.logger.Info("schema cache warmed",
		slog.Int("windows", len(windows)),
		slog.Duration("duration", time.Since(start)),
	)

	mux := buildRouter(a.cfg, a.logger, registry, cache, a.dsn, meterProvider)
	srv := buildServer(a.cfg, a.logger, mux)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.cacheMetrics = cacheMetrics
	a.changesetMetrics = changesetMetrics
	a.tracerProvider = tracerProvider
	a.registry = registry
	a.cache = cache
	a.service = svc
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
