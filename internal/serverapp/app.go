// Package serverapp owns the runtime lifecycle of the window engine: telemetry,
// database registry, schema cache, service and the optional metrics listener.
package serverapp

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ivanceras/diwata-sub000/internal/config"
	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/logging"
	"github.com/ivanceras/diwata-sub000/internal/observability"
	"github.com/ivanceras/diwata-sub000/internal/schemacache"
	"github.com/ivanceras/diwata-sub000/internal/service"
)

// App owns runtime resources for one configured database.
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	dsn    string
	target config.Target

	loggerProvider *observability.LoggerProvider

	meterProvider    *observability.MeterProvider
	cacheMetrics     *observability.CacheMetrics
	changesetMetrics *observability.ChangesetMetrics
	tracerProvider   *observability.TracerProvider

	registry *dbexec.Registry
	cache    *schemacache.Cache
	service  *service.Service

	srv *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	target, err := cfg.Database.Target()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database target: %w", err)
	}

	return &App{
		cfg:    cfg,
		logger: logger.WithDatabase(target.Host, target.Database),
		dsn:    cfg.Database.DSN(),
		target: target,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Service returns the engine operations. It is nil before Init.
func (a *App) Service() *service.Service {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.service
}

// DSN returns the connection string every operation is scoped to.
func (a *App) DSN() string {
	return a.dsn
}
