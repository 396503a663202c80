package serverapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ivanceras/diwata-sub000/internal/config"
	"github.com/ivanceras/diwata-sub000/internal/logging"
	"github.com/ivanceras/diwata-sub000/internal/middleware"
	"github.com/ivanceras/diwata-sub000/internal/observability"
)

// InitLogger builds the process logger and, when log export is enabled, the OTLP logger provider.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.CacheMetrics, *observability.ChangesetMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, nil, err
	}

	cacheMetrics, err := observability.InitCacheMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	changesetMetrics, err := observability.InitChangesetMetrics()
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Debug("OpenTelemetry metrics initialized")
	return meterProvider, cacheMetrics, changesetMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(observabilityConfig(cfg, tracesConfig))
	if err != nil {
		return nil, err
	}
	return tracerProvider, nil
}

// dbSource resolves the pool behind a connection string.
type dbSource interface {
	DB(ctx context.Context, dsn string) (*sql.DB, error)
}

// cacheClearer drops cached metadata for one connection string.
type cacheClearer interface {
	ClearKey(dsn string)
}

func buildRouter(cfg *config.Config, logger *logging.Logger, source dbSource, cache cacheClearer, dsn string, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler(source, dsn, cfg.Server.HealthCheckTimeout))

	var reload http.Handler = reloadHandler(cache, dsn, logger)
	if cfg.Server.AdminToken != "" {
		protect, err := middleware.AdminToken(middleware.AdminTokenConfig{
			Token:      cfg.Server.AdminToken,
			HeaderName: cfg.Server.AdminTokenHeader,
		})
		if err == nil {
			reload = protect(reload)
		}
	}
	mux.Handle("/reload", reload)

	if meterProvider != nil {
		mux.Handle("/metrics", meterProvider.Handler())
	}
	return mux
}

func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      middleware.RequestLogging(logger)(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("address", srv.Addr),
			slog.String("health_endpoint", "/healthz"),
			slog.Bool("metrics_enabled", cfg.Observability.MetricsEnabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler reports whether the configured database answers a ping.
func healthHandler(source dbSource, dsn string, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		db, err := source.DB(ctx, dsn)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			// Generic body; the error may carry connection details.
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}

// reloadHandler drops the cached schema so the next operation re-introspects.
func reloadHandler(cache cacheClearer, dsn string, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = fmt.Fprint(w, `{"error":"method not allowed"}`)
			return
		}
		cache.ClearKey(dsn)
		logger.Info("schema cache cleared")
		w.WriteHeader(http.StatusAccepted)
		_, _ = fmt.Fprint(w, `{"status":"cleared"}`)
	}
}
