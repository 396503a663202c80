package serverapp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ivanceras/diwata-sub000/internal/config"
	"github.com/ivanceras/diwata-sub000/internal/logging"
	"github.com/ivanceras/diwata-sub000/internal/naming"
	"github.com/ivanceras/diwata-sub000/internal/schemafilter"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "info", Format: "text", Output: &bytes.Buffer{}})
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	if _, err := New(nil, testLogger()); err == nil {
		t.Fatalf("expected error without config")
	}
	if _, err := New(&config.Config{}, nil); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestNew_ResolvesTarget(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		ConnectionString: "postgres://diwata@db.internal:6543/sakila?sslmode=disable",
	}}
	app, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if app.DSN() != cfg.Database.ConnectionString {
		t.Fatalf("unexpected dsn %q", app.DSN())
	}
	if app.target.Host != "db.internal" || app.target.Database != "sakila" || app.target.Port != 6543 {
		t.Fatalf("unexpected target %+v", app.target)
	}
	if app.Service() != nil {
		t.Fatalf("service must be nil before init")
	}
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, serverErrors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "signal" {
		t.Fatalf("expected reason=signal, got %q", reason)
	}
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(stop, serverErrors)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if reason != "server_error" {
		t.Fatalf("expected reason=server_error, got %q", reason)
	}
}

func TestWaitForStop_NoChannels(t *testing.T) {
	app := &App{logger: testLogger()}
	if _, err := app.WaitForStop(nil, nil); err == nil {
		t.Fatalf("expected error with no channels")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown failed: %v", err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected cleanup to run once, ran %d times", got)
	}
}

func TestCleanupStack_RunsInReverse(t *testing.T) {
	var order []string
	stack := cleanupStack{}
	for _, name := range []string{"meter provider", "database registry", "HTTP server"} {
		stack.push(name, func(context.Context) error {
			order = append(order, name)
			return errors.New("ignored")
		})
	}
	_ = stack.run(context.Background(), testLogger())

	want := []string{"HTTP server", "database registry", "meter provider"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("cleanup order = %v, want %v", order, want)
		}
	}
}

func TestShutdown_ReportsCleanupFailures(t *testing.T) {
	app := &App{logger: testLogger()}
	var released []string
	app.cleanup.push("database registry", func(context.Context) error {
		released = append(released, "database registry")
		return errors.New("close: connection busy")
	})
	app.cleanup.push("HTTP server", func(context.Context) error {
		released = append(released, "HTTP server")
		return nil
	})

	err := app.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database registry: close: connection busy") {
		t.Fatalf("expected joined cleanup error, got %v", err)
	}
	if len(released) != 2 || released[0] != "HTTP server" {
		t.Fatalf("every resource must be released in reverse order, got %v", released)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should be a no-op, got %v", err)
	}
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	if _, err := app.Start(); err == nil {
		t.Fatalf("expected start to fail before init")
	}
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg:    &config.Config{},
		logger: testLogger(),
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	first, err := app.Start()
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	second, err := app.Start()
	if err != nil || first != second {
		t.Fatalf("second start should return the same channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	appCfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "postgres",
			Password: "invalid",
			Database: "sakila",
			TLS:      config.DatabaseTLSConfig{Mode: "disable"},
			Pool: config.PoolConfig{
				MaxOpen:     1,
				MaxIdle:     1,
				MaxLifetime: time.Second,
			},
			ConnectionTimeout:       0,
			ConnectionRetryInterval: 10 * time.Millisecond,
		},
		Schema: config.SchemaConfig{
			Schemas:        []string{"public"},
			PageSize:       10,
			LookupPageSize: 10,
			Filters:        schemafilter.Config{AllowTables: []string{"*"}},
			Naming:         naming.DefaultConfig(),
		},
		Server: config.ServerConfig{
			Addr:               "127.0.0.1:0",
			ShutdownTimeout:    time.Second,
			HealthCheckTimeout: time.Second,
		},
		Observability: config.ObservabilityConfig{
			ServiceName:    "diwata",
			ServiceVersion: "test",
			Environment:    "test",
			Logging:        config.LoggingConfig{Level: "info", Format: "text"},
		},
	}

	app, err := New(appCfg, testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Init(ctx); err == nil {
		t.Fatalf("expected init to fail with unreachable database")
	}

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	if initialized {
		t.Fatalf("app should not be marked initialized after failed Init")
	}
}
