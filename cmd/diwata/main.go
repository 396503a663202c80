package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/ivanceras/diwata-sub000/internal/config"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/serverapp"
	"github.com/ivanceras/diwata-sub000/internal/window"

	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("diwata error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	pflag.Bool("version", false, "Print version and exit")
	pflag.String("window", "", "Print the tab layout of one window (schema.table)")
	pflag.Bool("json", false, "Print output as JSON")
	pflag.Bool("serve", false, "Keep running and serve /healthz, /metrics and /reload")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("diwata %s (%s)\n", Version, Commit)
		return nil
	}
	windowName, _ := pflag.CommandLine.GetString("window")
	asJSON, _ := pflag.CommandLine.GetBool("json")
	serve, _ := pflag.CommandLine.GetBool("serve")

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := serverapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	ctx := context.Background()
	if err := app.Init(ctx); err != nil {
		return err
	}

	if err := report(ctx, os.Stdout, app, windowName, asJSON); err != nil {
		shutdown(app, cfg)
		return err
	}
	if !serve {
		shutdown(app, cfg)
		return nil
	}

	serverErrors, err := app.Start()
	if err != nil {
		shutdown(app, cfg)
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)

	logger.Info("shutting down gracefully")
	shutdownErr := shutdown(app, cfg)

	if waitErr != nil {
		return waitErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("stopped gracefully")
	return nil
}

func shutdown(app *serverapp.App, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return app.Shutdown(ctx)
}

// windowSource is the subset of the service the report needs.
type windowSource interface {
	GroupedWindows(ctx context.Context, dsn string) ([]window.GroupedWindow, error)
	Window(ctx context.Context, dsn string, name introspection.TableName) (*window.Window, error)
}

type appSource struct {
	app *serverapp.App
}

func (s appSource) GroupedWindows(ctx context.Context, dsn string) ([]window.GroupedWindow, error) {
	return s.app.Service().GroupedWindows(ctx, dsn)
}

func (s appSource) Window(ctx context.Context, dsn string, name introspection.TableName) (*window.Window, error) {
	return s.app.Service().Window(ctx, dsn, name)
}

func report(ctx context.Context, out io.Writer, app *serverapp.App, windowName string, asJSON bool) error {
	return writeReport(ctx, out, appSource{app: app}, app.DSN(), windowName, asJSON)
}

func writeReport(ctx context.Context, out io.Writer, src windowSource, dsn, windowName string, asJSON bool) error {
	if windowName == "" {
		groups, err := src.GroupedWindows(ctx, dsn)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, groups)
		}
		return printGroupedWindows(out, groups)
	}

	w, err := src.Window(ctx, dsn, introspection.ParseTableName(windowName))
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, w)
	}
	return printWindow(out, w)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGroupedWindows(out io.Writer, groups []window.GroupedWindow) error {
	for _, g := range groups {
		if _, err := fmt.Fprintf(out, "%s\n", g.Group); err != nil {
			return err
		}
		for _, name := range g.WindowNames {
			if _, err := fmt.Fprintf(out, "  %s\n", name); err != nil {
				return err
			}
		}
	}
	return nil
}

func printWindow(out io.Writer, w *window.Window) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "window\t%s\t%s\n", w.Name, w.Table)
	printTab(tw, "main", w.MainTab)
	for _, tab := range w.OneOneTabs {
		printTab(tw, "one-one", tab)
	}
	for _, tab := range w.HasManyTabs {
		printTab(tw, "has-many", tab)
	}
	for _, it := range w.IndirectTabs {
		printTab(tw, "indirect via "+it.Linker.String(), it.Tab)
	}
	return tw.Flush()
}

func printTab(tw io.Writer, kind string, tab window.Tab) {
	fmt.Fprintf(tw, "\n%s tab\t%s\t%s\n", kind, tab.Name, tab.Table)
	for _, f := range tab.Fields {
		var notes []string
		if f.IsPrimary {
			notes = append(notes, "pk")
		}
		if f.Dropdown != nil {
			notes = append(notes, "lookup "+f.Dropdown.Source.String())
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Label, strings.Join(f.ColumnNames(), ","), strings.Join(notes, " "))
	}
}
