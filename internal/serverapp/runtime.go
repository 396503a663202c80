package serverapp

import (
	"fmt"
	"log/slog"
	"os"
)

// Start launches the metrics and health listener. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop waits for either an OS signal or a server error.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}

	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}
	if stop == nil {
		return "server_error", serverFailure(<-serverErrors)
	}
	if serverErrors == nil {
		a.logSignal(<-stop)
		return "signal", nil
	}

	select {
	case err := <-serverErrors:
		return "server_error", serverFailure(err)
	case sig := <-stop:
		a.logSignal(sig)
		return "signal", nil
	}
}

func serverFailure(err error) error {
	if err == nil {
		return fmt.Errorf("server stopped unexpectedly")
	}
	return fmt.Errorf("server failed: %w", err)
}

func (a *App) logSignal(sig os.Signal) {
	if a.logger != nil {
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}
}
