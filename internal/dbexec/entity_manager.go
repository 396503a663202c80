package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanceras/diwata-sub000/internal/value"
)

// EntityManager runs parameterized statements and returns their rows as tagged values.
type EntityManager interface {
	// ExecuteSQLWithReturn returns every row produced by the statement.
	ExecuteSQLWithReturn(ctx context.Context, query string, params []value.Value) (*value.Rows, error)
	// ExecuteSQLWithOneReturn requires exactly one row.
	ExecuteSQLWithOneReturn(ctx context.Context, query string, params []value.Value) (*value.Record, error)
	// ExecuteSQLWithMaybeOneReturn returns nil when the statement produced no row.
	ExecuteSQLWithMaybeOneReturn(ctx context.Context, query string, params []value.Value) (*value.Record, error)
}

// Manager implements EntityManager over a QueryExecutor.
type Manager struct {
	exec   QueryExecutor
	logger *slog.Logger
}

// NewManager wraps exec. A nil logger discards statement logs.
func NewManager(exec QueryExecutor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{exec: exec, logger: logger}
}

func (m *Manager) ExecuteSQLWithReturn(ctx context.Context, query string, params []value.Value) (*value.Rows, error) {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}

	start := time.Now()
	rows, err := m.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &Error{Op: "query", SQL: query, Err: err}
	}
	defer rows.Close()

	result, err := collect(rows)
	if err != nil {
		return nil, &Error{Op: "scan", SQL: query, Err: err}
	}
	m.logger.DebugContext(ctx, "executed sql",
		slog.String("sql", query),
		slog.Int("params", len(params)),
		slog.Int("rows", result.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (m *Manager) ExecuteSQLWithOneReturn(ctx context.Context, query string, params []value.Value) (*value.Record, error) {
	rows, err := m.ExecuteSQLWithReturn(ctx, query, params)
	if err != nil {
		return nil, err
	}
	switch rows.Len() {
	case 0:
		return nil, &Error{Op: "query", SQL: query, Err: sql.ErrNoRows}
	case 1:
		return rows.Records()[0], nil
	default:
		return nil, &Error{Op: "query", SQL: query, Err: fmt.Errorf("expected one row, got %d", rows.Len())}
	}
}

func (m *Manager) ExecuteSQLWithMaybeOneReturn(ctx context.Context, query string, params []value.Value) (*value.Record, error) {
	rows, err := m.ExecuteSQLWithReturn(ctx, query, params)
	if err != nil {
		return nil, err
	}
	switch rows.Len() {
	case 0:
		return nil, nil
	case 1:
		return rows.Records()[0], nil
	default:
		return nil, &Error{Op: "query", SQL: query, Err: fmt.Errorf("expected at most one row, got %d", rows.Len())}
	}
}

func collect(rows Rows) (*value.Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := value.NewRows(columns)
	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]value.Value, len(columns))
		for i, r := range raw {
			row[i] = value.FromDriver(r)
		}
		if err := result.Push(row); err != nil {
			return nil, err
		}
	}
	return result, rows.Err()
}
