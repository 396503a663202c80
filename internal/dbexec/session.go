package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ivanceras/diwata-sub000/internal/sqlutil"
)

// SessionConfig controls the state applied to a pinned connection.
type SessionConfig struct {
	// Role is applied with SET ROLE when non-empty.
	Role string
	// AllowedRoles restricts Role when non-empty.
	AllowedRoles []string
	// SearchPath is applied with SET search_path when non-empty.
	SearchPath []string
}

// SessionExecutor runs every statement on one dedicated connection, so a
// multi-statement write sequence observes its own earlier statements and
// session settings. It opens no transaction.
type SessionExecutor struct {
	conn    *sql.Conn
	hasRole bool
}

// OpenSession acquires a connection and applies the configured session state.
func OpenSession(ctx context.Context, db *sql.DB, cfg SessionConfig) (*SessionExecutor, error) {
	if db == nil {
		return nil, sql.ErrConnDone
	}
	if cfg.Role != "" && len(cfg.AllowedRoles) > 0 && !contains(cfg.AllowedRoles, cfg.Role) {
		return nil, fmt.Errorf("role not allowed: %s", cfg.Role)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	s := &SessionExecutor{conn: conn}

	if cfg.Role != "" {
		// SET ROLE does not accept bind parameters; the role is quoted as an identifier.
		if _, err := conn.ExecContext(ctx, "SET ROLE "+sqlutil.QuoteIdentifier(cfg.Role)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set role %s: %w", cfg.Role, err)
		}
		s.hasRole = true
	}
	if len(cfg.SearchPath) > 0 {
		quoted := make([]string, len(cfg.SearchPath))
		for i, schema := range cfg.SearchPath {
			quoted[i] = sqlutil.QuoteIdentifier(schema)
		}
		if _, err := conn.ExecContext(ctx, "SET search_path TO "+strings.Join(quoted, ", ")); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}
	}
	return s, nil
}

func (s *SessionExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *SessionExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

// Close resets session state and returns the connection to the pool.
func (s *SessionExecutor) Close() error {
	if s.hasRole {
		_, _ = s.conn.ExecContext(context.Background(), "RESET ROLE")
	}
	_, _ = s.conn.ExecContext(context.Background(), "RESET search_path")
	return s.conn.Close()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
