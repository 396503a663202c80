package dbexec

import (
	"errors"
	"fmt"
)

// ErrSQLInjectionAttempt is raised when user input names a column that the
// window does not expose. It is always wrapped in an *Error.
var ErrSQLInjectionAttempt = errors.New("sql injection attempt")

// Error wraps a failed database operation with the statement that caused it.
type Error struct {
	Op  string
	SQL string
	Err error
}

func (e *Error) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("db %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("db %s: %v [sql: %s]", e.Op, e.Err, e.SQL)
}

func (e *Error) Unwrap() error { return e.Err }

// InjectionAttempt reports a rejected identifier.
func InjectionAttempt(what, name string) error {
	return &Error{
		Op:  "validate",
		Err: fmt.Errorf("%w: unknown %s %q", ErrSQLInjectionAttempt, what, name),
	}
}

// IsInjectionAttempt reports whether err was caused by a rejected identifier.
func IsInjectionAttempt(err error) bool {
	return errors.Is(err, ErrSQLInjectionAttempt)
}
