package value

import (
	"fmt"
	"strings"

	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

const recordIDSeparator = ","

// ParamParseError reports a record id that could not be split or cast into
// its primary-key values.
type ParamParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParamParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid record id %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid record id %q: %s", e.Input, e.Reason)
}

func (e *ParamParseError) Unwrap() error { return e.Err }

// ParseRecordID splits a comma-separated primary-key string and casts each part
// to the matching key column type.
func ParseRecordID(id string, types []sqltype.Type) ([]Value, error) {
	if len(types) == 0 {
		return nil, &ParamParseError{Input: id, Reason: "table has no primary key"}
	}
	parts := strings.Split(id, recordIDSeparator)
	if len(parts) != len(types) {
		return nil, &ParamParseError{
			Input:  id,
			Reason: fmt.Sprintf("expected %d key parts, got %d", len(types), len(parts)),
		}
	}
	values := make([]Value, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &ParamParseError{Input: id, Reason: fmt.Sprintf("key part %d is empty", i+1)}
		}
		v, err := Cast(part, types[i])
		if err != nil {
			return nil, &ParamParseError{Input: id, Reason: fmt.Sprintf("key part %d", i+1), Err: err}
		}
		values[i] = v
	}
	return values, nil
}

// FormatRecordID renders primary-key values in the form ParseRecordID accepts.
func FormatRecordID(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, recordIDSeparator)
}
