// Package sqltype provides a shared mapping from PostgreSQL data types to value kinds.
// It keeps type decisions consistent between introspection, query planning and value casting.
package sqltype

import "strings"

// Type is the category a column's declared SQL type maps to.
type Type int

const (
	// TypeUnknown covers types the value union cannot represent natively.
	// Such columns are selected with a ::text cast and surfaced as Text.
	TypeUnknown Type = iota
	TypeBool
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeBlob
	TypeChar
	TypeText
	TypeUUID
	TypeDate
	TypeTimestamp
)

var typeNames = map[Type]string{
	TypeUnknown:   "Unknown",
	TypeBool:      "Bool",
	TypeInt16:     "Int16",
	TypeInt32:     "Int32",
	TypeInt64:     "Int64",
	TypeFloat32:   "Float32",
	TypeFloat64:   "Float64",
	TypeDecimal:   "Decimal",
	TypeBlob:      "Blob",
	TypeChar:      "Char",
	TypeText:      "Text",
	TypeUUID:      "Uuid",
	TypeDate:      "Date",
	TypeTimestamp: "Timestamp",
}

// String returns the type category name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the category name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a category name; unrecognized names become TypeUnknown.
func (t *Type) UnmarshalText(text []byte) error {
	for candidate, name := range typeNames {
		if name == string(text) {
			*t = candidate
			return nil
		}
	}
	*t = TypeUnknown
	return nil
}

// NeedsTextCast reports whether values of this type must be read back as text.
func (t Type) NeedsTextCast() bool {
	return t == TypeUnknown
}

// IsNumeric reports whether the type orders numerically.
func (t Type) IsNumeric() bool {
	switch t {
	case TypeInt16, TypeInt32, TypeInt64, TypeFloat32, TypeFloat64, TypeDecimal:
		return true
	default:
		return false
	}
}

// Map converts a PostgreSQL data type (information_schema.columns.data_type or a
// format_type() rendering) to its type category. Matching is case-insensitive and
// size specifiers such as (10,2) or (255) are ignored.
func Map(sqlType string) Type {
	normalized := strings.ToLower(strings.TrimSpace(sqlType))
	if open := strings.Index(normalized, "("); open != -1 {
		rest := ""
		if end := strings.Index(normalized, ")"); end > open {
			rest = normalized[end+1:]
		}
		normalized = strings.TrimSpace(normalized[:open] + rest)
	}
	if strings.HasSuffix(normalized, "[]") {
		return TypeUnknown
	}
	switch normalized {
	case "bool", "boolean":
		return TypeBool
	case "int2", "smallint", "smallserial":
		return TypeInt16
	case "int", "int4", "integer", "serial":
		return TypeInt32
	case "int8", "bigint", "bigserial":
		return TypeInt64
	case "float4", "real":
		return TypeFloat32
	case "float8", "double precision":
		return TypeFloat64
	case "numeric", "decimal":
		return TypeDecimal
	case "bytea":
		return TypeBlob
	case "\"char\"":
		return TypeChar
	case "text", "varchar", "character varying", "character", "char", "bpchar", "name", "citext":
		return TypeText
	case "uuid":
		return TypeUUID
	case "date":
		return TypeDate
	case "timestamp", "timestamptz",
		"timestamp without time zone", "timestamp with time zone":
		return TypeTimestamp
	default:
		return TypeUnknown
	}
}
