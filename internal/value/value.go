// Package value defines the tagged value union exchanged with the database,
// along with ordered records and row sets built from it.
package value

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindBlob
	KindChar
	KindText
	KindUUID
	KindDate
	KindTimestamp
)

var kindNames = [...]string{
	KindNull:      "Null",
	KindBool:      "Bool",
	KindInt16:     "Int16",
	KindInt32:     "Int32",
	KindInt64:     "Int64",
	KindFloat32:   "Float32",
	KindFloat64:   "Float64",
	KindDecimal:   "Decimal",
	KindBlob:      "Blob",
	KindChar:      "Char",
	KindText:      "Text",
	KindUUID:      "Uuid",
	KindDate:      "Date",
	KindTimestamp: "Timestamp",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

const dateLayout = "2006-01-02"

// Value is a single typed database value. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	num   pgtype.Numeric
	bytes []byte
	s     string
	r     rune
	u     uuid.UUID
	t     time.Time
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int16(i int16) Value { return Value{kind: KindInt16, i: int64(i)} }
func Int32(i int32) Value { return Value{kind: KindInt32, i: int64(i)} }
func Int64(i int64) Value { return Value{kind: KindInt64, i: i} }
func Float32(f float32) Value { return Value{kind: KindFloat32, f: float64(f)} }
func Float64(f float64) Value { return Value{kind: KindFloat64, f: f} }
func Blob(b []byte) Value { return Value{kind: KindBlob, bytes: b} }
func Char(r rune) Value { return Value{kind: KindChar, r: r} }
func Text(s string) Value { return Value{kind: KindText, s: s} }
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

// Date keeps only the calendar day of t.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Decimal wraps an arbitrary-precision numeric. An invalid numeric is Null.
func Decimal(n pgtype.Numeric) Value {
	if !n.Valid {
		return Null()
	}
	return Value{kind: KindDecimal, num: n}
}

// DecimalFromString parses a decimal literal such as "12.50".
func DecimalFromString(s string) (Value, error) {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return Null(), fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal(n), nil
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the absent value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Numeric returns the decimal payload; ok is false for other kinds.
func (v Value) Numeric() (pgtype.Numeric, bool) {
	return v.num, v.kind == KindDecimal
}

// AsInt64 returns integer payloads; ok is false for non-integer kinds.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt16, KindInt32, KindInt64:
		return v.i, true
	default:
		return 0, false
	}
}

// AsString returns text and char payloads; ok is false for other kinds.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindText:
		return v.s, true
	case KindChar:
		return string(v.r), true
	default:
		return "", false
	}
}

// Any returns the plain Go representation of v.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt16:
		return int16(v.i)
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindDecimal:
		return v.decimalString()
	case KindBlob:
		return v.bytes
	case KindChar:
		return string(v.r)
	case KindText:
		return v.s
	case KindUUID:
		return v.u
	case KindDate, KindTimestamp:
		return v.t
	default:
		return nil
	}
}

// Value implements driver.Valuer so a Value can be bound directly as a query argument.
func (v Value) Value() (driver.Value, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt16, KindInt32, KindInt64:
		return v.i, nil
	case KindFloat32, KindFloat64:
		return v.f, nil
	case KindDecimal:
		return v.decimalString(), nil
	case KindBlob:
		return v.bytes, nil
	case KindChar:
		return string(v.r), nil
	case KindText:
		return v.s, nil
	case KindUUID:
		return v.u.String(), nil
	case KindDate, KindTimestamp:
		return v.t, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %s", v.kind)
	}
}

// String renders v for display and for composite record ids.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat32:
		return strconv.FormatFloat(v.f, 'f', -1, 32)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindDecimal:
		return v.decimalString()
	case KindBlob:
		return fmt.Sprintf("%x", v.bytes)
	case KindChar:
		return string(v.r)
	case KindText:
		return v.s
	case KindUUID:
		return v.u.String()
	case KindDate:
		return v.t.Format(dateLayout)
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func (v Value) decimalString() string {
	if !v.num.Valid {
		return ""
	}
	if v.num.NaN {
		return "NaN"
	}
	if v.num.Int == nil {
		return "0"
	}
	digits := new(big.Int).Abs(v.num.Int).String()
	sign := ""
	if v.num.Int.Sign() < 0 {
		sign = "-"
	}
	exp := int(v.num.Exp)
	if exp >= 0 {
		return sign + digits + zeros(exp)
	}
	scale := -exp
	if len(digits) <= scale {
		digits = zeros(scale-len(digits)+1) + digits
	}
	point := len(digits) - scale
	return sign + digits[:point] + "." + digits[point:]
}

func zeros(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = '0'
	}
	return string(out)
}

// Equal reports whether a and b hold the same variant and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBlob:
		return string(v.bytes) == string(other.bytes)
	case KindDate, KindTimestamp:
		return v.t.Equal(other.t)
	default:
		return v.String() == other.String()
	}
}

// MarshalJSON renders v as a plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt16, KindInt32, KindInt64:
		return json.Marshal(v.i)
	case KindFloat32, KindFloat64:
		return json.Marshal(v.f)
	case KindBlob:
		return json.Marshal(v.bytes)
	default:
		return json.Marshal(v.String())
	}
}

// UnmarshalJSON decodes a loosely typed scalar. Integral numbers become Int64,
// other numbers Float64 and strings Text; callers re-cast to the declared column type.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(typed)
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			*v = Int64(i)
			return nil
		}
		f, err := typed.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", typed.String(), err)
		}
		*v = Float64(f)
	case string:
		*v = Text(typed)
	default:
		return fmt.Errorf("unsupported JSON value %T", raw)
	}
	return nil
}
