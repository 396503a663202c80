package value

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/cast"

	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

// FromDriver converts a raw database/sql scan result into a Value using only its Go type.
// Use Cast when the declared column type is known.
func FromDriver(raw any) Value {
	switch typed := raw.(type) {
	case nil:
		return Null()
	case Value:
		return typed
	case bool:
		return Bool(typed)
	case int16:
		return Int16(typed)
	case int32:
		return Int32(typed)
	case int:
		return Int64(int64(typed))
	case int64:
		return Int64(typed)
	case float32:
		return Float32(typed)
	case float64:
		return Float64(typed)
	case []byte:
		return Blob(append([]byte(nil), typed...))
	case string:
		return Text(typed)
	case [16]byte:
		return UUID(uuid.UUID(typed))
	case uuid.UUID:
		return UUID(typed)
	case time.Time:
		return Timestamp(typed)
	case pgtype.Numeric:
		return Decimal(typed)
	default:
		return Text(fmt.Sprint(typed))
	}
}

// Cast converts raw into the Value variant declared by t. The driver may hand back
// loosely typed data (numerics as text, uuids as strings), so every fetched value
// passes through here before it reaches callers.
func Cast(raw any, t sqltype.Type) (Value, error) {
	if v, ok := raw.(Value); ok {
		if v.IsNull() {
			return v, nil
		}
		raw = v.Any()
	}
	if raw == nil {
		return Null(), nil
	}
	if b, ok := raw.([]byte); ok && t != sqltype.TypeBlob && t != sqltype.TypeUUID {
		raw = string(b)
	}

	switch t {
	case sqltype.TypeBool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return Null(), castError(raw, t, err)
		}
		return Bool(b), nil
	case sqltype.TypeInt16, sqltype.TypeInt32, sqltype.TypeInt64:
		return castInteger(raw, t)
	case sqltype.TypeFloat32:
		f, err := cast.ToFloat32E(raw)
		if err != nil {
			return Null(), castError(raw, t, err)
		}
		return Float32(f), nil
	case sqltype.TypeFloat64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return Null(), castError(raw, t, err)
		}
		return Float64(f), nil
	case sqltype.TypeDecimal:
		return castDecimal(raw)
	case sqltype.TypeBlob:
		switch typed := raw.(type) {
		case []byte:
			return Blob(typed), nil
		case string:
			return Blob([]byte(typed)), nil
		}
		return Null(), castError(raw, t, nil)
	case sqltype.TypeChar:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Null(), castError(raw, t, err)
		}
		if s == "" {
			return Null(), nil
		}
		r, _ := utf8.DecodeRuneInString(s)
		return Char(r), nil
	case sqltype.TypeUUID:
		return castUUID(raw)
	case sqltype.TypeDate, sqltype.TypeTimestamp:
		tm, err := cast.ToTimeE(raw)
		if err != nil {
			return Null(), castError(raw, t, err)
		}
		if t == sqltype.TypeDate {
			return Date(tm), nil
		}
		return Timestamp(tm), nil
	default:
		if tm, ok := raw.(time.Time); ok {
			return Text(tm.Format(time.RFC3339Nano)), nil
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Text(fmt.Sprint(raw)), nil
		}
		return Text(s), nil
	}
}

// CastTo converts v to the variant declared by t.
func (v Value) CastTo(t sqltype.Type) (Value, error) {
	return Cast(v, t)
}

func castInteger(raw any, t sqltype.Type) (Value, error) {
	var (
		i   int64
		err error
	)
	if s, ok := raw.(string); ok {
		i, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	} else {
		i, err = cast.ToInt64E(raw)
	}
	if err != nil {
		return Null(), castError(raw, t, err)
	}
	switch t {
	case sqltype.TypeInt16:
		if i < -1<<15 || i > 1<<15-1 {
			return Null(), castError(raw, t, fmt.Errorf("out of range"))
		}
		return Int16(int16(i)), nil
	case sqltype.TypeInt32:
		if i < -1<<31 || i > 1<<31-1 {
			return Null(), castError(raw, t, fmt.Errorf("out of range"))
		}
		return Int32(int32(i)), nil
	default:
		return Int64(i), nil
	}
}

func castDecimal(raw any) (Value, error) {
	switch typed := raw.(type) {
	case pgtype.Numeric:
		return Decimal(typed), nil
	case string:
		return DecimalFromString(strings.TrimSpace(typed))
	case float32, float64:
		f, _ := cast.ToFloat64E(typed)
		return DecimalFromString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	i, err := cast.ToInt64E(raw)
	if err != nil {
		return Null(), castError(raw, sqltype.TypeDecimal, err)
	}
	return Decimal(pgtype.Numeric{Int: big.NewInt(i), Valid: true}), nil
}

func castUUID(raw any) (Value, error) {
	switch typed := raw.(type) {
	case uuid.UUID:
		return UUID(typed), nil
	case [16]byte:
		return UUID(uuid.UUID(typed)), nil
	case []byte:
		if len(typed) == 16 {
			u, err := uuid.FromBytes(typed)
			if err != nil {
				return Null(), castError(raw, sqltype.TypeUUID, err)
			}
			return UUID(u), nil
		}
		raw = string(typed)
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return Null(), castError(raw, sqltype.TypeUUID, err)
	}
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return Null(), castError(raw, sqltype.TypeUUID, err)
	}
	return UUID(u), nil
}

func castError(raw any, t sqltype.Type, err error) error {
	if err == nil {
		return fmt.Errorf("cannot cast %T to %s", raw, t)
	}
	return fmt.Errorf("cannot cast %T to %s: %w", raw, t, err)
}
