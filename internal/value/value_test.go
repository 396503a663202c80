package value

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

func TestCast(t *testing.T) {
	id := uuid.MustParse("9b2f3f0e-7c1a-4c55-9f77-0a4a0f1c2d3e")
	ts := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  any
		typ  sqltype.Type
		want Value
	}{
		{"nil is null", nil, sqltype.TypeInt32, Null()},
		{"int from string", "42", sqltype.TypeInt32, Int32(42)},
		{"leading zero stays decimal", "08", sqltype.TypeInt64, Int64(8)},
		{"int16 from int64", int64(7), sqltype.TypeInt16, Int16(7)},
		{"bool from string", "true", sqltype.TypeBool, Bool(true)},
		{"float from bytes", []byte("1.5"), sqltype.TypeFloat64, Float64(1.5)},
		{"text from bytes", []byte("hello"), sqltype.TypeText, Text("hello")},
		{"uuid from string", id.String(), sqltype.TypeUUID, UUID(id)},
		{"uuid from raw bytes", id[:], sqltype.TypeUUID, UUID(id)},
		{"timestamp", ts, sqltype.TypeTimestamp, Timestamp(ts)},
		{"date truncates", ts, sqltype.TypeDate, Date(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))},
		{"char takes first rune", "x", sqltype.TypeChar, Char('x')},
		{"unknown renders as text", []byte(`{"a":1}`), sqltype.TypeUnknown, Text(`{"a":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cast(tt.raw, tt.typ)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s (%s), want %s (%s)", got, got.Kind(), tt.want, tt.want.Kind())
		})
	}
}

func TestCast_Decimal(t *testing.T) {
	got, err := Cast("12.50", sqltype.TypeDecimal)
	require.NoError(t, err)
	assert.Equal(t, KindDecimal, got.Kind())
	assert.Equal(t, "12.50", got.String())

	got, err = Cast(int64(3), sqltype.TypeDecimal)
	require.NoError(t, err)
	assert.Equal(t, "3", got.String())

	got, err = Cast("-0.05", sqltype.TypeDecimal)
	require.NoError(t, err)
	assert.Equal(t, "-0.05", got.String())
}

func TestCast_Errors(t *testing.T) {
	_, err := Cast("abc", sqltype.TypeInt32)
	assert.Error(t, err)

	_, err = Cast("70000", sqltype.TypeInt16)
	assert.Error(t, err)

	_, err = Cast("not-a-uuid", sqltype.TypeUUID)
	assert.Error(t, err)
}

func TestCastTo_ReinterpretsLooseValues(t *testing.T) {
	loose := Int64(5)
	got, err := loose.CastTo(sqltype.TypeInt16)
	require.NoError(t, err)
	assert.Equal(t, KindInt16, got.Kind())

	got, err = Text("2024-01-02").CastTo(sqltype.TypeDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", got.String())

	got, err = Null().CastTo(sqltype.TypeUUID)
	require.NoError(t, err)
	assert.True(t, got.IsNull())
}

func TestValue_DriverValue(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		v    Value
		want any
	}{
		{"null", Null(), nil},
		{"int16 widens", Int16(3), int64(3)},
		{"uuid as string", UUID(id), id.String()},
		{"char as string", Char('a'), "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.v.Value()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	dec, err := DecimalFromString("99.95")
	require.NoError(t, err)
	got, err := dec.Value()
	require.NoError(t, err)
	assert.Equal(t, "99.95", got)
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`12`), &v))
	assert.Equal(t, KindInt64, v.Kind())

	require.NoError(t, json.Unmarshal([]byte(`1.25`), &v))
	assert.Equal(t, KindFloat64, v.Kind())

	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &v))
	assert.Equal(t, Text("abc"), v)

	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.True(t, v.IsNull())

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &v))
}

func TestRecord_PreservesOrder(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"last_name":"Doe","first_name":"Jane","actor_id":3}`), &rec))
	assert.Equal(t, []string{"last_name", "first_name", "actor_id"}, rec.Columns())
	assert.Equal(t, Int64(3), rec.Get("actor_id"))

	out, err := json.Marshal(&rec)
	require.NoError(t, err)
	assert.Equal(t, `{"last_name":"Doe","first_name":"Jane","actor_id":3}`, string(out))
}

func TestRecord_SetGetDelete(t *testing.T) {
	rec := NewRecord()
	rec.Set("a", Int32(1))
	rec.Set("b", Null())
	rec.Set("a", Int32(2))

	assert.Equal(t, []string{"a", "b"}, rec.Columns())
	assert.Equal(t, Int32(2), rec.Get("a"))
	assert.True(t, rec.Has("b"))
	assert.False(t, rec.Has("c"))
	assert.True(t, rec.Get("c").IsNull())

	clone := rec.Clone()
	rec.Delete("a")
	assert.Equal(t, []string{"b"}, rec.Columns())
	assert.Equal(t, 2, clone.Len())
}

func TestRows_Records(t *testing.T) {
	rows := NewRows([]string{"id", "name"})
	require.NoError(t, rows.Push([]Value{Int32(1), Text("one")}))
	require.Error(t, rows.Push([]Value{Int32(2)}))

	records := rows.Records()
	require.Len(t, records, 1)
	assert.Equal(t, Text("one"), records[0].Get("name"))

	merged := RowsFromRecords([]*Record{records[0], mustRecord(t, []string{"extra"}, []Value{Bool(true)})})
	assert.Equal(t, []string{"id", "name", "extra"}, merged.Columns)
	assert.True(t, merged.Data[1][0].IsNull())
}

func TestParseRecordID(t *testing.T) {
	values, err := ParseRecordID("3,7", []sqltype.Type{sqltype.TypeInt32, sqltype.TypeInt64})
	require.NoError(t, err)
	assert.Equal(t, []Value{Int32(3), Int64(7)}, values)
	assert.Equal(t, "3,7", FormatRecordID(values))

	tests := []struct {
		name  string
		id    string
		types []sqltype.Type
	}{
		{"too few parts", "3", []sqltype.Type{sqltype.TypeInt32, sqltype.TypeInt32}},
		{"too many parts", "1,2,3", []sqltype.Type{sqltype.TypeInt32}},
		{"empty part", "1,", []sqltype.Type{sqltype.TypeInt32, sqltype.TypeInt32}},
		{"bad type", "abc", []sqltype.Type{sqltype.TypeInt32}},
		{"no key", "1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecordID(tt.id, tt.types)
			var parseErr *ParamParseError
			require.True(t, errors.As(err, &parseErr), "expected ParamParseError, got %v", err)
			assert.Equal(t, tt.id, parseErr.Input)
		})
	}
}

func mustRecord(t *testing.T, columns []string, values []Value) *Record {
	t.Helper()
	rec, err := RecordOf(columns, values)
	require.NoError(t, err)
	return rec
}
