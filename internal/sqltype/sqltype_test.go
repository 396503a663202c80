package sqltype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_IntegerTypes(t *testing.T) {
	tests := map[string]Type{
		"smallint":    TypeInt16,
		"INT2":        TypeInt16,
		"integer":     TypeInt32,
		"serial":      TypeInt32,
		"int4":        TypeInt32,
		"bigint":      TypeInt64,
		"BIGSERIAL":   TypeInt64,
		"smallserial": TypeInt16,
	}
	for sqlType, expected := range tests {
		t.Run(sqlType, func(t *testing.T) {
			assert.Equal(t, expected, Map(sqlType))
			assert.True(t, Map(sqlType).IsNumeric())
		})
	}
}

func TestMap_SizedTypes(t *testing.T) {
	assert.Equal(t, TypeDecimal, Map("numeric(10,2)"))
	assert.Equal(t, TypeText, Map("character varying(255)"))
	assert.Equal(t, TypeText, Map("character(1)"))
	assert.Equal(t, TypeChar, Map(`"char"`))
	assert.Equal(t, TypeTimestamp, Map("timestamp(6) with time zone"))
}

func TestMap_TextAndTemporal(t *testing.T) {
	assert.Equal(t, TypeText, Map("text"))
	assert.Equal(t, TypeText, Map("citext"))
	assert.Equal(t, TypeUUID, Map("uuid"))
	assert.Equal(t, TypeDate, Map("date"))
	assert.Equal(t, TypeTimestamp, Map("timestamp without time zone"))
	assert.Equal(t, TypeBlob, Map("bytea"))
	assert.Equal(t, TypeBool, Map("boolean"))
	assert.Equal(t, TypeFloat64, Map("double precision"))
	assert.Equal(t, TypeFloat32, Map("real"))
}

func TestMap_UnknownTypesNeedTextCast(t *testing.T) {
	for _, sqlType := range []string{"jsonb", "json", "interval", "inet", "tsvector", "integer[]", "USER-DEFINED", ""} {
		t.Run(sqlType, func(t *testing.T) {
			got := Map(sqlType)
			assert.Equal(t, TypeUnknown, got)
			assert.True(t, got.NeedsTextCast())
		})
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "Int32", TypeInt32.String())
	assert.Equal(t, "Uuid", TypeUUID.String())
	assert.Equal(t, "Unknown", Type(99).String())
}

func TestType_TextRoundTrip(t *testing.T) {
	text, err := TypeDecimal.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "Decimal", string(text))

	var parsed Type
	assert.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, TypeDecimal, parsed)

	assert.NoError(t, parsed.UnmarshalText([]byte("tsvector")))
	assert.Equal(t, TypeUnknown, parsed)
}
