package row

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		value Value
		want  ValueType
	}{
		{Text("x"), TypeText},
		{Integer(1), TypeInteger},
		{Number(1.5), TypeNumber},
		{Boolean(true), TypeBoolean},
		{Binary{0x01}, TypeBinary},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeOf(tt.value))
	}
	assert.Equal(t, "null", Describe(nil))
	assert.Equal(t, "integer", Describe(Integer(3)))
}

func TestMarshalValues_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalValues(Record{Text("<doc>a &amp; b</doc>"), Integer(7), nil, Boolean(false)})
	require.NoError(t, err)
	assert.Equal(t, `["<doc>a &amp; b</doc>",7,null,false]`, string(data))
}

func TestUnmarshalValues(t *testing.T) {
	s := Schema{
		{Name: "id", Type: TypeInteger},
		{Name: "payload", Type: TypeText},
		{Name: "score", Type: TypeNumber},
		{Name: "blob", Type: TypeBinary},
		{Name: "flag", Type: TypeBoolean},
	}

	rec, err := UnmarshalValues([]byte(`[42,"<a/>",1.25,"AQI=",true]`), s)
	require.NoError(t, err)
	assert.Equal(t, Record{Integer(42), Text("<a/>"), Number(1.25), Binary{0x01, 0x02}, Boolean(true)}, rec)
}

func TestUnmarshalValues_RuntimeTypeWins(t *testing.T) {
	s := Schema{{Name: "payload", Type: TypeText}}

	rec, err := UnmarshalValues([]byte(`[12]`), s)
	require.NoError(t, err)
	assert.Equal(t, Integer(12), rec[0])
}

func TestUnmarshalValues_LengthMismatch(t *testing.T) {
	s := Schema{{Name: "a", Type: TypeText}}

	_, err := UnmarshalValues([]byte(`["x","y"]`), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 values")
}

func TestMarshalValues_RoundTripBinary(t *testing.T) {
	s := Schema{{Name: "blob", Type: TypeBinary}}
	in := Record{Binary("hello")}

	data, err := MarshalValues(in)
	require.NoError(t, err)
	out, err := UnmarshalValues(data, s)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
