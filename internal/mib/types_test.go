package mib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name      string
		typeLocal string
		text      string
		want      []byte // leading significant bytes
	}{
		{"printable", "a5", "70.00", []byte("70.00")},
		{"nul keeps text", "NUL", "NUL", []byte("NUL")},
		{"raw stays zeroed", "r4", "whatever", []byte{0, 0, 0, 0}},
		{"i1u", "i1u", "200", []byte{200}},
		{"i2u big-endian", "i2u", "4660", []byte{0x12, 0x34}},
		{"i4u big-endian", "i4u", "305419896", []byte{0x12, 0x34, 0x56, 0x78}},
		{"f4 big-endian", "f4", "1.0", []byte{0x3f, 0x80, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := EncodeValue(tt.typeLocal, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, val[:len(tt.want)])
		})
	}
}

func TestEncodeValueErrors(t *testing.T) {
	_, err := EncodeValue("i2u", "not-a-number")
	assert.Error(t, err)
	_, err = EncodeValue("i1u", "300") // out of range for one byte
	assert.Error(t, err)
	_, err = EncodeValue("x9", "anything")
	assert.Error(t, err)
}

func TestDisplayValue(t *testing.T) {
	mk := func(typeLocal string, val []byte) *Record {
		rec := &Record{Kind: KindValue, TypeLocal: typeLocal}
		rec.SetRaw(val)
		return rec
	}

	tests := []struct {
		name string
		rec  *Record
		want string
	}{
		{"nul", mk("NUL", []byte("NUL")), "NUL"},
		{"printable", mk("a5", []byte("70.00")), "70.00"},
		{"raw placeholder", mk("r16", []byte{1, 2, 3}), "@..."},
		{"i1u", mk("i1u", []byte{200}), "200"},
		{"i2u", mk("i2u", []byte{0x12, 0x34}), "4660"},
		{"i4u", mk("i4u", []byte{0x12, 0x34, 0x56, 0x78}), "305419896"},
		{"f4", mk("f4", []byte{0x3f, 0x80, 0, 0}), "1.000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayValue(tt.rec))
		})
	}
}

func TestEncodeDisplayRoundTrip(t *testing.T) {
	for _, tt := range []struct{ typeLocal, text string }{
		{"i1u", "7"},
		{"i2u", "65535"},
		{"i4u", "4294967295"},
		{"a10", "hello"},
	} {
		val, err := EncodeValue(tt.typeLocal, tt.text)
		require.NoError(t, err)
		rec := &Record{TypeLocal: tt.typeLocal, Val: val}
		assert.Equal(t, tt.text, DisplayValue(rec), tt.typeLocal)
	}
}
