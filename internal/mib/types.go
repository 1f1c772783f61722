package mib

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lwa-project/mcs"
)

// Type codes controlling value-buffer interpretation:
//
//	NUL    no semantics (branch heads)
//	a####  #### printable ASCII characters
//	r####  #### opaque bytes
//	i1u    unsigned big-endian integer, 1 byte
//	i2u    unsigned big-endian integer, 2 bytes
//	i4u    unsigned big-endian integer, 4 bytes
//	f4     IEEE-754 big-endian single-precision float

// parsePort parses a decimal port number from a value buffer.
func parsePort(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// EncodeValue serializes the textual VALUE column of an init file into
// a value buffer according to the local type code. Raw types leave the
// buffer zeroed; numeric types are parsed from decimal and re-serialized
// big-endian.
func EncodeValue(typeLocal, text string) ([mcs.MIBValFieldLength]byte, error) {
	var val [mcs.MIBValFieldLength]byte
	switch {
	case strings.HasPrefix(typeLocal, "NUL"):
		copy(val[:], text)
	case strings.HasPrefix(typeLocal, "a"):
		copy(val[:], text)
	case strings.HasPrefix(typeLocal, "r"):
		// opaque; nothing meaningful to parse from text
	case strings.HasPrefix(typeLocal, "i1u"):
		n, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return val, mcs.WrapError("encode "+typeLocal, mcs.ErrCodeBadConfig, err)
		}
		val[0] = byte(n)
	case strings.HasPrefix(typeLocal, "i2u"):
		n, err := strconv.ParseUint(text, 10, 16)
		if err != nil {
			return val, mcs.WrapError("encode "+typeLocal, mcs.ErrCodeBadConfig, err)
		}
		binary.BigEndian.PutUint16(val[0:2], uint16(n))
	case strings.HasPrefix(typeLocal, "i4u"):
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return val, mcs.WrapError("encode "+typeLocal, mcs.ErrCodeBadConfig, err)
		}
		binary.BigEndian.PutUint32(val[0:4], uint32(n))
	case strings.HasPrefix(typeLocal, "f4"):
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return val, mcs.WrapError("encode "+typeLocal, mcs.ErrCodeBadConfig, err)
		}
		binary.BigEndian.PutUint32(val[0:4], math.Float32bits(float32(f)))
	default:
		return val, mcs.NewError("encode value", mcs.ErrCodeBadConfig, "unknown type code "+typeLocal)
	}
	return val, nil
}

// DisplayValue renders a record's value buffer for the reader
// utilities: NUL prints "NUL", printable types print as-is, raw types
// print a placeholder, integer and float types decode to decimal.
func DisplayValue(rec *Record) string {
	t := rec.TypeLocal
	switch {
	case strings.HasPrefix(t, "NUL"):
		return "NUL"
	case strings.HasPrefix(t, "a"):
		return rec.Text()
	case strings.HasPrefix(t, "r"):
		return "@..."
	case strings.HasPrefix(t, "i1u"):
		return strconv.FormatUint(uint64(rec.Val[0]), 10)
	case strings.HasPrefix(t, "i2u"):
		return strconv.FormatUint(uint64(binary.BigEndian.Uint16(rec.Val[0:2])), 10)
	case strings.HasPrefix(t, "i4u"):
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(rec.Val[0:4])), 10)
	case strings.HasPrefix(t, "f4"):
		f := math.Float32frombits(binary.BigEndian.Uint32(rec.Val[0:4]))
		return fmt.Sprintf("%f", f)
	}
	return rec.Text()
}
