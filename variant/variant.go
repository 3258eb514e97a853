// Package variant provides the type-tagged value container used for
// field-level point record I/O.
//
// A Variant carries exactly one value drawn from the schema data types:
// an arbitrary-width bitset, a C string, a fixed-width integer, a float,
// or an opaque byte slice. Numeric extraction performs best-effort
// conversion across every numeric kind; narrowing conversions truncate.
package variant

import (
	"github.com/geodatakit/hspc/format"
)

// Variant is a tagged union over the schema value types.
//
// The zero Variant is empty: its Type is format.TypeUnknown and every
// extractor fails.
type Variant struct {
	kind format.DataType
	u    uint64 // integer payload, two's complement for signed kinds
	f    float64
	s    string
	bits Bitset
	b    []byte
}

// Empty returns an empty Variant.
func Empty() Variant {
	return Variant{kind: format.TypeUnknown}
}

func FromUint8(v uint8) Variant   { return Variant{kind: format.TypeUint8, u: uint64(v)} }
func FromUint16(v uint16) Variant { return Variant{kind: format.TypeUint16, u: uint64(v)} }
func FromInt16(v int16) Variant   { return Variant{kind: format.TypeInt16, u: uint64(int64(v))} }
func FromUint32(v uint32) Variant { return Variant{kind: format.TypeUint32, u: uint64(v)} }
func FromInt32(v int32) Variant   { return Variant{kind: format.TypeInt32, u: uint64(int64(v))} }
func FromUint64(v uint64) Variant { return Variant{kind: format.TypeUint64, u: v} }
func FromInt64(v int64) Variant   { return Variant{kind: format.TypeInt64, u: uint64(v)} }
func FromFloat32(v float32) Variant {
	return Variant{kind: format.TypeFloat32, f: float64(v)}
}
func FromFloat64(v float64) Variant { return Variant{kind: format.TypeFloat64, f: v} }

// FromString wraps a C string value.
func FromString(v string) Variant { return Variant{kind: format.TypeChar, s: v} }

// FromBitset wraps an arbitrary-width bitset value.
func FromBitset(v Bitset) Variant { return Variant{kind: format.TypeBit, bits: v} }

// FromBytes wraps an opaque byte vector. Byte vectors take part in
// equality but not in numeric conversion.
func FromBytes(v []byte) Variant { return Variant{kind: format.TypeByteSlice, b: v} }

// Type returns the data type tag of the stored value.
func (v Variant) Type() format.DataType { return v.kind }

// IsEmpty reports whether the variant holds no value.
func (v Variant) IsEmpty() bool { return v.kind == format.TypeUnknown }

// IsType reports whether the stored value has the given type tag.
func (v Variant) IsType(t format.DataType) bool { return v.kind == t }

// BitSize returns the width of the stored value in bits. Bitsets report
// their actual length and strings report len*8.
func (v Variant) BitSize() (int, bool) {
	switch v.kind {
	case format.TypeBit:
		return v.bits.Size(), true
	case format.TypeChar:
		return len(v.s) * 8, true
	case format.TypeByteSlice:
		return len(v.b) * 8, true
	default:
		if s := v.kind.Size(); s > 0 {
			return s * 8, true
		}

		return 0, false
	}
}

// ByteSize returns the width of the stored value in bytes.
func (v Variant) ByteSize() (int, bool) {
	bits, ok := v.BitSize()
	if !ok {
		return 0, false
	}

	return (bits + 7) / 8, true
}

// asUint64 reduces any numeric payload to a uint64 bit pattern. Bitsets
// convert through their unsigned integer value; floats truncate.
func (v Variant) asUint64() (uint64, bool) {
	switch v.kind {
	case format.TypeBit:
		return v.bits.Uint64(), true
	case format.TypeUint8, format.TypeUint16, format.TypeUint32, format.TypeUint64,
		format.TypeInt16, format.TypeInt32, format.TypeInt64:
		return v.u, true
	case format.TypeFloat32, format.TypeFloat64:
		return uint64(int64(v.f)), true
	default:
		return 0, false
	}
}

// asFloat64 reduces any numeric payload to a float64.
func (v Variant) asFloat64() (float64, bool) {
	switch v.kind {
	case format.TypeBit:
		return float64(v.bits.Uint64()), true
	case format.TypeUint8, format.TypeUint16, format.TypeUint32, format.TypeUint64:
		return float64(v.u), true
	case format.TypeInt16, format.TypeInt32, format.TypeInt64:
		return float64(int64(v.u)), true
	case format.TypeFloat32, format.TypeFloat64:
		return v.f, true
	default:
		return 0, false
	}
}

// Uint8 extracts the value as a uint8. Narrower targets truncate.
func (v Variant) Uint8() (uint8, bool) {
	u, ok := v.asUint64()
	return uint8(u), ok
}

// Int16 extracts the value as an int16.
func (v Variant) Int16() (int16, bool) {
	u, ok := v.asUint64()
	return int16(u), ok
}

// Uint16 extracts the value as a uint16.
func (v Variant) Uint16() (uint16, bool) {
	u, ok := v.asUint64()
	return uint16(u), ok
}

// Int32 extracts the value as an int32.
func (v Variant) Int32() (int32, bool) {
	u, ok := v.asUint64()
	return int32(u), ok
}

// Uint32 extracts the value as a uint32.
func (v Variant) Uint32() (uint32, bool) {
	u, ok := v.asUint64()
	return uint32(u), ok
}

// Int64 extracts the value as an int64.
func (v Variant) Int64() (int64, bool) {
	u, ok := v.asUint64()
	return int64(u), ok
}

// Uint64 extracts the value as a uint64.
func (v Variant) Uint64() (uint64, bool) {
	return v.asUint64()
}

// Float32 extracts the value as a float32.
func (v Variant) Float32() (float32, bool) {
	f, ok := v.asFloat64()
	return float32(f), ok
}

// Float64 extracts the value as a float64.
func (v Variant) Float64() (float64, bool) {
	return v.asFloat64()
}

// StringValue extracts a C string value. Extraction fails for every other
// kind: there is no implicit numeric formatting.
func (v Variant) StringValue() (string, bool) {
	if v.kind != format.TypeChar {
		return "", false
	}

	return v.s, true
}

// Bits extracts a bitset value.
func (v Variant) Bits() (Bitset, bool) {
	if v.kind != format.TypeBit {
		return Bitset{}, false
	}

	return v.bits, true
}

// Bytes extracts an opaque byte vector.
func (v Variant) Bytes() ([]byte, bool) {
	if v.kind != format.TypeByteSlice {
		return nil, false
	}

	return v.b, true
}

// Equal reports whether two variants carry the same type tag and the same
// value.
func (v Variant) Equal(other Variant) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case format.TypeUnknown:
		return true
	case format.TypeBit:
		return v.bits.Equal(other.bits)
	case format.TypeChar:
		return v.s == other.s
	case format.TypeByteSlice:
		if len(v.b) != len(other.b) {
			return false
		}
		for i := range v.b {
			if v.b[i] != other.b[i] {
				return false
			}
		}

		return true
	case format.TypeFloat32, format.TypeFloat64:
		return v.f == other.f
	default:
		return v.u == other.u
	}
}
