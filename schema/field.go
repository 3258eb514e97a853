// Package schema implements the self-describing per-point record layout:
// an ordered table of heterogeneous fields, including sub-byte bitfields,
// with byte/bit offset assignment and lookup by position, name and id.
package schema

import (
	"github.com/geodatakit/hspc/format"
)

// Field is one entry of the per-point record schema.
//
// ByteOffset, BitOffset and Position are assigned by the owning Schema;
// callers populate the remaining attributes and hand the field to
// Schema.AddField.
type Field struct {
	ID          format.FieldID
	Name        string
	Description string
	DataType    format.DataType

	// BitSize is the logical width of the field in bits. It must be
	// positive for a valid field.
	BitSize int

	// ByteOffset is the byte position of the field inside the record.
	// BitOffset is the bit cursor within the starting byte for sub-byte
	// fields; it is byte-aligned (a multiple of 8, normalized to 0) for
	// whole-byte fields. Both are recomputed by Schema.CalculateSizes.
	ByteOffset int
	BitOffset  int

	Required bool
	Active   bool
	Numeric  bool
	Signed   bool
	Integer  bool

	// Scaled/Offseted govern whether Scale/Offset take part in raw/logical
	// value conversion: logical = raw*Scale + Offset.
	Scaled   bool
	Offseted bool
	Scale    float64
	Offset   float64

	// Precise marks fields whose logical value has finite precision, that
	// is, fields that round-trip exactly through the scale/offset
	// transform.
	Precise bool

	// Min/Max are value statistics carried in the serialized definition.
	Min float64
	Max float64

	// Position is the insertion-order index inside the schema.
	Position uint32
}

// NewField returns a field with the given identity and width, scale 1 and
// offset 0, not yet bound to a schema.
func NewField(id format.FieldID, name string, dataType format.DataType, sizeInBits int) Field {
	return Field{
		ID:       id,
		Name:     name,
		DataType: dataType,
		BitSize:  sizeInBits,
		Scale:    1.0,
		Offset:   0.0,
	}
}

// ByteSize returns the physical serialization width: ceil(BitSize / 8).
func (f Field) ByteSize() int {
	return (f.BitSize + 7) / 8
}

// Valid reports whether the field has a positive bit width.
func (f Field) Valid() bool {
	return f.BitSize > 0
}

// EffectiveScale returns Scale when scaling is enabled, else 1.
func (f Field) EffectiveScale() float64 {
	if f.Scaled {
		return f.Scale
	}

	return 1.0
}

// EffectiveOffset returns Offset when offsetting is enabled, else 0.
func (f Field) EffectiveOffset() float64 {
	if f.Offseted {
		return f.Offset
	}

	return 0.0
}

// Transformed reports whether the field participates in the scale/offset
// transform.
func (f Field) Transformed() bool {
	return f.Scaled || f.Offseted
}

// Equal compares the attributes that define a field's wire identity and
// record layout. Flags that are derived from the data type on load rather
// than serialized (required, active, numeric, signed, integer) do not take
// part, and neither does the description, which is truncated to its fixed
// wire width.
func (f Field) Equal(other Field) bool {
	return f.ID == other.ID &&
		f.Name == other.Name &&
		f.DataType == other.DataType &&
		f.BitSize == other.BitSize &&
		f.Scaled == other.Scaled &&
		f.Offseted == other.Offseted &&
		f.Scale == other.Scale &&
		f.Offset == other.Offset &&
		f.Min == other.Min &&
		f.Max == other.Max &&
		f.ByteOffset == other.ByteOffset &&
		f.BitOffset == other.BitOffset
}

// BandDesc describes one spectral band to be added to a schema.
type BandDesc struct {
	Type        format.DataType
	Name        string
	Description string
}
