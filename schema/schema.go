package schema

import (
	"fmt"

	"github.com/geodatakit/hspc/format"
)

// Schema is the ordered field table describing one point record layout.
//
// Fields are kept in insertion (sequence) order; auxiliary name and id
// indices are rebuilt by CalculateSizes, which must run after every
// mutation. All mutating methods on Schema call it themselves.
type Schema struct {
	pointFormat   format.PointFormat
	nextPosition  uint32
	bitSize       int
	baseBitSize   int
	schemaVersion uint16

	fields []Field
	byName map[string][]int
	byID   map[format.FieldID][]int
}

// New builds a schema holding the required-field skeleton of the given
// point format, in the deterministic preset order.
func New(pointFormat format.PointFormat) *Schema {
	s := &Schema{
		pointFormat:   pointFormat,
		schemaVersion: 1,
	}
	s.updateRequiredFields(pointFormat)

	return s
}

// PointFormat returns the current point format preset.
func (s *Schema) PointFormat() format.PointFormat { return s.pointFormat }

// SchemaVersion returns the schema version carried in the header block.
func (s *Schema) SchemaVersion() uint16 { return s.schemaVersion }

// SetSchemaVersion sets the schema version.
func (s *Schema) SetSchemaVersion(v uint16) { s.schemaVersion = v }

// AddField appends the field to the sequence, assigns the next position
// index and recomputes offsets.
func (s *Schema) AddField(field Field) {
	field.Position = s.nextPosition
	s.nextPosition++
	s.fields = append(s.fields, field)

	s.CalculateSizes()
}

// RemoveField removes the field at the given sequence index and rebuilds
// offsets.
func (s *Schema) RemoveField(index int) bool {
	if index < 0 || index >= len(s.fields) {
		return false
	}
	s.fields = append(s.fields[:index], s.fields[index+1:]...)
	s.CalculateSizes()

	return true
}

// RemoveAllFields empties the schema.
func (s *Schema) RemoveAllFields() {
	s.fields = s.fields[:0]
	s.nextPosition = 0
	s.CalculateSizes()
}

// Field returns the field at the given sequence index.
func (s *Schema) Field(index int) (Field, bool) {
	if index < 0 || index >= len(s.fields) {
		return Field{}, false
	}

	return s.fields[index], true
}

// Fields returns every field with the given name, in sequence order.
func (s *Schema) Fields(name string) []Field {
	idx := s.byName[name]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Field, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.fields[i])
	}

	return out
}

// FieldsByID returns every field with the given id, in sequence order.
func (s *Schema) FieldsByID(id format.FieldID) []Field {
	idx := s.byID[id]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Field, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.fields[i])
	}

	return out
}

// FieldByID returns a pointer to the first field carrying the given id.
// The pointer stays valid until the next schema mutation; callers may
// adjust scale/offset metadata through it without changing the layout.
func (s *Schema) FieldByID(id format.FieldID) (*Field, bool) {
	idx := s.byID[id]
	if len(idx) == 0 {
		return nil, false
	}

	return &s.fields[idx[0]], true
}

// HasField reports whether any field carries the given id.
func (s *Schema) HasField(id format.FieldID) bool {
	return len(s.byID[id]) > 0
}

// FieldCountByID returns the number of fields carrying the given id.
func (s *Schema) FieldCountByID(id format.FieldID) int {
	return len(s.byID[id])
}

// NthIndex returns the sequence index of the n-th (0-based) field carrying
// the given id.
func (s *Schema) NthIndex(id format.FieldID, n int) (int, bool) {
	idx := s.byID[id]
	if n < 0 || n >= len(idx) {
		return 0, false
	}

	return idx[n], true
}

// FieldCount returns the number of fields in the schema.
func (s *Schema) FieldCount() int { return len(s.fields) }

// FieldNames returns the field names in sequence order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}

	return out
}

// BitSize returns the total logical record size in bits.
func (s *Schema) BitSize() int { return s.bitSize }

// ByteSize returns the total record size in bytes: ceil(BitSize / 8).
func (s *Schema) ByteSize() int { return (s.bitSize + 7) / 8 }

// BaseByteSize returns the record size accounting only for fields required
// by the point format.
func (s *Schema) BaseByteSize() int { return (s.baseBitSize + 7) / 8 }

// IsCustom reports whether the schema carries any field beyond the point
// format skeleton. Only custom schemas need their full field table
// persisted; skeleton-only schemas are reconstructible from the format id.
func (s *Schema) IsCustom() bool {
	for i := range s.fields {
		if !s.fields[i].Required {
			return true
		}
	}

	return false
}

// SetDataFormat replaces the required-field skeleton with the new preset
// while preserving previously added user fields in their original relative
// order.
func (s *Schema) SetDataFormat(pointFormat format.PointFormat) {
	s.updateRequiredFields(pointFormat)
	s.pointFormat = pointFormat
}

// CalculateSizes walks the sequence and reassigns every field's byte and
// bit offset, then rebuilds the name and id indices.
//
// Sub-byte fields accumulate a bit cursor inside the current byte; the
// byte cursor only advances once the consumed bits come out byte-aligned.
// Within one shared byte, later fields therefore occupy higher bit
// positions.
func (s *Schema) CalculateSizes() {
	s.bitSize = 0
	s.baseBitSize = 0

	byteOffset := 0
	bitOffset := 0
	for i := range s.fields {
		f := &s.fields[i]
		s.bitSize += f.BitSize

		bitOffset += f.BitSize % 8
		f.ByteOffset = byteOffset
		f.BitOffset = bitOffset

		if bitOffset%8 == 0 {
			bitOffset = 0
			byteOffset += f.ByteSize()
		}

		if f.Required {
			s.baseBitSize += f.BitSize
		}
	}

	s.byName = make(map[string][]int, len(s.fields))
	s.byID = make(map[format.FieldID][]int, len(s.fields))
	for i := range s.fields {
		f := &s.fields[i]
		s.byName[f.Name] = append(s.byName[f.Name], i)
		s.byID[f.ID] = append(s.byID[f.ID], i)
	}
}

// Equal compares two schemas field by field.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(other.fields[i]) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	c := &Schema{
		pointFormat:   s.pointFormat,
		nextPosition:  s.nextPosition,
		bitSize:       s.bitSize,
		baseBitSize:   s.baseBitSize,
		schemaVersion: s.schemaVersion,
		fields:        append([]Field(nil), s.fields...),
	}
	c.CalculateSizes()

	return c
}

// updateRequiredFields rebuilds the skeleton for the point format, keeping
// user-added (non-required) fields and re-appending them after the
// skeleton sorted by their original position.
func (s *Schema) updateRequiredFields(pointFormat format.PointFormat) {
	var userFields []Field
	for i := range s.fields {
		if !s.fields[i].Required {
			userFields = append(userFields, s.fields[i])
		}
	}
	// Insertion order is preserved: the sequence is already sorted by
	// position.
	s.fields = s.fields[:0]
	s.nextPosition = 0

	switch pointFormat {
	case format.PointFormat0:
		s.addXYZ()
	case format.PointFormat1:
		s.addXYZ()
		s.addASPRSBasicFields()
	case format.PointFormat2:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addTime()
	case format.PointFormat3:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addColor()
	case format.PointFormat4:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addTime()
		s.addColor()
	case format.PointFormat5:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addTime()
		s.addWaveform()
	case format.PointFormat6:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addTime()
		s.addColor()
		s.addWaveform()
	case format.PointFormat7:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addTime()
		s.addColor()
		s.addNIR()
	case format.PointFormat8:
		s.addXYZ()
		s.addASPRSBasicFields()
		s.addTime()
		s.addColor()
		s.addNIR()
		s.addWaveform()
	case format.PointFormatNone:
		// no skeleton
	case format.PointFormatCustom:
		s.addXYZ()
	default:
		panic(fmt.Sprintf("unhandled point format id %d", int32(pointFormat)))
	}

	for _, f := range userFields {
		s.AddField(f)
	}

	s.CalculateSizes()
}
