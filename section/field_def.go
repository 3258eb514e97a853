package section

import (
	"math"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
)

// FieldDefinition is the serialized form of one schema field.
//
// The wire layout is dataType(1), options(1), reserved(2), name(32),
// sizeInBits(4), noData(T), min(T), max(T), scale(8), offset(8),
// description(32), where T is the scalar width of the data type. The
// total size therefore varies with the data type:
// FieldDefinitionBaseSize + 3*T.
type FieldDefinition struct {
	DataType   format.DataType
	Options    uint8
	Name       string // truncated to FieldNameLength on the wire
	SizeInBits uint32

	// NoData, Min and Max are stored in the field's own scalar type on the
	// wire and widened to float64 in memory.
	NoData float64
	Min    float64
	Max    float64

	Scale       float64
	Offset      float64
	Description string // truncated to FieldDescriptionLength on the wire
}

// FieldDefinitionSize returns the serialized size of a definition with the
// given data type, or 0 for types without a fixed scalar width.
func FieldDefinitionSize(t format.DataType) int {
	s := t.Size()
	if s == 0 {
		return 0
	}

	return FieldDefinitionBaseSize + 3*s
}

// Size returns the serialized size of this definition.
func (d *FieldDefinition) Size() int {
	return FieldDefinitionSize(d.DataType)
}

// HasOption reports whether the given FieldOpt bit is set.
func (d *FieldDefinition) HasOption(bit uint8) bool {
	return d.Options&bit != 0
}

// SetOption sets or clears the given FieldOpt bit.
func (d *FieldDefinition) SetOption(bit uint8, on bool) {
	if on {
		d.Options |= bit
	} else {
		d.Options &^= bit
	}
}

// Parse decodes a definition from the front of data. The data type is
// taken from the first byte, which also fixes the total size; data must
// hold at least that many bytes. Returns the number of bytes consumed.
func (d *FieldDefinition) Parse(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, errs.ErrInvalidFieldDefinition
	}

	t := format.DataType(data[0])
	size := FieldDefinitionSize(t)
	if size == 0 || len(data) < size {
		return 0, errs.ErrInvalidFieldDefinition
	}

	engine := endian.GetLittleEndianEngine()
	scalar := t.Size()

	d.DataType = t
	d.Options = data[1]
	// bytes 2-3 reserved
	d.Name = cString(data[4:36])
	d.SizeInBits = engine.Uint32(data[36:40])

	pos := 40
	d.NoData = getScalar(engine, data[pos:pos+scalar], t)
	pos += scalar
	d.Min = getScalar(engine, data[pos:pos+scalar], t)
	pos += scalar
	d.Max = getScalar(engine, data[pos:pos+scalar], t)
	pos += scalar

	d.Scale = math.Float64frombits(engine.Uint64(data[pos : pos+8]))
	pos += 8
	d.Offset = math.Float64frombits(engine.Uint64(data[pos : pos+8]))
	pos += 8
	d.Description = cString(data[pos : pos+FieldDescriptionLength])
	pos += FieldDescriptionLength

	return pos, nil
}

// Bytes serializes the definition into a new slice of Size() bytes.
func (d *FieldDefinition) Bytes() ([]byte, error) {
	size := d.Size()
	if size == 0 {
		return nil, errs.ErrInvalidDataType
	}

	engine := endian.GetLittleEndianEngine()
	scalar := d.DataType.Size()

	b := make([]byte, size)
	b[0] = uint8(d.DataType)
	b[1] = d.Options
	putCString(b[4:36], d.Name)
	engine.PutUint32(b[36:40], d.SizeInBits)

	pos := 40
	putScalar(engine, b[pos:pos+scalar], d.DataType, d.NoData)
	pos += scalar
	putScalar(engine, b[pos:pos+scalar], d.DataType, d.Min)
	pos += scalar
	putScalar(engine, b[pos:pos+scalar], d.DataType, d.Max)
	pos += scalar

	engine.PutUint64(b[pos:pos+8], math.Float64bits(d.Scale))
	pos += 8
	engine.PutUint64(b[pos:pos+8], math.Float64bits(d.Offset))
	pos += 8
	putCString(b[pos:pos+FieldDescriptionLength], d.Description)

	return b, nil
}

// getScalar reads one T-typed slot and widens it to float64.
func getScalar(engine endian.EndianEngine, b []byte, t format.DataType) float64 {
	switch t {
	case format.TypeBit, format.TypeUint8, format.TypeChar:
		return float64(b[0])
	case format.TypeUint16:
		return float64(engine.Uint16(b))
	case format.TypeInt16:
		return float64(int16(engine.Uint16(b)))
	case format.TypeUint32:
		return float64(engine.Uint32(b))
	case format.TypeInt32:
		return float64(int32(engine.Uint32(b)))
	case format.TypeUint64:
		return float64(engine.Uint64(b))
	case format.TypeInt64:
		return float64(int64(engine.Uint64(b)))
	case format.TypeFloat32:
		return float64(math.Float32frombits(engine.Uint32(b)))
	case format.TypeFloat64:
		return math.Float64frombits(engine.Uint64(b))
	default:
		return 0
	}
}

// putScalar narrows a float64 into one T-typed slot.
func putScalar(engine endian.EndianEngine, b []byte, t format.DataType, v float64) {
	switch t {
	case format.TypeBit, format.TypeUint8, format.TypeChar:
		b[0] = uint8(int64(v))
	case format.TypeUint16:
		engine.PutUint16(b, uint16(int64(v)))
	case format.TypeInt16:
		engine.PutUint16(b, uint16(int16(int64(v))))
	case format.TypeUint32:
		engine.PutUint32(b, uint32(int64(v)))
	case format.TypeInt32:
		engine.PutUint32(b, uint32(int32(int64(v))))
	case format.TypeUint64:
		engine.PutUint64(b, uint64(v))
	case format.TypeInt64:
		engine.PutUint64(b, uint64(int64(v)))
	case format.TypeFloat32:
		engine.PutUint32(b, math.Float32bits(float32(v)))
	case format.TypeFloat64:
		engine.PutUint64(b, math.Float64bits(v))
	}
}

// cString reads a NUL-terminated string out of a fixed-width slot.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}

// putCString writes a string into a fixed-width slot, truncating and
// zero-padding as needed. One byte is kept for the terminator whenever
// the value would fill the slot completely.
func putCString(b []byte, s string) {
	n := len(b) - 1
	if len(s) < n {
		n = len(s)
	}
	copy(b, s[:n])
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}
