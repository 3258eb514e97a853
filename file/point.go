package file

import (
	"fmt"
	"math"

	"github.com/geodatakit/hspc/compress"
	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/section"
	"github.com/geodatakit/hspc/variant"
)

// Point is one fixed-size record plus an optional variable-length waveform
// buffer. Its layout is fully determined by the borrowed header's schema.
type Point struct {
	data         []byte
	waveformData []byte
	header       *Header
}

// NewPoint creates a zeroed point sized by the header's record length. A
// nil header binds the point to the process-wide default header.
func NewPoint(header *Header) *Point {
	if header == nil {
		header = DefaultHeader()
	}

	return &Point{
		data:   make([]byte, header.DataRecordLength()),
		header: header,
	}
}

// Header returns the borrowed header, falling back to the default header
// for orphaned points.
func (p *Point) Header() *Header {
	if p.header != nil {
		return p.header
	}

	return DefaultHeader()
}

// SetHeader rebinds the point to a new header. When the new header changes
// the record layout the coordinates are carried over; when it changes
// scale or offset the raw coordinates are re-projected so the logical
// coordinates stay put.
func (p *Point) SetHeader(header *Header) {
	if header == nil {
		return
	}
	if p.header == nil {
		p.header = header
	}

	wanted := int(header.DataRecordLength())

	zero := true
	for _, b := range p.data {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		p.data = make([]byte, wanted)
		p.header = header
		return
	}

	rescale := header.ScaleX() != p.header.ScaleX() ||
		header.ScaleY() != p.header.ScaleY() ||
		header.ScaleZ() != p.header.ScaleZ() ||
		header.OffsetX() != p.header.OffsetX() ||
		header.OffsetY() != p.header.OffsetY() ||
		header.OffsetZ() != p.header.OffsetZ()

	if wanted != len(p.data) {
		// The layout is changing; raw bytes cannot be carried over.
		old := *p
		old.data = append([]byte(nil), p.data...)
		p.data = make([]byte, wanted)
		p.header = header
		p.SetX(old.X())
		p.SetY(old.Y())
		p.SetZ(old.Z())

		return
	}

	if rescale {
		x, y, z := p.X(), p.Y(), p.Z()
		p.header = header
		p.SetX(x)
		p.SetY(y)
		p.SetZ(z)

		return
	}

	p.header = header
}

// Data returns the point's record buffer. The reader reuses this buffer
// across records; callers must copy it to retain a record.
func (p *Point) Data() []byte { return p.data }

// SetData replaces the record buffer.
func (p *Point) SetData(data []byte) { p.data = data }

// Validate checks the structural invariant between the record buffer and
// the header's declared record length.
func (p *Point) Validate() error {
	if len(p.data) != int(p.Header().DataRecordLength()) {
		return fmt.Errorf("%w: record buffer is %d bytes, schema says %d",
			errs.ErrInvalidPointData, len(p.data), p.Header().DataRecordLength())
	}

	return nil
}

// sround rounds half away from zero: floor(x+0.5) for x >= 0, else
// ceil(x-0.5). Raw/logical conversions depend on this exact rounding.
func sround(r float64) float64 {
	if r >= 0 {
		return math.Floor(r + 0.5)
	}

	return math.Ceil(r - 0.5)
}

// Raw coordinates are always the leading three 32-bit slots of a record.

// RawX returns the stored X integer.
func (p *Point) RawX() int32 { return p.rawCoord(0) }

// RawY returns the stored Y integer.
func (p *Point) RawY() int32 { return p.rawCoord(4) }

// RawZ returns the stored Z integer.
func (p *Point) RawZ() int32 { return p.rawCoord(8) }

func (p *Point) rawCoord(pos int) int32 {
	if len(p.data) < pos+4 {
		return 0
	}

	return int32(endian.GetLittleEndianEngine().Uint32(p.data[pos : pos+4]))
}

// SetRawX stores the X integer.
func (p *Point) SetRawX(v int32) { p.setRawCoord(0, v) }

// SetRawY stores the Y integer.
func (p *Point) SetRawY(v int32) { p.setRawCoord(4, v) }

// SetRawZ stores the Z integer.
func (p *Point) SetRawZ(v int32) { p.setRawCoord(8, v) }

func (p *Point) setRawCoord(pos int, v int32) {
	if len(p.data) < pos+4 {
		return
	}
	endian.GetLittleEndianEngine().PutUint32(p.data[pos:pos+4], uint32(v))
}

// X returns the scaled and shifted X coordinate.
func (p *Point) X() float64 {
	return float64(p.RawX())*p.Header().ScaleX() + p.Header().OffsetX()
}

// Y returns the scaled and shifted Y coordinate.
func (p *Point) Y() float64 {
	return float64(p.RawY())*p.Header().ScaleY() + p.Header().OffsetY()
}

// Z returns the scaled and shifted Z coordinate.
func (p *Point) Z() float64 {
	return float64(p.RawZ())*p.Header().ScaleZ() + p.Header().OffsetZ()
}

// SetX descales the coordinate into raw storage.
func (p *Point) SetX(v float64) {
	p.SetRawX(int32(sround((v - p.Header().OffsetX()) / p.Header().ScaleX())))
}

// SetY descales the coordinate into raw storage.
func (p *Point) SetY(v float64) {
	p.SetRawY(int32(sround((v - p.Header().OffsetY()) / p.Header().ScaleY())))
}

// SetZ descales the coordinate into raw storage.
func (p *Point) SetZ(v float64) {
	p.SetRawZ(int32(sround((v - p.Header().OffsetZ()) / p.Header().ScaleZ())))
}

// SetCoordinates sets all three coordinates.
func (p *Point) SetCoordinates(x, y, z float64) {
	p.SetX(x)
	p.SetY(y)
	p.SetZ(z)
}

// Coordinate returns the coordinate with the given subscript (0, 1 or 2).
func (p *Point) Coordinate(index int) (float64, error) {
	switch index {
	case 0:
		return p.X(), nil
	case 1:
		return p.Y(), nil
	case 2:
		return p.Z(), nil
	default:
		return 0, fmt.Errorf("%w: coordinate subscript %d", errs.ErrPointOutOfRange, index)
	}
}

// Equal compares the logical coordinates of two points with an epsilon of
// 1e-5.
func (p *Point) Equal(other *Point) bool {
	const epsilon = 0.00001

	dx := p.X() - other.X()
	dy := p.Y() - other.Y()
	dz := p.Z() - other.Z()

	return dx <= epsilon && dx >= -epsilon &&
		dy <= epsilon && dy >= -epsilon &&
		dz <= epsilon && dz >= -epsilon
}

// ValuesByID returns the values of every field carrying the given id, in
// field-sequence order. Scaled or offset fields yield raw*scale+offset as
// a float64 variant, except bit, char and uint8 fields, which always
// yield the raw value; all others yield the raw value.
func (p *Point) ValuesByID(id format.FieldID) ([]variant.Variant, error) {
	fields := p.Header().Schema().FieldsByID(id)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: id %s", errs.ErrFieldNotFound, id)
	}

	values := make([]variant.Variant, 0, len(fields))
	for _, f := range fields {
		raw, err := p.rawValue(f)
		if err != nil {
			return nil, err
		}
		values = append(values, rawToLogical(raw, f))
	}

	return values, nil
}

// SetValuesByID writes one value per field carrying the given id. The
// value count must match the field count; scaled or offset fields are
// inverse-transformed to their raw type via sround.
func (p *Point) SetValuesByID(id format.FieldID, values []variant.Variant) error {
	fields := p.Header().Schema().FieldsByID(id)
	if len(fields) == 0 {
		return fmt.Errorf("%w: id %s", errs.ErrFieldNotFound, id)
	}
	if len(values) != len(fields) {
		return fmt.Errorf("%w: %d values for %d fields", errs.ErrInvalidPointData, len(values), len(fields))
	}

	for i, f := range fields {
		raw, ok := logicalToRaw(values[i], f)
		if !ok {
			return fmt.Errorf("%w: field %q", errs.ErrValueConversion, f.Name)
		}
		if err := p.setRawValue(f, raw); err != nil {
			return err
		}
	}

	return nil
}

// Value returns the raw value of the field at the given sequence index.
func (p *Point) Value(index int) (variant.Variant, error) {
	f, ok := p.Header().Schema().Field(index)
	if !ok {
		return variant.Empty(), fmt.Errorf("%w: index %d", errs.ErrFieldNotFound, index)
	}

	return p.rawValue(f)
}

// SetValue writes the value of the field at the given sequence index,
// applying the field's inverse scale/offset transform.
func (p *Point) SetValue(index int, value variant.Variant) error {
	f, ok := p.Header().Schema().Field(index)
	if !ok {
		return fmt.Errorf("%w: index %d", errs.ErrFieldNotFound, index)
	}
	raw, ok := logicalToRaw(value, f)
	if !ok {
		return fmt.Errorf("%w: field %q", errs.ErrValueConversion, f.Name)
	}

	return p.setRawValue(f, raw)
}

// rawValue reads the field's stored value without scale/offset handling.
func (p *Point) rawValue(f schema.Field) (variant.Variant, error) {
	off := f.ByteOffset
	if off+f.ByteSize() > len(p.data) {
		return variant.Empty(), fmt.Errorf("%w: field %q outside record", errs.ErrInvalidPointData, f.Name)
	}
	engine := endian.GetLittleEndianEngine()

	switch f.DataType {
	case format.TypeBit:
		return variant.FromBitset(p.readBits(f)), nil
	case format.TypeChar:
		return variant.FromString(cStringAt(p.data[off : off+f.ByteSize()])), nil
	case format.TypeUint8:
		return variant.FromUint8(p.data[off]), nil
	case format.TypeInt16:
		return variant.FromInt16(int16(engine.Uint16(p.data[off:]))), nil
	case format.TypeUint16:
		return variant.FromUint16(engine.Uint16(p.data[off:])), nil
	case format.TypeInt32:
		return variant.FromInt32(int32(engine.Uint32(p.data[off:]))), nil
	case format.TypeUint32:
		return variant.FromUint32(engine.Uint32(p.data[off:])), nil
	case format.TypeInt64:
		return variant.FromInt64(int64(engine.Uint64(p.data[off:]))), nil
	case format.TypeUint64:
		return variant.FromUint64(engine.Uint64(p.data[off:])), nil
	case format.TypeFloat32:
		return variant.FromFloat32(math.Float32frombits(engine.Uint32(p.data[off:]))), nil
	case format.TypeFloat64:
		return variant.FromFloat64(math.Float64frombits(engine.Uint64(p.data[off:]))), nil
	default:
		return variant.Empty(), fmt.Errorf("%w: %v", errs.ErrInvalidDataType, f.DataType)
	}
}

// setRawValue writes the field's stored value without scale/offset
// handling.
func (p *Point) setRawValue(f schema.Field, value variant.Variant) error {
	off := f.ByteOffset
	if off+f.ByteSize() > len(p.data) {
		return fmt.Errorf("%w: field %q outside record", errs.ErrInvalidPointData, f.Name)
	}
	engine := endian.GetLittleEndianEngine()

	fail := func() error {
		return fmt.Errorf("%w: field %q expects %v", errs.ErrValueConversion, f.Name, f.DataType)
	}

	switch f.DataType {
	case format.TypeBit:
		bits, ok := value.Bits()
		if !ok {
			// Integer values address bitfields through their unsigned
			// interpretation.
			u, uok := value.Uint64()
			if !uok {
				return fail()
			}
			bits = variant.BitsetFromUint64(u, f.BitSize)
		}
		if bits.Size() > f.BitSize {
			return fail()
		}
		p.writeBits(f, bits)
	case format.TypeChar:
		s, ok := value.StringValue()
		if !ok || len(s) > f.ByteSize() {
			return fail()
		}
		slot := p.data[off : off+f.ByteSize()]
		copy(slot, s)
		for i := len(s); i < len(slot); i++ {
			slot[i] = 0
		}
	default:
		if !putRawScalar(engine, p.data[off:off+f.ByteSize()], f.DataType, value) {
			return fail()
		}
	}

	return nil
}

// putRawScalar encodes a scalar raw value into dst using the wire width of
// the data type. It reports false for non-convertible values and for
// non-scalar types.
func putRawScalar(engine endian.EndianEngine, dst []byte, t format.DataType, value variant.Variant) bool {
	switch t {
	case format.TypeUint8:
		v, ok := value.Uint8()
		if !ok {
			return false
		}
		dst[0] = v
	case format.TypeInt16:
		v, ok := value.Int16()
		if !ok {
			return false
		}
		engine.PutUint16(dst, uint16(v))
	case format.TypeUint16:
		v, ok := value.Uint16()
		if !ok {
			return false
		}
		engine.PutUint16(dst, v)
	case format.TypeInt32:
		v, ok := value.Int32()
		if !ok {
			return false
		}
		engine.PutUint32(dst, uint32(v))
	case format.TypeUint32:
		v, ok := value.Uint32()
		if !ok {
			return false
		}
		engine.PutUint32(dst, v)
	case format.TypeInt64:
		v, ok := value.Int64()
		if !ok {
			return false
		}
		engine.PutUint64(dst, uint64(v))
	case format.TypeUint64:
		v, ok := value.Uint64()
		if !ok {
			return false
		}
		engine.PutUint64(dst, v)
	case format.TypeFloat32:
		v, ok := value.Float32()
		if !ok {
			return false
		}
		engine.PutUint32(dst, math.Float32bits(v))
	case format.TypeFloat64:
		v, ok := value.Float64()
		if !ok {
			return false
		}
		engine.PutUint64(dst, math.Float64bits(v))
	default:
		return false
	}

	return true
}

// bitWalk yields the [start, stop] bit positions inside byte i of a
// bitfield spanning byteSize bytes. The first byte carries the value's
// low bits starting at bitOffset - width%8; full middle bytes follow, and
// the last byte ends at bit position bitOffset.
func bitWalk(i, byteSize, bitOffset, sizeInBits int) (int, int) {
	switch {
	case i == 0:
		start := bitOffset - sizeInBits%8
		if sizeInBits+start <= 8 {
			return start, sizeInBits + start - 1
		}

		return start, 7
	case i == byteSize-1:
		return 0, bitOffset
	default:
		return 0, 7
	}
}

// readBits extracts a bitfield value without disturbing neighbours that
// share its bytes.
func (p *Point) readBits(f schema.Field) variant.Bitset {
	return readBitsFrom(p.data, f.ByteOffset, f.BitOffset, f.BitSize)
}

// writeBits stores a bitfield value with a read-modify-write per byte so
// neighbouring bitfields sharing the byte are preserved.
func (p *Point) writeBits(f schema.Field, bits variant.Bitset) {
	writeBitsTo(p.data, f.ByteOffset, f.BitOffset, f.BitSize, bits)
}

// rawToLogical applies the field's forward transform: raw*scale + offset.
// Sub-byte, string and byte-wide fields pass through untransformed.
func rawToLogical(raw variant.Variant, f schema.Field) variant.Variant {
	if !f.Transformed() {
		return raw
	}
	switch f.DataType {
	case format.TypeBit, format.TypeChar, format.TypeUint8:
		return raw
	}
	v, ok := raw.Float64()
	if !ok {
		return raw
	}

	return variant.FromFloat64(v*f.EffectiveScale() + f.EffectiveOffset())
}

// logicalToRaw applies the field's inverse transform, rounding integer
// targets with sround. Untransformed fields pass the value through.
func logicalToRaw(value variant.Variant, f schema.Field) (variant.Variant, bool) {
	if !f.Transformed() {
		return value, true
	}
	switch f.DataType {
	case format.TypeBit, format.TypeChar, format.TypeUint8:
		return value, true
	}

	v, ok := value.Float64()
	if !ok {
		return variant.Empty(), false
	}
	d := (v - f.EffectiveOffset()) / f.EffectiveScale()

	switch f.DataType {
	case format.TypeInt16:
		return variant.FromInt16(int16(sround(d))), true
	case format.TypeUint16:
		return variant.FromUint16(uint16(sround(d))), true
	case format.TypeInt32:
		return variant.FromInt32(int32(sround(d))), true
	case format.TypeUint32:
		return variant.FromUint32(uint32(sround(d))), true
	case format.TypeInt64:
		return variant.FromInt64(int64(sround(d))), true
	case format.TypeUint64:
		return variant.FromUint64(uint64(sround(d))), true
	case format.TypeFloat32:
		return variant.FromFloat32(float32(d)), true
	case format.TypeFloat64:
		return variant.FromFloat64(d), true
	default:
		return variant.Empty(), false
	}
}

func cStringAt(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}

// The waveform-related accessors below operate on the point's waveform
// buffer, which holds a bandCount(u16) prefix, bandCount packet
// definitions and the concatenated per-band payloads.

// HasWaveformData reports whether the point carries a waveform buffer.
func (p *Point) HasWaveformData() bool {
	return len(p.waveformData) > 0
}

// WaveformData returns the waveform buffer.
func (p *Point) WaveformData() []byte { return p.waveformData }

// SetWaveformData replaces the waveform buffer.
func (p *Point) SetWaveformData(data []byte) { p.waveformData = data }

// SetWaveformRecord assembles the record into the waveform buffer.
func (p *Point) SetWaveformRecord(record *WaveformPacketRecord) {
	p.waveformData = record.ToWaveformData()
}

// SetWaveformDataAddress stores the waveform payload's file offset and
// size into the point's waveform locator fields.
func (p *Point) SetWaveformDataAddress(offset uint64, size uint32) {
	p.SetWaveformDataByteOffset(offset)
	p.SetWaveformDataSize(size)
}

// SetWaveformDataByteOffset stores the waveform payload's file offset.
func (p *Point) SetWaveformDataByteOffset(offset uint64) {
	if f, ok := p.Header().Schema().FieldByID(format.FieldByteOffsetToWaveformData); ok {
		_ = p.setRawValue(*f, variant.FromUint64(offset))
	}
}

// WaveformDataByteOffset reads the waveform payload's file offset.
func (p *Point) WaveformDataByteOffset() (uint64, error) {
	values, err := p.ValuesByID(format.FieldByteOffsetToWaveformData)
	if err != nil {
		return 0, err
	}
	v, ok := values[0].Uint64()
	if !ok {
		return 0, errs.ErrValueConversion
	}

	return v, nil
}

// SetWaveformDataSize stores the waveform payload's byte size.
func (p *Point) SetWaveformDataSize(size uint32) {
	if f, ok := p.Header().Schema().FieldByID(format.FieldWaveformDataSize); ok {
		_ = p.setRawValue(*f, variant.FromUint32(size))
	}
}

// WaveformDataSize reads the waveform payload's byte size.
func (p *Point) WaveformDataSize() (uint32, error) {
	values, err := p.ValuesByID(format.FieldWaveformDataSize)
	if err != nil {
		return 0, err
	}
	v, ok := values[0].Uint32()
	if !ok {
		return 0, errs.ErrValueConversion
	}

	return v, nil
}

// WaveformBandCount reads the band count at the front of the waveform
// buffer.
func (p *Point) WaveformBandCount() uint16 {
	if len(p.waveformData) < 2 {
		return 0
	}

	return endian.GetLittleEndianEngine().Uint16(p.waveformData[0:2])
}

// WaveformPacketDefinition scans the definition table for the given band.
func (p *Point) WaveformPacketDefinition(band uint16) (section.WaveformPacketDataDefinition, bool) {
	count := int(p.WaveformBandCount())
	pos := 2
	for i := 0; i < count; i++ {
		end := pos + section.WaveformPacketDataDefinitionSize
		if end > len(p.waveformData) {
			break
		}
		var def section.WaveformPacketDataDefinition
		if err := def.Parse(p.waveformData[pos:end]); err != nil {
			break
		}
		if def.BandIndex == band {
			return def, true
		}
		pos = end
	}

	return section.WaveformPacketDataDefinition{}, false
}

// WaveformPacketDefinitions returns the point's full definition table.
func (p *Point) WaveformPacketDefinitions() []section.WaveformPacketDataDefinition {
	count := int(p.WaveformBandCount())
	defs := make([]section.WaveformPacketDataDefinition, 0, count)
	pos := 2
	for i := 0; i < count; i++ {
		end := pos + section.WaveformPacketDataDefinitionSize
		if end > len(p.waveformData) {
			break
		}
		var def section.WaveformPacketDataDefinition
		if err := def.Parse(p.waveformData[pos:end]); err != nil {
			break
		}
		defs = append(defs, def)
		pos = end
	}

	return defs
}

// WaveformDescriptorIndexByBand returns the descriptor index recorded for
// the given band.
func (p *Point) WaveformDescriptorIndexByBand(band uint16) (uint16, bool) {
	def, ok := p.WaveformPacketDefinition(band)
	if !ok {
		return 0, false
	}

	return def.DescriptorIndex, true
}

// RawWaveformPacketData slices the payload region of the given band out of
// the waveform buffer.
func (p *Point) RawWaveformPacketData(band uint16) ([]byte, error) {
	def, ok := p.WaveformPacketDefinition(band)
	if !ok {
		return nil, fmt.Errorf("%w: band %d", errs.ErrNoWaveformData, band)
	}

	start := int(def.ByteOffset)
	end := start + int(def.Size)
	if start > len(p.waveformData) || end > len(p.waveformData) {
		return nil, fmt.Errorf("%w: band %d payload outside buffer", errs.ErrInvalidPointData, band)
	}

	return p.waveformData[start:end], nil
}

// DecodedWaveformPacketData slices the band's payload and decompresses it
// according to the referenced descriptor's compression type.
func (p *Point) DecodedWaveformPacketData(band uint16) ([]byte, error) {
	def, ok := p.WaveformPacketDefinition(band)
	if !ok {
		return nil, fmt.Errorf("%w: band %d", errs.ErrNoWaveformData, band)
	}
	raw, err := p.RawWaveformPacketData(band)
	if err != nil {
		return nil, err
	}

	desc, ok := p.Header().WaveformDescriptor(int(def.DescriptorIndex))
	if !ok {
		return nil, fmt.Errorf("%w: descriptor %d", errs.ErrInvalidFormat, def.DescriptorIndex)
	}
	codec, err := compress.GetCodec(desc.Compression())
	if err != nil {
		return nil, err
	}

	return codec.Decompress(raw)
}
