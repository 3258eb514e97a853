package file

import (
	"fmt"
	"math"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/variant"
)

// DataRange copies the fields in the sequence-index range [startIndex,
// stopIndex] out of the record into out, applying each field's forward
// scale/offset transform. Values are packed at each field's natural
// width, in sequence order; sub-byte fields keep their in-record bit
// positions relative to the output byte they land in.
func (p *Point) DataRange(startIndex, stopIndex int, out []byte) error {
	fields, total, err := p.rangeFields(startIndex, stopIndex)
	if err != nil {
		return err
	}
	if len(out) < (total+7)/8 {
		return fmt.Errorf("%w: need %d bytes, have %d", errs.ErrBufferSize, (total+7)/8, len(out))
	}

	outPos := 0
	for _, f := range fields {
		if err := p.copyFieldOut(f, out, outPos); err != nil {
			return err
		}
		outPos += f.BitSize
	}

	return nil
}

// SetDataRange copies field values from in into the record for the
// sequence-index range [startIndex, stopIndex], applying each field's
// inverse scale/offset transform.
func (p *Point) SetDataRange(startIndex, stopIndex int, in []byte) error {
	fields, total, err := p.rangeFields(startIndex, stopIndex)
	if err != nil {
		return err
	}
	if len(in) < (total+7)/8 {
		return fmt.Errorf("%w: need %d bytes, have %d", errs.ErrBufferSize, (total+7)/8, len(in))
	}

	inPos := 0
	for _, f := range fields {
		if err := p.copyFieldIn(f, in, inPos); err != nil {
			return err
		}
		inPos += f.BitSize
	}

	return nil
}

func (p *Point) rangeFields(startIndex, stopIndex int) ([]schema.Field, int, error) {
	s := p.Header().Schema()
	if startIndex > stopIndex {
		startIndex, stopIndex = stopIndex, startIndex
	}
	if startIndex < 0 || stopIndex >= s.FieldCount() {
		return nil, 0, fmt.Errorf("%w: field range %d..%d", errs.ErrFieldNotFound, startIndex, stopIndex)
	}

	fields := make([]schema.Field, 0, stopIndex-startIndex+1)
	total := 0
	for i := startIndex; i <= stopIndex; i++ {
		f, _ := s.Field(i)
		fields = append(fields, f)
		total += f.BitSize
	}

	return fields, total, nil
}

// copyFieldOut writes one field's transformed value into out at bit
// position outPos.
func (p *Point) copyFieldOut(f schema.Field, out []byte, outPos int) error {
	engine := endian.GetLittleEndianEngine()
	dst := out[outPos/8:]

	if f.DataType == format.TypeBit {
		bits := readBitsFrom(p.data, f.ByteOffset, f.BitOffset, f.BitSize)
		writeBitsTo(dst, 0, f.BitOffset, f.BitSize, bits)

		return nil
	}

	scale := f.EffectiveScale()
	offset := f.EffectiveOffset()
	src := p.data[f.ByteOffset:]

	switch f.DataType {
	case format.TypeUint8:
		v := src[0]
		if f.Transformed() {
			v = uint8(sround(scale*float64(v) + offset))
		}
		dst[0] = v
	case format.TypeInt16:
		v := int16(engine.Uint16(src))
		if f.Transformed() {
			v = int16(sround(scale*float64(v) + offset))
		}
		engine.PutUint16(dst, uint16(v))
	case format.TypeUint16:
		v := engine.Uint16(src)
		if f.Transformed() {
			v = uint16(sround(scale*float64(v) + offset))
		}
		engine.PutUint16(dst, v)
	case format.TypeInt32:
		v := int32(engine.Uint32(src))
		if f.Transformed() {
			v = int32(sround(scale*float64(v) + offset))
		}
		engine.PutUint32(dst, uint32(v))
	case format.TypeUint32:
		v := engine.Uint32(src)
		if f.Transformed() {
			v = uint32(sround(scale*float64(v) + offset))
		}
		engine.PutUint32(dst, v)
	case format.TypeInt64:
		v := int64(engine.Uint64(src))
		if f.Transformed() {
			v = int64(sround(scale*float64(v) + offset))
		}
		engine.PutUint64(dst, uint64(v))
	case format.TypeUint64:
		v := engine.Uint64(src)
		if f.Transformed() {
			v = uint64(sround(scale*float64(v) + offset))
		}
		engine.PutUint64(dst, v)
	case format.TypeFloat32:
		v := math.Float32frombits(engine.Uint32(src))
		if f.Transformed() {
			v = float32(scale*float64(v) + offset)
		}
		engine.PutUint32(dst, math.Float32bits(v))
	case format.TypeFloat64:
		v := math.Float64frombits(engine.Uint64(src))
		if f.Transformed() {
			v = scale*v + offset
		}
		engine.PutUint64(dst, math.Float64bits(v))
	default:
		return fmt.Errorf("%w: range copy of %v field %q", errs.ErrInvalidDataType, f.DataType, f.Name)
	}

	return nil
}

// copyFieldIn reads one field's value from in at bit position inPos and
// writes its raw form into the record.
func (p *Point) copyFieldIn(f schema.Field, in []byte, inPos int) error {
	engine := endian.GetLittleEndianEngine()
	src := in[inPos/8:]

	if f.DataType == format.TypeBit {
		bits := readBitsFrom(src, 0, f.BitOffset, f.BitSize)
		writeBitsTo(p.data, f.ByteOffset, f.BitOffset, f.BitSize, bits)

		return nil
	}

	scale := f.EffectiveScale()
	offset := f.EffectiveOffset()
	dst := p.data[f.ByteOffset:]

	switch f.DataType {
	case format.TypeUint8:
		v := src[0]
		if f.Transformed() {
			v = uint8(sround((float64(v) - offset) / scale))
		}
		dst[0] = v
	case format.TypeInt16:
		v := int16(engine.Uint16(src))
		if f.Transformed() {
			v = int16(sround((float64(v) - offset) / scale))
		}
		engine.PutUint16(dst, uint16(v))
	case format.TypeUint16:
		v := engine.Uint16(src)
		if f.Transformed() {
			v = uint16(sround((float64(v) - offset) / scale))
		}
		engine.PutUint16(dst, v)
	case format.TypeInt32:
		v := int32(engine.Uint32(src))
		if f.Transformed() {
			v = int32(sround((float64(v) - offset) / scale))
		}
		engine.PutUint32(dst, uint32(v))
	case format.TypeUint32:
		v := engine.Uint32(src)
		if f.Transformed() {
			v = uint32(sround((float64(v) - offset) / scale))
		}
		engine.PutUint32(dst, v)
	case format.TypeInt64:
		v := int64(engine.Uint64(src))
		if f.Transformed() {
			v = int64(sround((float64(v) - offset) / scale))
		}
		engine.PutUint64(dst, uint64(v))
	case format.TypeUint64:
		v := engine.Uint64(src)
		if f.Transformed() {
			v = uint64(sround((float64(v) - offset) / scale))
		}
		engine.PutUint64(dst, v)
	case format.TypeFloat32:
		v := math.Float32frombits(engine.Uint32(src))
		if f.Transformed() {
			v = float32((float64(v) - offset) / scale)
		}
		engine.PutUint32(dst, math.Float32bits(v))
	case format.TypeFloat64:
		v := math.Float64frombits(engine.Uint64(src))
		if f.Transformed() {
			v = (v - offset) / scale
		}
		engine.PutUint64(dst, math.Float64bits(v))
	default:
		return fmt.Errorf("%w: range copy of %v field %q", errs.ErrInvalidDataType, f.DataType, f.Name)
	}

	return nil
}

// BandValues copies count band values starting at startBand into out.
// The buffer must match the bands' native widths exactly; each value is
// individually scale/offset transformed when its field requires it.
func (p *Point) BandValues(startBand, count int, out []byte) error {
	startIndex, stopIndex, native, err := p.bandRange(startBand, count)
	if err != nil {
		return err
	}
	if len(out) != native {
		return fmt.Errorf("%w: bands need exactly %d bytes, have %d", errs.ErrBufferSize, native, len(out))
	}

	return p.DataRange(startIndex, stopIndex, out)
}

// SetBandValues copies count band values from in into the record starting
// at startBand. The buffer must match the bands' native widths exactly.
func (p *Point) SetBandValues(startBand, count int, in []byte) error {
	startIndex, stopIndex, native, err := p.bandRange(startBand, count)
	if err != nil {
		return err
	}
	if len(in) != native {
		return fmt.Errorf("%w: bands need exactly %d bytes, have %d", errs.ErrBufferSize, native, len(in))
	}

	return p.SetDataRange(startIndex, stopIndex, in)
}

func (p *Point) bandRange(startBand, count int) (int, int, int, error) {
	s := p.Header().Schema()
	if count <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: band count %d", errs.ErrFieldNotFound, count)
	}
	startIndex, ok := s.NthIndex(format.FieldBandValue, startBand)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: band %d", errs.ErrFieldNotFound, startBand)
	}
	stopIndex, ok := s.NthIndex(format.FieldBandValue, startBand+count-1)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: band %d", errs.ErrFieldNotFound, startBand+count-1)
	}

	native := 0
	for i := startIndex; i <= stopIndex; i++ {
		f, _ := s.Field(i)
		native += f.ByteSize()
	}

	return startIndex, stopIndex, native, nil
}

// readBitsFrom and writeBitsTo are the buffer-generic forms of the point
// bitfield accessors, shared with the range copy path.

func readBitsFrom(buf []byte, byteOffset, bitOffset, sizeInBits int) variant.Bitset {
	byteSize := (sizeInBits + 7) / 8
	bits := variant.NewBitset(sizeInBits)
	current := 0
	for i := 0; i < byteSize; i++ {
		start, stop := bitWalk(i, byteSize, bitOffset, sizeInBits)
		v := buf[byteOffset+i]
		for j := start; j <= stop && current < sizeInBits; j++ {
			bits.SetBit(current, (v>>uint(j))&1 == 1)
			current++
		}
	}

	return bits
}

func writeBitsTo(buf []byte, byteOffset, bitOffset, sizeInBits int, bits variant.Bitset) {
	byteSize := (sizeInBits + 7) / 8
	current := 0
	for i := 0; i < byteSize; i++ {
		start, stop := bitWalk(i, byteSize, bitOffset, sizeInBits)
		v := buf[byteOffset+i]
		var mask, bv uint8
		for j := start; j <= stop && current < sizeInBits; j++ {
			mask |= 1 << uint(j)
			if bits.Bit(current) {
				bv |= 1 << uint(j)
			}
			current++
		}
		v &^= mask
		v |= mask & bv
		buf[byteOffset+i] = v
	}
}
