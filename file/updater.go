package file

import (
	"fmt"
	"io"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/variant"
)

// Updater opens an existing file read-write and supports in-place record
// rewrites and field-level updates at the cursor position.
//
// Field writes apply to the record at the cursor: after Seek(n) they
// target record n; after ReadNextPoint they target the record following
// the one just read.
type Updater struct {
	Reader
}

// NewUpdater creates an updater for the given path.
func NewUpdater(filename string) *Updater {
	u := &Updater{}
	u.point = NewPoint(nil)
	u.filename = filename
	u.writable = true

	return u
}

// WritePoint rewrites the full record at the cursor and advances it. With
// updateWaveform set and a waveform payload present, the payload is
// rewritten at the point's previously recorded address; the address and
// size must not change or the file is corrupted.
func (u *Updater) WritePoint(p *Point, updateWaveform bool) error {
	if u.f == nil {
		return errs.ErrFileNotOpen
	}
	if u.current >= u.size {
		return fmt.Errorf("%w: point %d of %d", errs.ErrPointOutOfRange, u.current, u.size)
	}

	pos := int64(u.header.DataOffset()) + int64(u.current)*int64(u.header.DataRecordLength())
	if _, err := u.f.WriteAt(p.Data(), pos); err != nil {
		return err
	}

	if updateWaveform && u.header.HasWaveformData() && p.HasWaveformData() &&
		u.header.InternalWaveformData() {
		offset, err := p.WaveformDataByteOffset()
		if err != nil {
			return err
		}
		size, err := p.WaveformDataSize()
		if err != nil {
			return err
		}
		wf := p.WaveformData()
		if uint32(len(wf)) != size {
			return fmt.Errorf("%w: waveform size changed from %d to %d",
				errs.ErrInvalidPointData, size, len(wf))
		}
		if _, err := u.f.WriteAt(wf, int64(offset)); err != nil {
			return err
		}
	}

	u.current++

	return nil
}

// WriteFieldValuesByID updates, in place, every field carrying the given
// id in the record at the cursor. The value count must match the field
// count; scaled or offset fields are inverse-transformed first.
func (u *Updater) WriteFieldValuesByID(id format.FieldID, values []variant.Variant) error {
	fields := u.header.Schema().FieldsByID(id)
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
		if err := u.writeRawValueToField(f, raw); err != nil {
			return err
		}
	}

	return nil
}

// WriteFieldValue updates, in place, the field at the given sequence index
// in the record at the cursor.
func (u *Updater) WriteFieldValue(index int, value variant.Variant) error {
	f, ok := u.header.Schema().Field(index)
	if !ok {
		return fmt.Errorf("%w: index %d", errs.ErrFieldNotFound, index)
	}
	raw, ok := logicalToRaw(value, f)
	if !ok {
		return fmt.Errorf("%w: field %q", errs.ErrValueConversion, f.Name)
	}

	return u.writeRawValueToField(f, raw)
}

// writeRawValueToField writes exactly the field's bytes inside the record
// at the cursor. Bitfields are read-modify-written at bit granularity so
// neighbours sharing a byte survive. The record cursor position of the
// file handle is restored afterwards.
func (u *Updater) writeRawValueToField(f schema.Field, value variant.Variant) error {
	if u.f == nil {
		return errs.ErrFileNotOpen
	}
	if u.current >= u.size {
		return fmt.Errorf("%w: point %d of %d", errs.ErrPointOutOfRange, u.current, u.size)
	}

	pre, err := u.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	recordStart := int64(u.header.DataOffset()) + int64(u.current)*int64(u.header.DataRecordLength())
	pos := recordStart + int64(f.ByteOffset)
	buf := make([]byte, f.ByteSize())

	switch f.DataType {
	case format.TypeBit:
		bits, ok := value.Bits()
		if !ok {
			uv, uok := value.Uint64()
			if !uok {
				return fmt.Errorf("%w: field %q", errs.ErrValueConversion, f.Name)
			}
			bits = variant.BitsetFromUint64(uv, f.BitSize)
		}
		if _, err := u.f.ReadAt(buf, pos); err != nil {
			return err
		}
		writeBitsTo(buf, 0, f.BitOffset, f.BitSize, bits)
	case format.TypeChar:
		s, ok := value.StringValue()
		if !ok || len(s) > len(buf) {
			return fmt.Errorf("%w: field %q", errs.ErrValueConversion, f.Name)
		}
		copy(buf, s)
	default:
		if !putRawScalar(endian.GetLittleEndianEngine(), buf, f.DataType, value) {
			return fmt.Errorf("%w: field %q", errs.ErrValueConversion, f.Name)
		}
	}

	if _, err := u.f.WriteAt(buf, pos); err != nil {
		return err
	}
	_, err = u.f.Seek(pre, io.SeekStart)

	return err
}
