package file

import (
	"fmt"
	"io"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/section"
)

// WriteTo serializes the complete header: fixed header, per-return counts,
// block descriptor, field definitions, waveform descriptors and the
// trailing reserved block. UpdateHeader runs first so the serialized data
// offset equals the serialized length.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	h.UpdateHeader()

	engine := endian.GetLittleEndianEngine()
	buf := h.fileHeader.Bytes()
	for _, count := range h.pointsByReturn {
		buf = engine.AppendUint64(buf, count)
	}
	buf = append(buf, h.blockDesc.Bytes()...)

	for i := 0; i < h.schema.FieldCount(); i++ {
		f, _ := h.schema.Field(i)
		def := fieldToDefinition(f)
		defBytes, err := def.Bytes()
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf = engine.AppendUint32(buf, uint32(f.ID))
		buf = append(buf, defBytes...)
	}

	for i := range h.waveformDesc {
		buf = append(buf, h.waveformDesc[i].Bytes()...)
	}

	buf = append(buf, make([]byte, section.ReservedBytesAfterFields)...)

	n, err := w.Write(buf)

	return int64(n), err
}

// ReadFrom deserializes a complete header, re-materializing the schema
// from the serialized field definitions.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	var read int64

	fixed := make([]byte, section.FileHeaderSize)
	n, err := io.ReadFull(r, fixed)
	read += int64(n)
	if err != nil {
		return read, err
	}
	if err := h.fileHeader.Parse(fixed); err != nil {
		return read, err
	}

	returnCount := int(h.fileHeader.ReturnCount)
	h.pointsByReturn = make([]uint64, returnCount)
	if returnCount > 0 {
		engine := endian.GetLittleEndianEngine()
		counts := make([]byte, returnCount*8)
		n, err = io.ReadFull(r, counts)
		read += int64(n)
		if err != nil {
			return read, err
		}
		for i := 0; i < returnCount; i++ {
			h.pointsByReturn[i] = engine.Uint64(counts[i*8 : i*8+8])
		}
	}

	block := make([]byte, section.BlockDescSize)
	n, err = io.ReadFull(r, block)
	read += int64(n)
	if err != nil {
		return read, err
	}
	if err := h.blockDesc.Parse(block); err != nil {
		return read, err
	}

	n64, err := h.readFieldDefinitions(r)
	read += n64
	if err != nil {
		return read, err
	}

	h.waveformDesc = h.waveformDesc[:0]
	for i := 0; i < int(h.blockDesc.WaveformDescCount); i++ {
		wd := make([]byte, section.WaveformPacketDescSize)
		n, err = io.ReadFull(r, wd)
		read += int64(n)
		if err != nil {
			return read, err
		}
		var desc section.WaveformPacketDesc
		if err := desc.Parse(wd); err != nil {
			return read, err
		}
		h.waveformDesc = append(h.waveformDesc, desc)
	}

	reserved := make([]byte, section.ReservedBytesAfterFields)
	n, err = io.ReadFull(r, reserved)
	read += int64(n)
	if err != nil {
		return read, err
	}

	return read, nil
}

// readFieldDefinitions decodes fieldCount (id, definition) pairs and adds
// the reconstructed fields to the schema. The definition's size follows
// from its leading type byte.
func (h *Header) readFieldDefinitions(r io.Reader) (int64, error) {
	var read int64
	engine := endian.GetLittleEndianEngine()

	for i := 0; i < int(h.blockDesc.FieldCount); i++ {
		idBuf := make([]byte, 5)
		n, err := io.ReadFull(r, idBuf)
		read += int64(n)
		if err != nil {
			return read, err
		}
		id := format.FieldID(engine.Uint32(idBuf[0:4]))

		// The fifth byte is the definition's type tag; it fixes the size
		// of the remaining payload.
		t := format.DataType(idBuf[4])
		size := section.FieldDefinitionSize(t)
		if size == 0 {
			return read, fmt.Errorf("%w: field %d has type %v", errs.ErrInvalidFieldDefinition, i, t)
		}
		defBuf := make([]byte, size)
		defBuf[0] = idBuf[4]
		n, err = io.ReadFull(r, defBuf[1:])
		read += int64(n)
		if err != nil {
			return read, err
		}

		var def section.FieldDefinition
		if _, err := def.Parse(defBuf); err != nil {
			return read, err
		}
		field, err := definitionToField(id, def)
		if err != nil {
			return read, err
		}
		h.schema.AddField(field)
	}

	return read, nil
}

// fieldToDefinition converts a schema field to its serialized form. The
// min/max statistics and the bit width are always marked valid; scale and
// offset validity mirrors the field's transform flags.
func fieldToDefinition(f schema.Field) section.FieldDefinition {
	def := section.FieldDefinition{
		DataType:    f.DataType,
		Name:        f.Name,
		SizeInBits:  uint32(f.BitSize),
		Min:         f.Min,
		Max:         f.Max,
		Scale:       f.Scale,
		Offset:      f.Offset,
		Description: f.Description,
	}
	def.SetOption(section.FieldOptMin, true)
	def.SetOption(section.FieldOptMax, true)
	def.SetOption(section.FieldOptSizeInBits, true)
	def.SetOption(section.FieldOptScale, f.Scaled)
	def.SetOption(section.FieldOptOffset, f.Offseted)

	return def
}

// definitionToField reconstructs a schema field from its serialized form.
// Flags that are not serialized (numeric, integer, signed, active) are
// derived from the data type; coordinate and scan-angle fields carry sign
// despite their unsigned storage type.
func definitionToField(id format.FieldID, def section.FieldDefinition) (schema.Field, error) {
	bits := int(def.SizeInBits)
	if !def.HasOption(section.FieldOptSizeInBits) || bits == 0 {
		bits = def.DataType.Size() * 8
	}
	if bits <= 0 {
		return schema.Field{}, errs.ErrInvalidFieldDefinition
	}

	switch def.DataType {
	case format.TypeChar:
		if bits%8 != 0 {
			return schema.Field{}, errs.ErrInvalidFieldDefinition
		}
	case format.TypeBit:
		// arbitrary widths allowed
	default:
		if (bits+7)/8 > def.DataType.Size() {
			return schema.Field{}, errs.ErrInvalidFieldDefinition
		}
	}

	f := schema.NewField(id, def.Name, def.DataType, bits)
	f.Description = def.Description
	f.Active = true
	f.Numeric = def.DataType.IsNumeric()
	f.Integer = def.DataType.IsInteger()
	f.Signed = def.DataType.IsSigned()
	switch id {
	case format.FieldX, format.FieldY, format.FieldZ, format.FieldScanAngleRank:
		f.Signed = true
	}

	if def.HasOption(section.FieldOptMin) {
		f.Min = def.Min
	}
	if def.HasOption(section.FieldOptMax) {
		f.Max = def.Max
	}
	if def.HasOption(section.FieldOptScale) {
		f.Scaled = true
		f.Scale = def.Scale
	}
	if def.HasOption(section.FieldOptOffset) {
		f.Offseted = true
		f.Offset = def.Offset
	}

	return f, nil
}
