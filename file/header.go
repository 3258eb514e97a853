// Package file implements the container-level objects of the HSPCD format:
// the Header with its embedded schema, the Point record, waveform packet
// assembly, and the Reader/Writer/Updater file I/O front-ends.
package file

import (
	"fmt"
	"sync"

	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/section"
)

// Header owns the file-level metadata of one container file: the fixed
// file header, the per-return record counts, the block descriptor, the
// waveform packet descriptors and the embedded schema.
//
// A Header is shared by reference with every Point read from or written to
// its file; Points borrow it and must not outlive it unless they are
// rebound with Point.SetHeader.
type Header struct {
	fileHeader     *section.FileHeader
	blockDesc      *section.BlockDesc
	waveformDesc   []section.WaveformPacketDesc
	pointsByReturn []uint64
	schema         *schema.Schema
	compressed     bool
}

// NewHeader creates a header whose schema holds the required-field
// skeleton of the given point format.
func NewHeader(pointFormat format.PointFormat) *Header {
	h := &Header{
		fileHeader: section.NewFileHeader(),
		blockDesc:  section.NewBlockDesc(),
		schema:     schema.New(pointFormat),
	}
	h.init()

	return h
}

// NewHeaderFromSchema creates a header embedding a copy of the given
// schema.
func NewHeaderFromSchema(s *schema.Schema) (*Header, error) {
	h := &Header{
		fileHeader: section.NewFileHeader(),
		blockDesc:  section.NewBlockDesc(),
		schema:     s.Clone(),
	}
	if err := h.checkCoordinateFields(); err != nil {
		return nil, err
	}
	h.init()

	return h, nil
}

// newEmptyHeader returns a header with no schema skeleton, the starting
// point for deserialization.
func newEmptyHeader() *Header {
	h := &Header{
		fileHeader: section.NewFileHeader(),
		blockDesc:  section.NewBlockDesc(),
		schema:     schema.New(format.PointFormatNone),
	}
	h.init()

	return h
}

func (h *Header) init() {
	h.blockDesc.FieldCount = uint32(h.schema.FieldCount())
	h.SetScale(1.0, 1.0, 1.0)
	h.fileHeader.DataOffset = uint64(h.calculateHeaderSize())
}

var defaultHeader = sync.OnceValue(func() *Header {
	return NewHeader(format.PointFormat0)
})

// DefaultHeader returns the process-wide fallback header used by points
// constructed without an explicit header. It is initialized on first use
// and must be treated as read-only.
func DefaultHeader() *Header {
	return defaultHeader()
}

// FileSignature returns the 5-byte file signature.
func (h *Header) FileSignature() string {
	return string(h.fileHeader.Signature[:])
}

// VersionMajor returns the major format version.
func (h *Header) VersionMajor() uint8 { return h.fileHeader.VersionMajor }

// VersionMinor returns the minor format version.
func (h *Header) VersionMinor() uint8 { return h.fileHeader.VersionMinor }

// SetVersion sets the format version after range-checking it against the
// defined versions.
func (h *Header) SetVersion(major, minor uint8) error {
	if major < section.VersionMajorMin || major > section.VersionMajorMax ||
		minor > section.VersionMinorMax {
		return errs.ErrInvalidVersion
	}
	h.fileHeader.VersionMajor = major
	h.fileHeader.VersionMinor = minor

	return nil
}

// DataOffset returns the byte position where point records begin.
func (h *Header) DataOffset() uint64 { return h.fileHeader.DataOffset }

// SetDataOffset overrides the record start position. UpdateHeader
// recomputes it before serialization.
func (h *Header) SetDataOffset(v uint64) { h.fileHeader.DataOffset = v }

// DataRecordLength returns the fixed byte length of each point record.
func (h *Header) DataRecordLength() uint32 {
	return uint32(h.schema.ByteSize())
}

// PointRecordsCount returns the total number of point records.
func (h *Header) PointRecordsCount() uint64 { return h.fileHeader.PointCount }

// SetPointRecordsCount sets the total number of point records.
func (h *Header) SetPointRecordsCount(v uint64) { h.fileHeader.PointCount = v }

// ReturnCount returns the number of returns tracked by the per-return
// record counts.
func (h *Header) ReturnCount() uint32 { return h.fileHeader.ReturnCount }

// SetReturnCount resizes the per-return record count table.
func (h *Header) SetReturnCount(v uint32) {
	h.fileHeader.ReturnCount = v
	counts := make([]uint64, v)
	copy(counts, h.pointsByReturn)
	h.pointsByReturn = counts
}

// SetPointRecordByReturn sets the record count of one return.
func (h *Header) SetPointRecordByReturn(index int, v uint64) bool {
	if index < 0 || index >= len(h.pointsByReturn) {
		return false
	}
	h.pointsByReturn[index] = v

	return true
}

// PointRecordByReturn returns the record count of one return.
func (h *Header) PointRecordByReturn(index int) uint64 {
	if index < 0 || index >= len(h.pointsByReturn) {
		return 0
	}

	return h.pointsByReturn[index]
}

// PointRecordsByReturnCount returns a copy of the per-return counts.
func (h *Header) PointRecordsByReturnCount() []uint64 {
	return append([]uint64(nil), h.pointsByReturn...)
}

func (h *Header) coordScale(id format.FieldID) float64 {
	if f, ok := h.schema.FieldByID(id); ok {
		return f.Scale
	}

	return 1.0
}

func (h *Header) coordOffset(id format.FieldID) float64 {
	if f, ok := h.schema.FieldByID(id); ok {
		return f.Offset
	}

	return 0.0
}

// ScaleX returns the X coordinate scale factor.
func (h *Header) ScaleX() float64 { return h.coordScale(format.FieldX) }

// ScaleY returns the Y coordinate scale factor.
func (h *Header) ScaleY() float64 { return h.coordScale(format.FieldY) }

// ScaleZ returns the Z coordinate scale factor.
func (h *Header) ScaleZ() float64 { return h.coordScale(format.FieldZ) }

// SetScale propagates the coordinate scale factors into the X, Y and Z
// schema fields.
func (h *Header) SetScale(x, y, z float64) {
	for id, v := range map[format.FieldID]float64{
		format.FieldX: x, format.FieldY: y, format.FieldZ: z,
	} {
		if f, ok := h.schema.FieldByID(id); ok {
			f.Scaled = true
			f.Scale = v
		}
	}
}

// OffsetX returns the X coordinate offset.
func (h *Header) OffsetX() float64 { return h.coordOffset(format.FieldX) }

// OffsetY returns the Y coordinate offset.
func (h *Header) OffsetY() float64 { return h.coordOffset(format.FieldY) }

// OffsetZ returns the Z coordinate offset.
func (h *Header) OffsetZ() float64 { return h.coordOffset(format.FieldZ) }

// SetOffset propagates the coordinate offsets into the X, Y and Z schema
// fields.
func (h *Header) SetOffset(x, y, z float64) {
	for id, v := range map[format.FieldID]float64{
		format.FieldX: x, format.FieldY: y, format.FieldZ: z,
	} {
		if f, ok := h.schema.FieldByID(id); ok {
			f.Offseted = true
			f.Offset = v
		}
	}
}

// MinX returns the minimum X extent.
func (h *Header) MinX() float64 { return h.fileHeader.XMin }

// MaxX returns the maximum X extent.
func (h *Header) MaxX() float64 { return h.fileHeader.XMax }

// MinY returns the minimum Y extent.
func (h *Header) MinY() float64 { return h.fileHeader.YMin }

// MaxY returns the maximum Y extent.
func (h *Header) MaxY() float64 { return h.fileHeader.YMax }

// MinZ returns the minimum Z extent.
func (h *Header) MinZ() float64 { return h.fileHeader.ZMin }

// MaxZ returns the maximum Z extent.
func (h *Header) MaxZ() float64 { return h.fileHeader.ZMax }

// SetMax sets the maximum extents of X, Y and Z.
func (h *Header) SetMax(x, y, z float64) {
	h.fileHeader.XMax = x
	h.fileHeader.YMax = y
	h.fileHeader.ZMax = z
}

// SetMin sets the minimum extents of X, Y and Z.
func (h *Header) SetMin(x, y, z float64) {
	h.fileHeader.XMin = x
	h.fileHeader.YMin = y
	h.fileHeader.ZMin = z
}

// Extent returns the global extents as bounds.
func (h *Header) Extent() geom.Bounds3 {
	return geom.Bounds3{
		MinX: h.fileHeader.XMin, MaxX: h.fileHeader.XMax,
		MinY: h.fileHeader.YMin, MaxY: h.fileHeader.YMax,
		MinZ: h.fileHeader.ZMin, MaxZ: h.fileHeader.ZMax,
	}
}

// SetExtent sets the global extents from bounds.
func (h *Header) SetExtent(b geom.Bounds3) {
	h.fileHeader.XMin, h.fileHeader.XMax = b.MinX, b.MaxX
	h.fileHeader.YMin, h.fileHeader.YMax = b.MinY, b.MaxY
	h.fileHeader.ZMin, h.fileHeader.ZMax = b.MinZ, b.MaxZ
}

// Schema returns the embedded schema.
func (h *Header) Schema() *schema.Schema { return h.schema }

// SetSchema replaces the embedded schema with a copy and resets the X, Y
// and Z fields to unscaled storage. The coordinate fields must be present.
func (h *Header) SetSchema(s *schema.Schema) error {
	c := s.Clone()
	for _, id := range []format.FieldID{format.FieldX, format.FieldY, format.FieldZ} {
		f, ok := c.FieldByID(id)
		if !ok {
			return fmt.Errorf("%w: %s dimension not on schema", errs.ErrRequiredFieldMissing, id)
		}
		f.Scale = 1.0
		f.Offset = 0.0
		f.Precise = true
	}
	h.schema = c
	h.blockDesc.FieldCount = uint32(c.FieldCount())

	return nil
}

func (h *Header) checkCoordinateFields() error {
	for _, id := range []format.FieldID{format.FieldX, format.FieldY, format.FieldZ} {
		if !h.schema.HasField(id) {
			return fmt.Errorf("%w: %s dimension not on schema", errs.ErrRequiredFieldMissing, id)
		}
	}

	return nil
}

// SetDataFormat replaces the schema's required-field skeleton with the new
// point format preset, keeping user-added fields.
func (h *Header) SetDataFormat(pointFormat format.PointFormat) {
	h.schema.SetDataFormat(pointFormat)
	h.blockDesc.FieldCount = uint32(h.schema.FieldCount())
}

// Compressed reports whether point records are stored compressed. No
// record codec is defined; the flag is carried for interoperability.
func (h *Header) Compressed() bool { return h.compressed }

// SetCompressed records the compressed flag.
func (h *Header) SetCompressed(v bool) { h.compressed = v }

// HasWaveformData reports whether the schema and descriptors together
// enable per-point waveform payloads.
func (h *Header) HasWaveformData() bool {
	return h.blockDesc.WaveformDescCount > 0 &&
		h.schema.HasField(format.FieldByteOffsetToWaveformData) &&
		h.schema.HasField(format.FieldWaveformDataSize)
}

// AddWaveformPacketDesc appends a waveform packet descriptor.
func (h *Header) AddWaveformPacketDesc(desc section.WaveformPacketDesc) {
	h.waveformDesc = append(h.waveformDesc, desc)
	h.blockDesc.WaveformDescCount++
}

// WaveformDescriptors returns the waveform packet descriptors.
func (h *Header) WaveformDescriptors() []section.WaveformPacketDesc {
	return h.waveformDesc
}

// WaveformDescriptor returns the descriptor at the given index.
func (h *Header) WaveformDescriptor(index int) (section.WaveformPacketDesc, bool) {
	if index < 0 || index >= len(h.waveformDesc) {
		return section.WaveformPacketDesc{}, false
	}

	return h.waveformDesc[index], true
}

// InternalWaveformData reports whether waveform payloads live inside this
// file rather than a companion .hsw file.
func (h *Header) InternalWaveformData() bool {
	return h.blockDesc.InternalWaveformData()
}

// SetInternalWaveformData sets the internal waveform storage bit.
func (h *Header) SetInternalWaveformData(v bool) {
	h.blockDesc.SetInternalWaveformData(v)
}

// InternalBandData reports whether band values live inside the point
// records.
func (h *Header) InternalBandData() bool {
	return h.blockDesc.InternalBandData()
}

// SetInternalBandData sets the internal band storage bit.
func (h *Header) SetInternalBandData(v bool) {
	h.blockDesc.SetInternalBandData(v)
}

// IndexOffset returns the byte position of the inline spatial index block,
// or 0 when none is stored.
func (h *Header) IndexOffset() uint64 { return h.fileHeader.IndexOffset }

// SetIndexOffset records the inline spatial index position.
func (h *Header) SetIndexOffset(v uint64) { h.fileHeader.IndexOffset = v }

// UpdateHeader recomputes the field count and the point data offset from
// the current schema and descriptor table. It must run before the header
// is serialized.
func (h *Header) UpdateHeader() {
	h.blockDesc.FieldCount = uint32(h.schema.FieldCount())
	h.blockDesc.WaveformDescCount = uint16(len(h.waveformDesc))
	h.fileHeader.ReturnCount = uint32(len(h.pointsByReturn))
	h.fileHeader.DataOffset = uint64(h.calculateHeaderSize())
}

// calculateHeaderSize returns the serialized header size: the fixed
// header, the per-return counts, the block descriptor, every field
// definition with its leading field id, the waveform descriptors, and the
// trailing reserved block.
func (h *Header) calculateHeaderSize() int {
	size := section.FileHeaderSize +
		len(h.pointsByReturn)*8 +
		section.BlockDescSize

	for i := 0; i < h.schema.FieldCount(); i++ {
		f, _ := h.schema.Field(i)
		size += 4 // field id
		size += section.FieldDefinitionSize(f.DataType)
	}

	size += len(h.waveformDesc) * section.WaveformPacketDescSize
	size += section.ReservedBytesAfterFields

	return size
}

// Equal reports whether two headers agree on every serialized attribute.
func (h *Header) Equal(other *Header) bool {
	if other == nil {
		return false
	}
	if *h.fileHeader != *other.fileHeader {
		return false
	}
	if *h.blockDesc != *other.blockDesc {
		return false
	}
	if len(h.pointsByReturn) != len(other.pointsByReturn) {
		return false
	}
	for i := range h.pointsByReturn {
		if h.pointsByReturn[i] != other.pointsByReturn[i] {
			return false
		}
	}
	if len(h.waveformDesc) != len(other.waveformDesc) {
		return false
	}
	for i := range h.waveformDesc {
		if !h.waveformDesc[i].Equal(other.waveformDesc[i]) {
			return false
		}
	}

	return h.schema.Equal(other.schema)
}

// IsCompatible reports whether two headers describe interchangeable files:
// same return count, field-by-field equal schemas and the same waveform
// descriptor count. Per-return counts and extents may differ.
func (h *Header) IsCompatible(other *Header) bool {
	if h.ReturnCount() != other.ReturnCount() {
		return false
	}
	if !h.schema.Equal(other.schema) {
		return false
	}

	return len(h.waveformDesc) == len(other.waveformDesc)
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	fh := *h.fileHeader
	bd := *h.blockDesc

	return &Header{
		fileHeader:     &fh,
		blockDesc:      &bd,
		waveformDesc:   append([]section.WaveformPacketDesc(nil), h.waveformDesc...),
		pointsByReturn: append([]uint64(nil), h.pointsByReturn...),
		schema:         h.schema.Clone(),
		compressed:     h.compressed,
	}
}
