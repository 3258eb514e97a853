package section

import (
	"math"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
)

// FileHeader is the fixed header at the start of every container file.
type FileHeader struct {
	Signature    [5]byte // byte offset 0-4, always "HSPCD"
	VersionMajor uint8   // byte offset 5
	VersionMinor uint8   // byte offset 6
	ByteOrder    uint8   // byte offset 7
	PointCount   uint64  // byte offset 8-15
	DataOffset   uint64  // byte offset 16-23

	// Global extents, byte offset 24-71.
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64

	// IndexOffset occupies the first 8 bytes of the 32-byte reserved area
	// (byte offset 72-79). A non-zero value is the byte position of an
	// inline spatial index block appended after the point and waveform
	// data.
	IndexOffset uint64
	Reserved    [24]byte // byte offset 80-103

	ReturnCount uint32 // byte offset 104-107
}

// NewFileHeader returns a header stamped with the signature and the only
// defined version.
func NewFileHeader() *FileHeader {
	h := &FileHeader{
		VersionMajor: VersionMajorMin,
		VersionMinor: VersionMinorMin,
		ByteOrder:    ByteOrderLittleEndian,
	}
	copy(h.Signature[:], FileSignature)

	return h
}

// Parse decodes the fixed header from a byte slice.
//
// Returns errs.ErrInvalidHeaderSize when data is not exactly
// FileHeaderSize bytes, errs.ErrInvalidSignature when the magic does not
// match, and errs.ErrInvalidVersion for an unsupported version pair.
func (h *FileHeader) Parse(data []byte) error {
	if len(data) != FileHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	copy(h.Signature[:], data[0:5])
	if string(h.Signature[:]) != FileSignature {
		return errs.ErrInvalidSignature
	}

	h.VersionMajor = data[5]
	h.VersionMinor = data[6]
	h.ByteOrder = data[7]
	if h.VersionMajor < VersionMajorMin || h.VersionMajor > VersionMajorMax ||
		h.VersionMinor > VersionMinorMax {
		return errs.ErrInvalidVersion
	}

	engine := endian.GetLittleEndianEngine()
	h.PointCount = engine.Uint64(data[8:16])
	h.DataOffset = engine.Uint64(data[16:24])
	h.XMin = math.Float64frombits(engine.Uint64(data[24:32]))
	h.XMax = math.Float64frombits(engine.Uint64(data[32:40]))
	h.YMin = math.Float64frombits(engine.Uint64(data[40:48]))
	h.YMax = math.Float64frombits(engine.Uint64(data[48:56]))
	h.ZMin = math.Float64frombits(engine.Uint64(data[56:64]))
	h.ZMax = math.Float64frombits(engine.Uint64(data[64:72]))
	h.IndexOffset = engine.Uint64(data[72:80])
	copy(h.Reserved[:], data[80:104])
	h.ReturnCount = engine.Uint32(data[104:108])

	return nil
}

// Bytes serializes the fixed header into a new FileHeaderSize byte slice.
func (h *FileHeader) Bytes() []byte {
	b := make([]byte, FileHeaderSize)
	engine := endian.GetLittleEndianEngine()

	copy(b[0:5], h.Signature[:])
	b[5] = h.VersionMajor
	b[6] = h.VersionMinor
	b[7] = h.ByteOrder
	engine.PutUint64(b[8:16], h.PointCount)
	engine.PutUint64(b[16:24], h.DataOffset)
	engine.PutUint64(b[24:32], math.Float64bits(h.XMin))
	engine.PutUint64(b[32:40], math.Float64bits(h.XMax))
	engine.PutUint64(b[40:48], math.Float64bits(h.YMin))
	engine.PutUint64(b[48:56], math.Float64bits(h.YMax))
	engine.PutUint64(b[56:64], math.Float64bits(h.ZMin))
	engine.PutUint64(b[64:72], math.Float64bits(h.ZMax))
	engine.PutUint64(b[72:80], h.IndexOffset)
	copy(b[80:104], h.Reserved[:])
	engine.PutUint32(b[104:108], h.ReturnCount)

	return b
}
