package section

import (
	"math"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
)

// WaveformPacketDesc describes one class of waveform packets referenced by
// points through their descriptor index.
type WaveformPacketDesc struct {
	ID           uint16  // byte offset 0-1
	Reserved     [4]byte // byte offset 2-5
	SampleBits   uint8   // byte offset 6
	CompressType uint8   // byte offset 7, a format.CompressionType value
	Samples      uint32  // byte offset 8-11
	Interval     uint32  // byte offset 12-15, sample interval in picoseconds
	Gain         float64 // byte offset 16-23, digitizer gain
	Offset       float64 // byte offset 24-31, digitizer offset
}

// NewWaveformPacketDesc builds a descriptor from its metadata values.
func NewWaveformPacketDesc(id uint16, sampleBits uint8, compressType format.CompressionType,
	samples, interval uint32, gain, offset float64,
) WaveformPacketDesc {
	return WaveformPacketDesc{
		ID:           id,
		SampleBits:   sampleBits,
		CompressType: uint8(compressType),
		Samples:      samples,
		Interval:     interval,
		Gain:         gain,
		Offset:       offset,
	}
}

// Compression returns the descriptor's payload compression type.
func (d *WaveformPacketDesc) Compression() format.CompressionType {
	return format.CompressionType(d.CompressType)
}

// Parse decodes the descriptor from exactly WaveformPacketDescSize bytes.
func (d *WaveformPacketDesc) Parse(data []byte) error {
	if len(data) != WaveformPacketDescSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	d.ID = engine.Uint16(data[0:2])
	copy(d.Reserved[:], data[2:6])
	d.SampleBits = data[6]
	d.CompressType = data[7]
	d.Samples = engine.Uint32(data[8:12])
	d.Interval = engine.Uint32(data[12:16])
	d.Gain = math.Float64frombits(engine.Uint64(data[16:24]))
	d.Offset = math.Float64frombits(engine.Uint64(data[24:32]))

	return nil
}

// Bytes serializes the descriptor into a new WaveformPacketDescSize slice.
func (d *WaveformPacketDesc) Bytes() []byte {
	b := make([]byte, WaveformPacketDescSize)
	engine := endian.GetLittleEndianEngine()

	engine.PutUint16(b[0:2], d.ID)
	copy(b[2:6], d.Reserved[:])
	b[6] = d.SampleBits
	b[7] = d.CompressType
	engine.PutUint32(b[8:12], d.Samples)
	engine.PutUint32(b[12:16], d.Interval)
	engine.PutUint64(b[16:24], math.Float64bits(d.Gain))
	engine.PutUint64(b[24:32], math.Float64bits(d.Offset))

	return b
}

// Equal compares two descriptors field by field.
func (d WaveformPacketDesc) Equal(other WaveformPacketDesc) bool {
	return d.ID == other.ID &&
		d.SampleBits == other.SampleBits &&
		d.CompressType == other.CompressType &&
		d.Samples == other.Samples &&
		d.Interval == other.Interval &&
		d.Gain == other.Gain &&
		d.Offset == other.Offset
}

// WaveformPacketDataDefinition locates one band's waveform packet inside a
// point's waveform payload.
type WaveformPacketDataDefinition struct {
	BandIndex       uint16  // byte offset 0-1
	DescriptorIndex uint16  // byte offset 2-3
	TemporalOffset  float32 // byte offset 4-7
	DX              float32 // byte offset 8-11, anchor vector
	DY              float32 // byte offset 12-15
	DZ              float32 // byte offset 16-19
	ByteOffset      uint32  // byte offset 20-23, into the point's payload
	Size            uint32  // byte offset 24-27, payload byte size
}

// Parse decodes the definition from exactly
// WaveformPacketDataDefinitionSize bytes.
func (d *WaveformPacketDataDefinition) Parse(data []byte) error {
	if len(data) != WaveformPacketDataDefinitionSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	d.BandIndex = engine.Uint16(data[0:2])
	d.DescriptorIndex = engine.Uint16(data[2:4])
	d.TemporalOffset = math.Float32frombits(engine.Uint32(data[4:8]))
	d.DX = math.Float32frombits(engine.Uint32(data[8:12]))
	d.DY = math.Float32frombits(engine.Uint32(data[12:16]))
	d.DZ = math.Float32frombits(engine.Uint32(data[16:20]))
	d.ByteOffset = engine.Uint32(data[20:24])
	d.Size = engine.Uint32(data[24:28])

	return nil
}

// Bytes serializes the definition into a new
// WaveformPacketDataDefinitionSize slice.
func (d *WaveformPacketDataDefinition) Bytes() []byte {
	b := make([]byte, WaveformPacketDataDefinitionSize)
	engine := endian.GetLittleEndianEngine()

	engine.PutUint16(b[0:2], d.BandIndex)
	engine.PutUint16(b[2:4], d.DescriptorIndex)
	engine.PutUint32(b[4:8], math.Float32bits(d.TemporalOffset))
	engine.PutUint32(b[8:12], math.Float32bits(d.DX))
	engine.PutUint32(b[12:16], math.Float32bits(d.DY))
	engine.PutUint32(b[16:20], math.Float32bits(d.DZ))
	engine.PutUint32(b[20:24], d.ByteOffset)
	engine.PutUint32(b[24:28], d.Size)

	return b
}
