package file

import (
	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/section"
)

// WaveformPacketRecord assembles one point's multi-band waveform payload
// in memory: an ordered list of (definition, payload) pairs whose byte
// offsets are recomputed after every append.
type WaveformPacketRecord struct {
	defs []section.WaveformPacketDataDefinition
	data [][]byte
}

// NewWaveformPacketRecord creates an empty record.
func NewWaveformPacketRecord() *WaveformPacketRecord {
	return &WaveformPacketRecord{}
}

// AddRawWaveformPacket appends one band's definition and payload. The
// definition's size is overwritten with the payload size and every
// definition's byte offset is recomputed: bandCount prefix, then the
// definition table, then the payloads in order.
func (r *WaveformPacketRecord) AddRawWaveformPacket(def section.WaveformPacketDataDefinition, data []byte) {
	def.Size = uint32(len(data))
	r.defs = append(r.defs, def)
	r.data = append(r.data, append([]byte(nil), data...))
	r.updateByteOffsets()
}

// BandCount returns the number of bands added so far.
func (r *WaveformPacketRecord) BandCount() int { return len(r.defs) }

// Definitions returns the current definition table.
func (r *WaveformPacketRecord) Definitions() []section.WaveformPacketDataDefinition {
	return r.defs
}

// ToWaveformData emits the assembled payload:
//
//	u16 bandCount
//	WaveformPacketDataDefinition[bandCount]
//	concatenated payloads in order
func (r *WaveformPacketRecord) ToWaveformData() []byte {
	const bandCountBytes = 2
	const c = section.WaveformPacketDataDefinitionSize

	total := bandCountBytes + len(r.defs)*c
	for _, d := range r.data {
		total += len(d)
	}

	out := make([]byte, 0, total)
	out = endian.GetLittleEndianEngine().AppendUint16(out, uint16(len(r.defs)))
	for i := range r.defs {
		out = append(out, r.defs[i].Bytes()...)
	}
	for _, d := range r.data {
		out = append(out, d...)
	}

	return out
}

// updateByteOffsets rewrites every definition's byte offset to
// sizeof(u16) + n*sizeof(definition) + the sizes of all preceding
// payloads, where n is the current entry count.
func (r *WaveformPacketRecord) updateByteOffsets() {
	const bandCountBytes = 2
	const c = section.WaveformPacketDataDefinitionSize

	dataBytes := 0
	for i := range r.defs {
		r.defs[i].ByteOffset = uint32(bandCountBytes + len(r.defs)*c + dataBytes)
		dataBytes += len(r.data[i])
	}
}

// ParseWaveformData splits an assembled waveform payload back into its
// definition table; payload regions stay addressed through the returned
// definitions' byte offsets.
func ParseWaveformData(data []byte) []section.WaveformPacketDataDefinition {
	if len(data) < 2 {
		return nil
	}
	count := int(endian.GetLittleEndianEngine().Uint16(data[0:2]))
	defs := make([]section.WaveformPacketDataDefinition, 0, count)
	pos := 2
	for i := 0; i < count; i++ {
		end := pos + section.WaveformPacketDataDefinitionSize
		if end > len(data) {
			break
		}
		var def section.WaveformPacketDataDefinition
		if err := def.Parse(data[pos:end]); err != nil {
			break
		}
		defs = append(defs, def)
		pos = end
	}

	return defs
}
