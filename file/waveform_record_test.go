package file

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/section"
)

func sampleDefinition(band, descriptor uint16) section.WaveformPacketDataDefinition {
	return section.WaveformPacketDataDefinition{
		BandIndex:       band,
		DescriptorIndex: descriptor,
		TemporalOffset:  1234,
		DX:              0.1,
		DY:              0.1,
		DZ:              0.1,
	}
}

func TestWaveformPacketRecordLayout(t *testing.T) {
	record := NewWaveformPacketRecord()
	record.AddRawWaveformPacket(sampleDefinition(0, 0), []byte{1, 2, 3, 4})
	record.AddRawWaveformPacket(sampleDefinition(1, 0), []byte{9, 8})

	defs := record.Definitions()
	require.Len(t, defs, 2)
	require.Equal(t, uint32(4), defs[0].Size)
	require.Equal(t, uint32(2), defs[1].Size)

	// byteOffset = sizeof(u16) + n*sizeof(def) + preceding payload bytes
	require.Equal(t, uint32(2+2*28), defs[0].ByteOffset)
	require.Equal(t, uint32(2+2*28+4), defs[1].ByteOffset)

	data := record.ToWaveformData()
	require.Len(t, data, 2+2*28+6)
	require.Equal(t, byte(2), data[0])
	require.Equal(t, byte(0), data[1])
	require.Equal(t, []byte{1, 2, 3, 4, 9, 8}, data[len(data)-6:])
}

func TestWaveformDataParseRoundTrip(t *testing.T) {
	record := NewWaveformPacketRecord()
	record.AddRawWaveformPacket(sampleDefinition(0, 1), []byte{5, 5, 5})
	record.AddRawWaveformPacket(sampleDefinition(2, 0), []byte{7})

	data := record.ToWaveformData()
	defs := ParseWaveformData(data)
	require.Equal(t, record.Definitions(), defs)

	// Payload bytes are byte-identical through the offsets.
	first := data[defs[0].ByteOffset : defs[0].ByteOffset+defs[0].Size]
	require.Equal(t, []byte{5, 5, 5}, first)
	second := data[defs[1].ByteOffset : defs[1].ByteOffset+defs[1].Size]
	require.Equal(t, []byte{7}, second)
}

func TestWaveformOffsetsRecomputedOnAppend(t *testing.T) {
	record := NewWaveformPacketRecord()
	record.AddRawWaveformPacket(sampleDefinition(0, 0), []byte{1})
	firstOffset := record.Definitions()[0].ByteOffset

	record.AddRawWaveformPacket(sampleDefinition(1, 0), []byte{2})
	require.NotEqual(t, firstOffset, record.Definitions()[0].ByteOffset)
	require.Equal(t, uint32(2+2*28), record.Definitions()[0].ByteOffset)
}
