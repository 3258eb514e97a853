package file

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/section"
)

func TestHeaderDefaults(t *testing.T) {
	h := NewHeader(format.PointFormat0)

	require.Equal(t, "HSPCD", h.FileSignature())
	require.Equal(t, uint8(1), h.VersionMajor())
	require.Equal(t, uint8(0), h.VersionMinor())
	require.Equal(t, uint32(12), h.DataRecordLength())
	require.Equal(t, 1.0, h.ScaleX())
	require.Equal(t, 0.0, h.OffsetX())
	require.True(t, h.InternalBandData())
	require.True(t, h.InternalWaveformData())
	require.False(t, h.HasWaveformData())
}

func TestHeaderVersionValidation(t *testing.T) {
	h := NewHeader(format.PointFormat0)
	require.NoError(t, h.SetVersion(1, 0))
	require.Error(t, h.SetVersion(2, 0))
	require.Error(t, h.SetVersion(0, 0))
	require.Error(t, h.SetVersion(1, 9))
}

func TestHeaderScaleOffsetPropagation(t *testing.T) {
	h := NewHeader(format.PointFormat1)
	h.SetScale(0.01, 0.01, 0.001)
	h.SetOffset(1000, 2000, 50)

	require.Equal(t, 0.01, h.ScaleX())
	require.Equal(t, 0.001, h.ScaleZ())
	require.Equal(t, 2000.0, h.OffsetY())

	x, ok := h.Schema().FieldByID(format.FieldX)
	require.True(t, ok)
	require.True(t, x.Scaled)
	require.True(t, x.Offseted)
}

func TestHeaderWaveformDescriptors(t *testing.T) {
	h := NewHeader(format.PointFormat5)
	require.False(t, h.HasWaveformData())

	h.AddWaveformPacketDesc(section.NewWaveformPacketDesc(0, 8, format.CompressionNone, 128, 10, 1, 0))
	require.True(t, h.HasWaveformData())

	// Format 0 lacks the waveform locator fields, so descriptors alone do
	// not enable waveform data.
	h2 := NewHeader(format.PointFormat0)
	h2.AddWaveformPacketDesc(section.NewWaveformPacketDesc(0, 8, format.CompressionNone, 128, 10, 1, 0))
	require.False(t, h2.HasWaveformData())
}

func TestHeaderSerializationRoundTrip(t *testing.T) {
	h := NewHeader(format.PointFormat5)
	require.NoError(t, h.Schema().AddBands(schema.BandDesc{Type: format.TypeInt16, Name: "Band Value"}, 3))
	h.AddWaveformPacketDesc(section.NewWaveformPacketDesc(0, 8, format.CompressionNone, 128, 10, 1, 0))
	h.SetPointRecordsCount(42)
	h.SetReturnCount(3)
	h.SetPointRecordByReturn(0, 30)
	h.SetPointRecordByReturn(1, 10)
	h.SetPointRecordByReturn(2, 2)
	h.SetMin(-1, -2, -3)
	h.SetMax(4, 5, 6)
	h.SetScale(0.01, 0.01, 0.01)

	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	require.NoError(t, err)

	// The serialized data offset equals the serialized header length.
	require.Equal(t, int64(h.DataOffset()), n)
	require.Equal(t, int(h.DataOffset()), buf.Len())

	loaded := newEmptyHeader()
	m, err := loaded.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, n, m)

	require.True(t, h.Equal(loaded))
	require.Equal(t, h.DataRecordLength(), loaded.DataRecordLength())
	require.Equal(t, uint64(42), loaded.PointRecordsCount())
	require.Equal(t, []uint64{30, 10, 2}, loaded.PointRecordsByReturnCount())
	require.Equal(t, 0.01, loaded.ScaleX())
	require.Equal(t, 3, loaded.Schema().BandCount())
	require.Len(t, loaded.WaveformDescriptors(), 1)
}

func TestHeaderCompatibility(t *testing.T) {
	a := NewHeader(format.PointFormat5)
	b := NewHeader(format.PointFormat5)

	// Differing per-return counts stay compatible.
	a.SetReturnCount(2)
	b.SetReturnCount(2)
	a.SetPointRecordByReturn(0, 100)
	b.SetPointRecordByReturn(0, 7)
	require.True(t, a.IsCompatible(b))

	// Differing waveform descriptor counts are not.
	b.AddWaveformPacketDesc(section.NewWaveformPacketDesc(0, 8, format.CompressionNone, 128, 10, 1, 0))
	require.False(t, a.IsCompatible(b))

	// Differing schemas are not.
	c := NewHeader(format.PointFormat5)
	c.SetReturnCount(2)
	require.NoError(t, c.Schema().AddBand(format.TypeUint16, "Band Value", ""))
	require.False(t, a.IsCompatible(c))
}

func TestHeaderSetSchemaRequiresCoordinates(t *testing.T) {
	h := NewHeader(format.PointFormat0)

	bad := schema.New(format.PointFormatNone)
	bad.AddField(schema.NewField(format.FieldIntensity, "Intensity", format.TypeUint16, 16))
	require.Error(t, h.SetSchema(bad))

	good := schema.New(format.PointFormat1)
	require.NoError(t, h.SetSchema(good))
	require.Equal(t, 1.0, h.ScaleX())
}

func TestDefaultHeaderSingleton(t *testing.T) {
	require.Same(t, DefaultHeader(), DefaultHeader())
	require.Equal(t, uint32(12), DefaultHeader().DataRecordLength())
}

func TestHeaderClone(t *testing.T) {
	h := NewHeader(format.PointFormat2)
	c := h.Clone()
	require.True(t, h.Equal(c))

	c.SetPointRecordsCount(9)
	require.Equal(t, uint64(0), h.PointRecordsCount())
}
