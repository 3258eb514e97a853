package file

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/variant"
)

func TestSround(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.4, 0},
		{0.5, 1},
		{1.5, 2},
		{2.5, 3},
		{-0.4, 0},
		{-0.5, -1},
		{-1.5, -2},
		{-2.5, -3},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sround(tt.in), "sround(%v)", tt.in)
	}
}

func TestPointCoordinates(t *testing.T) {
	h := NewHeader(format.PointFormat0)
	h.SetScale(0.01, 0.01, 0.01)
	h.SetOffset(1000, 2000, 0)

	p := NewPoint(h)
	p.SetCoordinates(1010.55, 2020.25, 30.01)

	require.InDelta(t, 1010.55, p.X(), 1e-9)
	require.InDelta(t, 2020.25, p.Y(), 1e-9)
	require.InDelta(t, 30.01, p.Z(), 1e-9)
	require.Equal(t, int32(1055), p.RawX())
	require.Equal(t, int32(2025), p.RawY())
	require.Equal(t, int32(3001), p.RawZ())
}

func TestScaledRawRoundTrip(t *testing.T) {
	// For any raw value r, descale(scale(r)) == r.
	h := NewHeader(format.PointFormat0)
	h.SetScale(0.001, 0.001, 0.001)
	h.SetOffset(-17.5, 0.25, 3)

	p := NewPoint(h)
	for _, r := range []int32{-100000, -1, 0, 1, 7, 99999, 1 << 30} {
		p.SetRawX(r)
		p.SetX(p.X())
		require.Equal(t, r, p.RawX(), "raw %d", r)
	}
}

func TestPointEqualEpsilon(t *testing.T) {
	h := NewHeader(format.PointFormat0)
	a := NewPoint(h)
	b := NewPoint(h)
	a.SetCoordinates(1, 2, 3)
	b.SetCoordinates(1, 2, 3)
	require.True(t, a.Equal(b))

	b.SetCoordinates(1, 2, 4)
	require.False(t, a.Equal(b))
}

func TestPointValidate(t *testing.T) {
	h := NewHeader(format.PointFormat0)
	p := NewPoint(h)
	require.NoError(t, p.Validate())

	p.SetData(make([]byte, 5))
	require.Error(t, p.Validate())
}

func TestValuesByID(t *testing.T) {
	h := NewHeader(format.PointFormat1)
	p := NewPoint(h)

	require.NoError(t, p.SetValuesByID(format.FieldIntensity, []variant.Variant{variant.FromUint16(700)}))
	values, err := p.ValuesByID(format.FieldIntensity)
	require.NoError(t, err)
	v, ok := values[0].Uint16()
	require.True(t, ok)
	require.Equal(t, uint16(700), v)

	_, err = p.ValuesByID(format.FieldNIR)
	require.Error(t, err)
}

func TestBitfieldValues(t *testing.T) {
	h := NewHeader(format.PointFormat1)
	p := NewPoint(h)

	require.NoError(t, p.SetValuesByID(format.FieldReturnNumber, []variant.Variant{variant.FromUint8(3)}))
	require.NoError(t, p.SetValuesByID(format.FieldNumberOfReturns, []variant.Variant{variant.FromUint8(10)}))
	require.NoError(t, p.SetValuesByID(format.FieldClassification, []variant.Variant{variant.FromUint8(2)}))

	values, err := p.ValuesByID(format.FieldReturnNumber)
	require.NoError(t, err)
	r, ok := values[0].Uint8()
	require.True(t, ok)
	require.Equal(t, uint8(3), r)

	values, err = p.ValuesByID(format.FieldNumberOfReturns)
	require.NoError(t, err)
	n, ok := values[0].Uint8()
	require.True(t, ok)
	require.Equal(t, uint8(10), n)

	values, err = p.ValuesByID(format.FieldClassification)
	require.NoError(t, err)
	c, ok := values[0].Uint8()
	require.True(t, ok)
	require.Equal(t, uint8(2), c)
}

func TestSubByteBitfieldsShareByteIndependently(t *testing.T) {
	// A 3-bit field and a 5-bit field sharing one byte must round-trip
	// independently across their full value ranges.
	s := schema.New(format.PointFormat0)
	f3 := schema.NewField(format.FieldUnknown, "Flags3", format.TypeBit, 3)
	f3.Active = true
	f3.Numeric = true
	f3.Integer = true
	s.AddField(f3)
	f5 := schema.NewField(format.FieldUnknown, "Flags5", format.TypeBit, 5)
	f5.Active = true
	f5.Numeric = true
	f5.Integer = true
	s.AddField(f5)

	h, err := NewHeaderFromSchema(s)
	require.NoError(t, err)
	require.Equal(t, uint32(13), h.DataRecordLength())

	p := NewPoint(h)
	const idx3, idx5 = 3, 4
	for a := uint64(0); a < 8; a++ {
		for b := uint64(0); b < 32; b++ {
			require.NoError(t, p.SetValue(idx3, variant.FromBitset(variant.BitsetFromUint64(a, 3))))
			require.NoError(t, p.SetValue(idx5, variant.FromBitset(variant.BitsetFromUint64(b, 5))))

			va, err := p.Value(idx3)
			require.NoError(t, err)
			bitsA, ok := va.Bits()
			require.True(t, ok)
			require.Equal(t, a, bitsA.Uint64())

			vb, err := p.Value(idx5)
			require.NoError(t, err)
			bitsB, ok := vb.Bits()
			require.True(t, ok)
			require.Equal(t, b, bitsB.Uint64())
		}
	}
}

func TestASPRSBitfieldMatrixRoundTrip(t *testing.T) {
	// Every (width, bitOffset) pair in the ASPRS basic skeleton must
	// round-trip without disturbing neighbours.
	h := NewHeader(format.PointFormat1)
	p := NewPoint(h)

	ids := []struct {
		id   format.FieldID
		bits int
	}{
		{format.FieldReturnNumber, 4},
		{format.FieldNumberOfReturns, 4},
		{format.FieldClassificationFlags, 6},
		{format.FieldScanDirectionFlag, 1},
		{format.FieldEdgeOfFlightLine, 1},
	}

	// Fill all bitfields with their maximum values, then vary each one and
	// check the others keep their values.
	for _, target := range ids {
		for _, other := range ids {
			maxVal := uint64(1)<<uint(other.bits) - 1
			require.NoError(t, p.SetValuesByID(other.id,
				[]variant.Variant{variant.FromBitset(variant.BitsetFromUint64(maxVal, other.bits))}))
		}
		for v := uint64(0); v < uint64(1)<<uint(target.bits); v++ {
			require.NoError(t, p.SetValuesByID(target.id,
				[]variant.Variant{variant.FromBitset(variant.BitsetFromUint64(v, target.bits))}))

			values, err := p.ValuesByID(target.id)
			require.NoError(t, err)
			bits, ok := values[0].Bits()
			require.True(t, ok)
			require.Equal(t, v, bits.Uint64(), "field %s value %d", target.id, v)

			for _, other := range ids {
				if other.id == target.id {
					continue
				}
				values, err := p.ValuesByID(other.id)
				require.NoError(t, err)
				bits, ok := values[0].Bits()
				require.True(t, ok)
				want := uint64(1)<<uint(other.bits) - 1
				require.Equal(t, want, bits.Uint64(), "neighbour %s disturbed", other.id)
			}
		}
	}
}

func TestBandValuesRoundTrip(t *testing.T) {
	h := NewHeader(format.PointFormat2)
	require.NoError(t, h.Schema().AddBands(schema.BandDesc{Type: format.TypeInt16, Name: "Band Value"}, 3))

	p := NewPoint(h)
	in := []byte{0xE8, 0x03, 0x88, 0x13, 0x7B, 0x00} // 1000, 5000, 123 little-endian
	require.NoError(t, p.SetBandValues(0, 3, in))

	out := make([]byte, 6)
	require.NoError(t, p.BandValues(0, 3, out))
	require.Equal(t, in, out)

	// Partial range.
	out2 := make([]byte, 2)
	require.NoError(t, p.BandValues(1, 1, out2))
	require.Equal(t, []byte{0x88, 0x13}, out2)

	// Buffer size must match the bands' native widths exactly.
	require.Error(t, p.BandValues(0, 3, make([]byte, 5)))
	require.Error(t, p.SetBandValues(0, 3, make([]byte, 8)))
	require.Error(t, p.BandValues(0, 4, make([]byte, 8)))
}

func TestBandValuesScaled(t *testing.T) {
	h := NewHeader(format.PointFormat0)
	require.NoError(t, h.Schema().AddBand(format.TypeUint16, "Band Value", ""))
	band, ok := h.Schema().FieldByID(format.FieldBandValue)
	require.True(t, ok)
	band.Scaled = true
	band.Scale = 0.5

	p := NewPoint(h)
	in := []byte{100, 0} // logical 100 -> raw 200
	require.NoError(t, p.SetBandValues(0, 1, in))

	values, err := p.ValuesByID(format.FieldBandValue)
	require.NoError(t, err)
	logical, ok := values[0].Float64()
	require.True(t, ok)
	require.Equal(t, 100.0, logical)

	out := make([]byte, 2)
	require.NoError(t, p.BandValues(0, 1, out))
	require.Equal(t, in, out)
}

func TestSetHeaderReprojects(t *testing.T) {
	a := NewHeader(format.PointFormat0)
	a.SetScale(0.01, 0.01, 0.01)

	p := NewPoint(a)
	p.SetCoordinates(12.34, 56.78, 90.12)

	b := NewHeader(format.PointFormat0)
	b.SetScale(0.001, 0.001, 0.001)

	p.SetHeader(b)
	require.InDelta(t, 12.34, p.X(), 1e-6)
	require.InDelta(t, 56.78, p.Y(), 1e-6)
	require.InDelta(t, 90.12, p.Z(), 1e-6)
	require.Equal(t, int32(12340), p.RawX())
}

func TestSetHeaderResizesLayout(t *testing.T) {
	a := NewHeader(format.PointFormat0)
	p := NewPoint(a)
	p.SetCoordinates(1, 2, 3)

	b := NewHeader(format.PointFormat1)
	p.SetHeader(b)
	require.Equal(t, int(b.DataRecordLength()), len(p.Data()))
	require.InDelta(t, 1.0, p.X(), 1e-9)
	require.InDelta(t, 3.0, p.Z(), 1e-9)
}

func TestWaveformRoundTripThroughPoint(t *testing.T) {
	h := NewHeader(format.PointFormat5)

	record := NewWaveformPacketRecord()
	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = 23
	}
	record.AddRawWaveformPacket(sampleDefinition(3, 0), payload)

	p := NewPoint(h)
	p.SetWaveformRecord(record)

	require.True(t, p.HasWaveformData())
	require.Equal(t, uint16(1), p.WaveformBandCount())

	def, ok := p.WaveformPacketDefinition(3)
	require.True(t, ok)
	require.Equal(t, uint32(128), def.Size)
	require.Equal(t, uint32(2+28), def.ByteOffset)

	data, err := p.RawWaveformPacketData(3)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	idx, ok := p.WaveformDescriptorIndexByBand(3)
	require.True(t, ok)
	require.Equal(t, uint16(0), idx)

	_, ok = p.WaveformPacketDefinition(9)
	require.False(t, ok)
}
