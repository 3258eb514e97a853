package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/schema"
	"github.com/geodatakit/hspc/section"
	"github.com/geodatakit/hspc/variant"
)

// writeSampleFile builds the canonical test fixture: a point format 5 file
// with three int16 bands, one waveform descriptor and a single point at
// (10, 20, 30) carrying band values (1000, 5000, 123) and a 128-byte
// waveform of repeated 23s.
func writeSampleFile(t *testing.T, path string) *Header {
	t.Helper()

	hdr := NewHeader(format.PointFormat5)
	require.NoError(t, hdr.Schema().AddBands(schema.BandDesc{Type: format.TypeInt16, Name: "Band Value"}, 3))
	hdr.AddWaveformPacketDesc(section.NewWaveformPacketDesc(0, 8, format.CompressionNone, 128, 10, 1, 0))
	hdr.SetPointRecordsCount(1)

	w := NewWriter(path, hdr)
	require.NoError(t, w.Open())

	p := NewPoint(w.Header())
	p.SetCoordinates(10, 20, 30)
	require.NoError(t, p.SetValuesByID(format.FieldNumberOfReturns,
		[]variant.Variant{variant.FromUint8(3)}))
	require.NoError(t, p.SetValuesByID(format.FieldClassification,
		[]variant.Variant{variant.FromUint8(10)}))

	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = 23
	}
	record := NewWaveformPacketRecord()
	record.AddRawWaveformPacket(sampleDefinition(3, 0), payload)
	p.SetWaveformRecord(record)

	bands := []byte{0xE8, 0x03, 0x88, 0x13, 0x7B, 0x00} // 1000, 5000, 123
	require.NoError(t, p.SetBandValues(0, 3, bands))

	require.NoError(t, w.WritePoint(p))
	require.NoError(t, w.Close())

	return hdr
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.hsp")
	hdr := writeSampleFile(t, path)

	// Record length = base(format 5) + 3 bands * 2 bytes.
	base := NewHeader(format.PointFormat5).DataRecordLength()
	require.Equal(t, base+6, hdr.DataRecordLength())

	// File size = header + record + assembled waveform payload.
	hdr.UpdateHeader()
	wfLen := 2 + section.WaveformPacketDataDefinitionSize + 128
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(hdr.DataOffset())+int64(hdr.DataRecordLength())+int64(wfLen), info.Size())

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	require.Equal(t, uint64(1), r.Header().PointRecordsCount())
	require.True(t, r.Header().HasWaveformData())

	require.True(t, r.ReadNextPoint(true))
	p := r.Point()

	require.InDelta(t, 10.0, p.X(), 1e-9)
	require.InDelta(t, 20.0, p.Y(), 1e-9)
	require.InDelta(t, 30.0, p.Z(), 1e-9)

	out := make([]byte, 6)
	require.NoError(t, p.BandValues(0, 3, out))
	engine := endian.GetLittleEndianEngine()
	require.Equal(t, int16(1000), int16(engine.Uint16(out[0:2])))
	require.Equal(t, int16(5000), int16(engine.Uint16(out[2:4])))
	require.Equal(t, int16(123), int16(engine.Uint16(out[4:6])))

	wf, err := p.RawWaveformPacketData(3)
	require.NoError(t, err)
	require.Len(t, wf, 128)
	for _, b := range wf {
		require.Equal(t, byte(23), b)
	}

	require.False(t, r.ReadNextPoint(false))
	require.NoError(t, r.Err())
}

func TestUpdaterFieldUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.hsp")
	writeSampleFile(t, path)

	u := NewUpdater(path)
	require.NoError(t, u.Open())
	require.NoError(t, u.Seek(0))
	require.NoError(t, u.WriteFieldValuesByID(format.FieldClassification,
		[]variant.Variant{variant.FromUint8(2)}))
	require.NoError(t, u.Close())

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	require.True(t, r.ReadNextPoint(false))
	values, err := r.Point().ValuesByID(format.FieldClassification)
	require.NoError(t, err)
	c, ok := values[0].Uint8()
	require.True(t, ok)
	require.Equal(t, uint8(2), c)

	// Neighbouring fields are untouched.
	values, err = r.Point().ValuesByID(format.FieldNumberOfReturns)
	require.NoError(t, err)
	bits, ok := values[0].Bits()
	require.True(t, ok)
	require.Equal(t, uint64(3), bits.Uint64())
}

func TestUpdaterBitfieldInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.hsp")
	writeSampleFile(t, path)

	u := NewUpdater(path)
	require.NoError(t, u.Open())
	require.NoError(t, u.Seek(0))
	require.NoError(t, u.WriteFieldValuesByID(format.FieldReturnNumber,
		[]variant.Variant{variant.FromBitset(variant.BitsetFromUint64(5, 4))}))
	require.NoError(t, u.Close())

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	require.True(t, r.ReadNextPoint(false))
	values, err := r.Point().ValuesByID(format.FieldReturnNumber)
	require.NoError(t, err)
	bits, ok := values[0].Bits()
	require.True(t, ok)
	require.Equal(t, uint64(5), bits.Uint64())

	values, err = r.Point().ValuesByID(format.FieldNumberOfReturns)
	require.NoError(t, err)
	bits, ok = values[0].Bits()
	require.True(t, ok)
	require.Equal(t, uint64(3), bits.Uint64())
}

func TestReadPointAtAndSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.hsp")

	hdr := NewHeader(format.PointFormat0)
	hdr.SetPointRecordsCount(10)
	w := NewWriter(path, hdr)
	require.NoError(t, w.Open())
	p := NewPoint(w.Header())
	for i := 0; i < 10; i++ {
		p.SetCoordinates(float64(i), float64(i*2), 0)
		require.NoError(t, w.WritePoint(p))
	}
	require.NoError(t, w.Close())

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	got, err := r.ReadPointAt(7, false)
	require.NoError(t, err)
	require.InDelta(t, 7.0, got.X(), 1e-9)
	require.InDelta(t, 14.0, got.Y(), 1e-9)

	_, err = r.ReadPointAt(10, false)
	require.Error(t, err)

	require.NoError(t, r.Seek(3))
	require.True(t, r.ReadNextPoint(false))
	require.InDelta(t, 3.0, r.Point().X(), 1e-9)

	require.Error(t, r.Seek(10))
}

func TestReaderFilterChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.hsp")

	hdr := NewHeader(format.PointFormat1)
	hdr.SetPointRecordsCount(20)
	w := NewWriter(path, hdr)
	require.NoError(t, w.Open())
	p := NewPoint(w.Header())
	for i := 0; i < 20; i++ {
		p.SetCoordinates(float64(i), 0, 0)
		require.NoError(t, p.SetValuesByID(format.FieldClassification,
			[]variant.Variant{variant.FromUint8(uint8(i % 4))}))
		require.NoError(t, w.WritePoint(p))
	}
	require.NoError(t, w.Close())

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	r.SetFilters([]Filter{&ClassificationFilter{Classes: []uint8{2}}})

	var xs []float64
	for r.ReadNextPoint(false) {
		xs = append(xs, r.Point().X())
	}
	require.NoError(t, r.Err())
	require.Equal(t, []float64{2, 6, 10, 14, 18}, xs)
}

func TestReaderTransformChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transformed.hsp")

	hdr := NewHeader(format.PointFormat0)
	hdr.SetPointRecordsCount(3)
	w := NewWriter(path, hdr)
	require.NoError(t, w.Open())
	p := NewPoint(w.Header())
	for i := 0; i < 3; i++ {
		p.SetCoordinates(float64(i), float64(i), float64(i))
		require.NoError(t, w.WritePoint(p))
	}
	require.NoError(t, w.Close())

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	r.SetTransforms([]Transform{&TranslationTransform{DX: 100}})

	require.True(t, r.ReadNextPoint(false))
	require.InDelta(t, 100.0, r.Point().X(), 1e-9)
}

func TestUpdateHeaderCompatibility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.hsp")
	writeSampleFile(t, path)

	u := NewUpdater(path)
	require.NoError(t, u.Open())
	defer u.Close()

	// A compatible header (same schema and descriptor count) with new
	// extents can be rewritten in place.
	updated := u.Header().Clone()
	updated.SetMax(99, 99, 99)
	require.NoError(t, u.UpdateHeader(updated))

	// An incompatible header is rejected.
	other := NewHeader(format.PointFormat0)
	require.Error(t, u.UpdateHeader(other))
}

func TestSRSCompanionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srs.hsp")

	const wkt = `PROJCS["WGS 84 / UTM zone 33N"]`

	hdr := NewHeader(format.PointFormat0)
	w := NewWriter(path, hdr)
	w.SetSRS(wkt)
	require.NoError(t, w.Open())
	require.NoError(t, w.Close())

	require.FileExists(t, filepath.Join(dir, "srs.prj"))

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()
	require.Equal(t, wkt, r.SRS())
}

func TestExternalWaveformFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ext.hsp")

	hdr := NewHeader(format.PointFormat5)
	hdr.AddWaveformPacketDesc(section.NewWaveformPacketDesc(0, 8, format.CompressionNone, 64, 10, 1, 0))
	hdr.SetInternalWaveformData(false)
	hdr.SetPointRecordsCount(1)

	w := NewWriter(path, hdr)
	require.NoError(t, w.Open())

	p := NewPoint(w.Header())
	p.SetCoordinates(1, 2, 3)
	record := NewWaveformPacketRecord()
	record.AddRawWaveformPacket(sampleDefinition(0, 0), []byte{42, 42, 42, 42})
	p.SetWaveformRecord(record)
	require.NoError(t, w.WritePoint(p))
	require.NoError(t, w.Close())

	require.FileExists(t, filepath.Join(dir, "ext.hsw"))

	r := NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	require.True(t, r.ReadNextPoint(true))
	wf, err := r.Point().RawWaveformPacketData(0)
	require.NoError(t, err)
	require.Equal(t, []byte{42, 42, 42, 42}, wf)
}

func TestOpenMissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "absent.hsp"))
	require.Error(t, r.Open())
}

func TestOpenRejectsBadSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hsp")
	require.NoError(t, os.WriteFile(path, make([]byte, 256), 0o644))

	r := NewReader(path)
	require.Error(t, r.Open())
}
