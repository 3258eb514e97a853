package hspc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/file"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
	"github.com/geodatakit/hspc/variant"
)

func TestTopLevelRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.hsp")

	hdr := NewHeader(format.PointFormat1)
	hdr.SetPointRecordsCount(100)
	hdr.SetMin(0, 0, 0)
	hdr.SetMax(9, 9, 0)

	w, err := CreateWriter(path, hdr)
	require.NoError(t, err)

	p := file.NewPoint(w.Header())
	for i := 0; i < 100; i++ {
		p.SetCoordinates(float64(i%10), float64(i/10), 0)
		require.NoError(t, p.SetValuesByID(format.FieldClassification,
			[]variant.Variant{variant.FromUint8(uint8(i % 3))}))
		require.NoError(t, w.WritePoint(p))
	}
	require.NoError(t, w.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for r.ReadNextPoint(false) {
		count++
	}
	require.NoError(t, r.Err())
	require.Equal(t, 100, count)

	idx, err := BuildIndex(r)
	require.NoError(t, err)
	require.True(t, idx.Ready())

	it := idx.Filter(geom.NewBounds3(2.5, 2.5, 0, 6.5, 6.5, 0), 10)
	total := 0
	for ids := it.Next(); len(ids) > 0; ids = it.Next() {
		total += len(ids)
	}
	require.Equal(t, 16, total)

	u, err := OpenUpdater(path)
	require.NoError(t, err)
	require.NoError(t, u.Seek(5))
	require.NoError(t, u.WriteFieldValuesByID(format.FieldClassification,
		[]variant.Variant{variant.FromUint8(7)}))
	require.NoError(t, u.Close())

	r2, err := OpenReader(path)
	require.NoError(t, err)
	defer r2.Close()
	got, err := r2.ReadPointAt(5, false)
	require.NoError(t, err)
	values, err := got.ValuesByID(format.FieldClassification)
	require.NoError(t, err)
	c, ok := values[0].Uint8()
	require.True(t, ok)
	require.Equal(t, uint8(7), c)
}
