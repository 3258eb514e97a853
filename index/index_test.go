package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/file"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
)

type gridPoint struct {
	x, y, z float64
}

// writeGridFile writes points on an integer grid: (i%side, i/side, z(i)).
func writeGridFile(t *testing.T, path string, side int, z func(i int) float64) []gridPoint {
	t.Helper()

	count := side * side
	hdr := file.NewHeader(format.PointFormat0)
	hdr.SetPointRecordsCount(uint64(count))

	bounds := geom.EmptyBounds3()
	pts := make([]gridPoint, 0, count)

	w := file.NewWriter(path, hdr)
	require.NoError(t, w.Open())
	p := file.NewPoint(w.Header())
	for i := 0; i < count; i++ {
		x := float64(i % side)
		y := float64(i / side)
		zz := z(i)
		p.SetCoordinates(x, y, zz)
		require.NoError(t, w.WritePoint(p))
		bounds.Grow(x, y, zz)
		pts = append(pts, gridPoint{x: x, y: y, z: zz})
	}
	require.NoError(t, w.Close())

	u := file.NewUpdater(path)
	require.NoError(t, u.Open())
	updated := u.Header().Clone()
	updated.SetExtent(bounds)
	require.NoError(t, u.UpdateHeader(updated))
	require.NoError(t, u.Close())

	return pts
}

func bruteForce(pts []gridPoint, box geom.Bounds3) map[uint32]bool {
	want := make(map[uint32]bool)
	for i, p := range pts {
		if box.Contains(p.x, p.y, p.z) {
			want[uint32(i)] = true
		}
	}

	return want
}

func collectAll(it *Iterator) map[uint32]bool {
	got := make(map[uint32]bool)
	for chunk := it.Next(); len(chunk) > 0; chunk = it.Next() {
		for _, id := range chunk {
			got[id] = true
		}
	}

	return got
}

func TestIndexCompleteness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.hsp")
	pts := writeGridFile(t, path, 100, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	idx, err := New(r,
		WithStandalone(filepath.Join(dir, "grid.hsx")),
		WithTempFile(filepath.Join(dir, "grid.tmp")))
	require.NoError(t, err)
	require.True(t, idx.Ready())
	require.Equal(t, uint64(10000), idx.PointCount())

	// Query a box spanning several cells per axis, with its edges inside
	// cells, and compare against brute force.
	box := geom.NewBounds3(15.5, 22.5, 0, 42.25, 47.75, 0)
	want := bruteForce(pts, box)
	got := collectAll(idx.Filter(box, 1000))
	require.Equal(t, want, got)
	require.NotEmpty(t, got)

	// A different box, not aligned to cell edges.
	box2 := geom.NewBounds3(0, 0, 0, 9.1, 99, 0)
	require.Equal(t, bruteForce(pts, box2), collectAll(idx.Filter(box2, 257)))
}

func TestIndexChunkProtocol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.hsp")
	// A 100x100 grid; brute force pins down the conforming set of each
	// box below.
	pts := writeGridFile(t, path, 100, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	idx, err := New(r, WithStandalone(filepath.Join(dir, "chunks.hsx")))
	require.NoError(t, err)

	box := geom.NewBounds3(0, 0, 0, 3.25, 86.5, 0)
	want := bruteForce(pts, box)
	require.Len(t, want, 4*87) // 348 conforming points

	box = geom.NewBounds3(0, 0, 0, 3.25, 86.75, 0)
	require.Len(t, bruteForce(pts, box), 348)

	// Use a box with exactly 350 conforming points: x columns 0..4 (5 of
	// them), y rows 0..69 (70 of them).
	box = geom.NewBounds3(0, 0, 0, 4.5, 69.5, 0)
	want = bruteForce(pts, box)
	require.Len(t, want, 350)

	it := idx.Filter(box, 100)
	first := append([]uint32(nil), it.Next()...)
	require.Len(t, first, 100)
	require.Len(t, it.Next(), 100)
	require.Len(t, it.Next(), 100)
	require.Len(t, it.Next(), 50)
	require.Empty(t, it.Next())

	// Replay: At(250) returns IDs starting from the 251st conforming
	// point, which equal the last 100 IDs of the sequential walk.
	collected := make([]uint32, 0, 350)
	seq := idx.Filter(box, 100)
	for chunk := seq.Next(); len(chunk) > 0; chunk = seq.Next() {
		collected = append(collected, chunk...)
	}
	require.Len(t, collected, 350)

	replay := it.At(250)
	require.Len(t, replay, 100)
	require.Equal(t, collected[250:350], replay)

	// At(0) replays from the first conforming point.
	require.Equal(t, collected[:100], it.At(0))
}

func TestIndexValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "validate.hsp")
	writeGridFile(t, path, 20, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	idx, err := New(r, WithStandalone(filepath.Join(dir, "validate.hsx")))
	require.NoError(t, err)
	require.True(t, idx.Validate())

	// Any appended point makes the stored index stale.
	r.Header().SetPointRecordsCount(r.Header().PointRecordsCount() + 1)
	require.False(t, idx.Validate())
}

func TestIndexLoadsExistingSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.hsp")
	sidecar := filepath.Join(dir, "persist.hsx")
	pts := writeGridFile(t, path, 50, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	idx, err := New(r, WithStandalone(sidecar))
	require.NoError(t, err)
	cx, cy, _ := idx.CellCounts()
	require.NoError(t, r.Close())
	require.FileExists(t, sidecar)

	// A second index over the same file loads the sidecar instead of
	// rebuilding; read-only mode proves no build happens.
	r2 := file.NewReader(path)
	require.NoError(t, r2.Open())
	defer r2.Close()

	idx2, err := New(r2, WithStandalone(sidecar), WithReadOnly())
	require.NoError(t, err)
	require.True(t, idx2.Ready())
	cx2, cy2, _ := idx2.CellCounts()
	require.Equal(t, cx, cx2)
	require.Equal(t, cy, cy2)

	box := geom.NewBounds3(3.5, 3.5, 0, 20.5, 11.5, 0)
	require.Equal(t, bruteForce(pts, box), collectAll(idx2.Filter(box, 64)))
}

func TestIndexReadOnlyWithoutSidecarFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.hsp")
	writeGridFile(t, path, 20, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	_, err := New(r, WithStandalone(filepath.Join(dir, "ro.hsx")), WithReadOnly())
	require.Error(t, err)
}

func TestIndexCorruptSidecarRebuilds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.hsp")
	sidecar := filepath.Join(dir, "corrupt.hsx")
	writeGridFile(t, path, 30, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	idx, err := New(r, WithStandalone(sidecar))
	require.NoError(t, err)
	require.True(t, idx.Ready())
	require.NoError(t, r.Close())

	// Flip a payload byte; the checksum rejects the sidecar and a
	// writable index rebuilds it.
	data, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(sidecar, data, 0o644))

	r2 := file.NewReader(path)
	require.NoError(t, r2.Open())
	defer r2.Close()

	idx2, err := New(r2, WithStandalone(sidecar))
	require.NoError(t, err)
	require.True(t, idx2.Ready())
}

func TestIndexInlineMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inline.hsp")
	pts := writeGridFile(t, path, 40, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	idx, err := New(r, WithInline())
	require.NoError(t, err)
	require.True(t, idx.Ready())
	require.NoError(t, r.Close())

	// Reopen: the inline block is found through the header offset.
	r2 := file.NewReader(path)
	require.NoError(t, r2.Open())
	defer r2.Close()
	require.NotZero(t, r2.Header().IndexOffset())

	idx2, err := New(r2, WithInline(), WithReadOnly())
	require.NoError(t, err)

	box := geom.NewBounds3(10.5, 0, 0, 29.5, 39, 0)
	require.Equal(t, bruteForce(pts, box), collectAll(idx2.Filter(box, 128)))
}

func TestIndexZBinning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zbins.hsp")
	pts := writeGridFile(t, path, 60, func(i int) float64 { return float64(i % 50) })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	idx, err := New(r,
		WithStandalone(filepath.Join(dir, "zbins.hsx")),
		WithZBinHeight(5))
	require.NoError(t, err)
	_, _, cz := idx.CellCounts()
	require.Greater(t, cz, uint32(1))

	box := geom.NewBounds3(5.5, 5.5, 10.5, 40.5, 40.5, 30.5)
	require.Equal(t, bruteForce(pts, box), collectAll(idx.Filter(box, 500)))
}

func TestIndexQuadSubdivision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quad.hsp")

	// A dense cluster in one corner overfills its cell; a far point
	// stretches the extent so the cluster stays in one cell.
	const clusterSide = 50 // 2500 points, above MaxPointsPerCell
	count := clusterSide*clusterSide + 1
	hdr := file.NewHeader(format.PointFormat0)
	hdr.SetScale(0.001, 0.001, 0.001)
	hdr.SetPointRecordsCount(uint64(count))

	bounds := geom.EmptyBounds3()
	var pts []gridPoint

	w := file.NewWriter(path, hdr)
	require.NoError(t, w.Open())
	p := file.NewPoint(w.Header())
	for i := 0; i < clusterSide*clusterSide; i++ {
		x := float64(i%clusterSide) * 0.02
		y := float64(i/clusterSide) * 0.02
		p.SetCoordinates(x, y, 0)
		require.NoError(t, w.WritePoint(p))
		bounds.Grow(x, y, 0)
		pts = append(pts, gridPoint{x: x, y: y})
	}
	p.SetCoordinates(100, 100, 0)
	require.NoError(t, w.WritePoint(p))
	bounds.Grow(100, 100, 0)
	pts = append(pts, gridPoint{x: 100, y: 100})
	require.NoError(t, w.Close())

	u := file.NewUpdater(path)
	require.NoError(t, u.Open())
	updated := u.Header().Clone()
	updated.SetExtent(bounds)
	require.NoError(t, u.UpdateHeader(updated))
	require.NoError(t, u.Close())

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	idx, err := New(r, WithStandalone(filepath.Join(dir, "quad.hsx")))
	require.NoError(t, err)

	box := geom.NewBounds3(0.25, 0.25, 0, 0.66, 0.66, 0)
	require.Equal(t, bruteForce(pts, box), collectAll(idx.Filter(box, 100)))
}

func TestIndexTempFileSpill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spill.hsp")
	pts := writeGridFile(t, path, 40, func(i int) float64 { return 0 })

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	// A tiny memory budget forces repeated spills to the temp file.
	idx := &Index{
		reader:       r,
		maxMemory:    16 * runEntrySize,
		tempFileName: filepath.Join(dir, "spill.tmp"),
		outputPath:   filepath.Join(dir, "spill.hsx"),
		standalone:   true,
		compression:  format.CompressionS2,
		logger:       slog.New(slog.DiscardHandler),
	}
	require.NoError(t, idx.Build())
	idx.built = true

	// The temp file is removed after the build.
	require.NoFileExists(t, filepath.Join(dir, "spill.tmp"))

	box := geom.NewBounds3(2.5, 2.5, 0, 31.5, 17.5, 0)
	require.Equal(t, bruteForce(pts, box), collectAll(idx.Filter(box, 200)))
}

func TestIndexDegenerateBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flatline.hsp")

	hdr := file.NewHeader(format.PointFormat0)
	hdr.SetPointRecordsCount(2)
	w := file.NewWriter(path, hdr)
	require.NoError(t, w.Open())
	p := file.NewPoint(w.Header())
	p.SetCoordinates(1, 1, 1)
	require.NoError(t, w.WritePoint(p))
	require.NoError(t, w.WritePoint(p))
	require.NoError(t, w.Close())

	r := file.NewReader(path)
	require.NoError(t, r.Open())
	defer r.Close()

	// All points identical: zero X/Y extent, no index possible.
	_, err := New(r, WithStandalone(filepath.Join(dir, "flatline.hsx")))
	require.Error(t, err)
}
