package index

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/geodatakit/hspc/compress"
	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
)

// Serialized index layout: a fixed header followed by the cell table
// payload. The payload may be compressed; its stored length and xxhash64
// guard the cell table against truncation and corruption. The same block
// is written either to a standalone .hsx sidecar or inline at the tail of
// the data file, addressed from the file header's index offset slot.

const (
	indexMagic      = "HSPX"
	indexHeaderSize = 200

	cellKindFlat = 0
	cellKindQuad = 1
	cellKindZ    = 2
)

// headerBytes serializes the fixed index header for the given payload.
func (idx *Index) headerBytes(payload []byte) []byte {
	engine := endian.GetLittleEndianEngine()
	b := make([]byte, 0, indexHeaderSize)

	b = append(b, indexMagic...)
	b = append(b, VersionMajor, VersionMinor, byte(idx.compression), 0)
	b = engine.AppendUint64(b, idx.pointCount)
	for _, v := range []float64{
		idx.bounds.MinX, idx.bounds.MaxX,
		idx.bounds.MinY, idx.bounds.MaxY,
		idx.bounds.MinZ, idx.bounds.MaxZ,
	} {
		b = engine.AppendUint64(b, math.Float64bits(v))
	}
	b = engine.AppendUint32(b, idx.cellsX)
	b = engine.AppendUint32(b, idx.cellsY)
	b = engine.AppendUint32(b, idx.cellsZ)
	b = engine.AppendUint64(b, math.Float64bits(idx.cellSizeZ))
	b = engine.AppendUint32(b, idx.maxMemory)
	b = appendFixedString(b, idx.author, 32)
	b = appendFixedString(b, idx.comment, 32)
	b = appendFixedString(b, idx.date, 32)
	b = engine.AppendUint64(b, uint64(len(payload)))
	b = engine.AppendUint64(b, xxhash.Sum64(payload))

	return b
}

func appendFixedString(b []byte, s string, width int) []byte {
	if len(s) >= width {
		s = s[:width-1]
	}
	b = append(b, s...)
	for i := len(s); i < width; i++ {
		b = append(b, 0)
	}

	return b
}

func fixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}

// encodeCells serializes the consolidated cell grid.
func (idx *Index) encodeCells() []byte {
	engine := endian.GetLittleEndianEngine()
	var b []byte

	appendRuns := func(runs []pointRun) {
		b = engine.AppendUint32(b, uint32(len(runs)))
		for _, run := range runs {
			b = engine.AppendUint32(b, run.first)
			b = engine.AppendUint32(b, run.count)
		}
	}

	for x := uint32(0); x < idx.cellsX; x++ {
		for y := uint32(0); y < idx.cellsY; y++ {
			cell := &idx.cells[x][y]
			b = engine.AppendUint64(b, math.Float64bits(cell.zMin))
			b = engine.AppendUint64(b, math.Float64bits(cell.zMax))

			switch {
			case len(cell.zBins) > 0:
				b = append(b, cellKindZ)
				b = engine.AppendUint32(b, uint32(len(cell.zBins)))
				for _, bin := range cell.zBins {
					b = engine.AppendUint32(b, bin.z)
					appendRuns(bin.runs)
				}
			case cell.subdivided():
				b = append(b, cellKindQuad)
				for sub := 0; sub < 4; sub++ {
					appendRuns(cell.subCells[sub])
				}
			default:
				b = append(b, cellKindFlat)
				appendRuns(cell.runs)
			}
		}
	}

	return b
}

// decodeCells rebuilds the cell grid from a serialized payload.
func (idx *Index) decodeCells(b []byte) error {
	engine := endian.GetLittleEndianEngine()
	pos := 0

	fail := func() error {
		return fmt.Errorf("index cell table: %w", errs.ErrInvalidFormat)
	}

	readRuns := func() ([]pointRun, uint32, bool) {
		if pos+4 > len(b) {
			return nil, 0, false
		}
		count := engine.Uint32(b[pos:])
		pos += 4
		if pos+int(count)*8 > len(b) {
			return nil, 0, false
		}
		var points uint32
		runs := make([]pointRun, 0, count)
		for i := uint32(0); i < count; i++ {
			run := pointRun{
				first: engine.Uint32(b[pos:]),
				count: engine.Uint32(b[pos+4:]),
			}
			pos += 8
			points += run.count
			runs = append(runs, run)
		}

		return runs, points, true
	}

	idx.cells = make([][]indexCell, idx.cellsX)
	for x := range idx.cells {
		idx.cells[x] = make([]indexCell, idx.cellsY)
	}

	for x := uint32(0); x < idx.cellsX; x++ {
		for y := uint32(0); y < idx.cellsY; y++ {
			cell := &idx.cells[x][y]
			if pos+17 > len(b) {
				return fail()
			}
			cell.zMin = math.Float64frombits(engine.Uint64(b[pos:]))
			cell.zMax = math.Float64frombits(engine.Uint64(b[pos+8:]))
			kind := b[pos+16]
			pos += 17

			switch kind {
			case cellKindFlat:
				runs, points, ok := readRuns()
				if !ok {
					return fail()
				}
				cell.runs = runs
				cell.numRuns = uint32(len(runs))
				cell.numPoints = points
			case cellKindQuad:
				for sub := 0; sub < 4; sub++ {
					runs, points, ok := readRuns()
					if !ok {
						return fail()
					}
					cell.subCells[sub] = runs
					cell.numPoints += points
				}
			case cellKindZ:
				if pos+4 > len(b) {
					return fail()
				}
				binCount := engine.Uint32(b[pos:])
				pos += 4
				for i := uint32(0); i < binCount; i++ {
					if pos+4 > len(b) {
						return fail()
					}
					z := engine.Uint32(b[pos:])
					pos += 4
					runs, points, ok := readRuns()
					if !ok {
						return fail()
					}
					cell.zBins = append(cell.zBins, zBin{z: z, runs: runs})
					cell.numPoints += points
				}
			default:
				return fail()
			}
		}
	}

	return nil
}

// indexBlock assembles the complete serialized index.
func (idx *Index) indexBlock() ([]byte, error) {
	codec, err := compress.GetCodec(idx.compression)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Compress(idx.encodeCells())
	if err != nil {
		return nil, err
	}

	return append(idx.headerBytes(payload), payload...), nil
}

// saveStandalone writes the index block to the sidecar path.
func (idx *Index) saveStandalone() error {
	block, err := idx.indexBlock()
	if err != nil {
		return err
	}

	return os.WriteFile(idx.outputPath, block, 0o644)
}

// saveInline appends the index block to the data file and patches the
// file header's index offset slot.
func (idx *Index) saveInline() error {
	block, err := idx.indexBlock()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(idx.reader.Filename(), os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := f.Write(block); err != nil {
		return err
	}

	// The inline index offset lives at byte offset 72 of the fixed file
	// header, inside its reserved area.
	var buf [8]byte
	endian.GetLittleEndianEngine().PutUint64(buf[:], uint64(end))
	if _, err := f.WriteAt(buf[:], 72); err != nil {
		return err
	}
	idx.reader.Header().SetIndexOffset(uint64(end))

	return nil
}

// load reads a previously saved index: the sidecar file in standalone
// mode, or the inline block addressed from the file header.
func (idx *Index) load() error {
	var blockReader io.ReaderAt
	var f *os.File
	var err error

	if idx.standalone {
		f, err = os.Open(idx.outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		blockReader = f
	} else {
		offset := idx.reader.Header().IndexOffset()
		if offset == 0 {
			return fmt.Errorf("no inline index: %w", errs.ErrStaleIndex)
		}
		f, err = os.Open(idx.reader.Filename())
		if err != nil {
			return err
		}
		defer f.Close()
		blockReader = io.NewSectionReader(f, int64(offset), 1<<62)
	}

	head := make([]byte, indexHeaderSize)
	if _, err := blockReader.ReadAt(head, 0); err != nil {
		return err
	}

	return idx.parseBlock(blockReader, head)
}

// parseBlock decodes the index header and cell table.
func (idx *Index) parseBlock(r io.ReaderAt, head []byte) error {
	engine := endian.GetLittleEndianEngine()
	if string(head[0:4]) != indexMagic {
		return fmt.Errorf("index block: %w", errs.ErrInvalidSignature)
	}
	if head[4] != VersionMajor {
		return fmt.Errorf("index block: %w", errs.ErrInvalidVersion)
	}
	idx.compression = format.CompressionType(head[6])

	idx.pointCount = engine.Uint64(head[8:16])
	coords := make([]float64, 6)
	for i := range coords {
		coords[i] = math.Float64frombits(engine.Uint64(head[16+i*8:]))
	}
	idx.bounds = geom.Bounds3{
		MinX: coords[0], MaxX: coords[1],
		MinY: coords[2], MaxY: coords[3],
		MinZ: coords[4], MaxZ: coords[5],
	}
	idx.cellsX = engine.Uint32(head[64:68])
	idx.cellsY = engine.Uint32(head[68:72])
	idx.cellsZ = engine.Uint32(head[72:76])
	idx.cellSizeZ = math.Float64frombits(engine.Uint64(head[76:84]))
	idx.maxMemory = engine.Uint32(head[84:88])
	idx.author = fixedString(head[88:120])
	idx.comment = fixedString(head[120:152])
	idx.date = fixedString(head[152:184])
	payloadSize := engine.Uint64(head[184:192])
	wantHash := engine.Uint64(head[192:200])

	if idx.cellsX == 0 || idx.cellsY == 0 || idx.cellsZ == 0 {
		return fmt.Errorf("index block: %w", errs.ErrInvalidFormat)
	}

	payload := make([]byte, payloadSize)
	if _, err := r.ReadAt(payload, indexHeaderSize); err != nil {
		return err
	}
	if xxhash.Sum64(payload) != wantHash {
		return errs.ErrIndexChecksum
	}

	codec, err := compress.GetCodec(idx.compression)
	if err != nil {
		return err
	}
	cells, err := codec.Decompress(payload)
	if err != nil {
		return err
	}

	idx.rangeX = idx.bounds.RangeX()
	idx.rangeY = idx.bounds.RangeY()
	idx.rangeZ = idx.bounds.RangeZ()
	idx.totalCells = idx.cellsX * idx.cellsY
	idx.cellSizeX = idx.rangeX / float64(idx.cellsX)
	idx.cellSizeY = idx.rangeY / float64(idx.cellsY)

	return idx.decodeCells(cells)
}
