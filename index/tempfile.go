package index

import (
	"fmt"
	"io"
	"os"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/internal/pool"
)

// The temp file starts with one 64-bit offset per cell pointing at the
// cell's first spilled block. Each block is a forward offset to the next
// block (0 for the tail), a record count, and that many (pointID, count)
// run entries. Spilling a cell appends a block and patches the previous
// block's forward pointer, forming a per-cell linked list.

const (
	tempOffsetSize = 8
	tempRunSize    = 8 // u32 pointID + u32 count
)

// openTempFile creates the temp file for external-memory bucketing.
func (idx *Index) openTempFile() error {
	f, err := os.OpenFile(idx.tempFileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	idx.tempFile = f
	idx.tempFileStarted = false
	idx.tempWritten = 0

	return nil
}

// closeTempFile closes and removes the temp file, leaving the source file
// untouched.
func (idx *Index) closeTempFile() {
	if idx.tempFile != nil {
		idx.tempFile.Close()
		os.Remove(idx.tempFileName)
		idx.tempFile = nil
	}
	idx.tempWritten = 0
}

// purgeToTempFile appends every cell's in-memory run list to its temp-file
// chain and clears the in-memory lists.
func (idx *Index) purgeToTempFile() error {
	if idx.tempFile == nil {
		if err := idx.openTempFile(); err != nil {
			return idx.fileError("purgeToTempFile")
		}
	}
	engine := endian.GetLittleEndianEngine()

	if !idx.tempFileStarted {
		// Seed the offset table with one empty slot per cell.
		table := make([]byte, int(idx.totalCells)*tempOffsetSize)
		if _, err := idx.tempFile.WriteAt(table, 0); err != nil {
			return idx.fileError("purgeToTempFile")
		}
		idx.tempWritten = int64(idx.totalCells) * tempOffsetSize
		idx.tempFileStarted = true
	}

	for x := uint32(0); x < idx.cellsX; x++ {
		for y := uint32(0); y < idx.cellsY; y++ {
			cell := &idx.cells[x][y]
			if cell.numRuns == 0 {
				continue
			}

			// Patch the previous block's forward pointer, or the head
			// table slot for the cell's first block.
			patchAt := cell.fileOffset
			if patchAt == 0 {
				patchAt = int64(x*idx.cellsY+y) * tempOffsetSize
			}
			var offsetBuf [8]byte
			engine.PutUint64(offsetBuf[:], uint64(idx.tempWritten))
			if _, err := idx.tempFile.WriteAt(offsetBuf[:], patchAt); err != nil {
				return idx.fileError("purgeToTempFile")
			}
			cell.fileOffset = idx.tempWritten

			buf := pool.GetIndexBuffer()
			buf.B = engine.AppendUint64(buf.B, 0) // next-block pointer
			buf.B = engine.AppendUint32(buf.B, cell.numRuns)
			for _, run := range cell.runs {
				buf.B = engine.AppendUint32(buf.B, run.first)
				buf.B = engine.AppendUint32(buf.B, run.count)
			}
			_, err := idx.tempFile.WriteAt(buf.Bytes(), idx.tempWritten)
			written := int64(buf.Len())
			pool.PutIndexBuffer(buf)
			if err != nil {
				return idx.fileError("purgeToTempFile")
			}
			idx.tempWritten += written

			cell.removeMainRuns()
		}
	}

	return nil
}

// loadCellFromTempFile reloads one cell's run chain from the temp file and
// verifies that the point total survived the round trip.
func (idx *Index) loadCellFromTempFile(cell *indexCell, x, y uint32) error {
	former := cell.numPoints
	cell.numPoints = 0
	cell.runs = nil
	cell.numRuns = 0

	engine := endian.GetLittleEndianEngine()
	var head [8]byte
	if _, err := idx.tempFile.ReadAt(head[:], int64(x*idx.cellsY+y)*tempOffsetSize); err != nil {
		return idx.fileError("loadCellFromTempFile")
	}
	offset := int64(engine.Uint64(head[:]))

	for offset > 0 {
		var blockHead [12]byte
		if _, err := idx.tempFile.ReadAt(blockHead[:], offset); err != nil {
			return idx.fileError("loadCellFromTempFile")
		}
		next := int64(engine.Uint64(blockHead[0:8]))
		records := engine.Uint32(blockHead[8:12])

		runs := make([]byte, int(records)*tempRunSize)
		if _, err := io.ReadFull(io.NewSectionReader(idx.tempFile, offset+12, int64(len(runs))), runs); err != nil {
			return idx.fileError("loadCellFromTempFile")
		}
		for i := uint32(0); i < records; i++ {
			pointID := engine.Uint32(runs[i*8 : i*8+4])
			count := engine.Uint32(runs[i*8+4 : i*8+8])
			cell.addRunSpan(pointID, count)
		}

		offset = next
	}

	if cell.numPoints != former {
		idx.closeTempFile()
		if idx.debugLevel > 0 {
			idx.logger.Error("point checksum error", "in", "loadCellFromTempFile")
		}

		return fmt.Errorf("index loadCellFromTempFile: %w", errs.ErrPointCountMismatch)
	}

	return nil
}
