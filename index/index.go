package index

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/file"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
	"github.com/geodatakit/hspc/internal/options"
)

// Index is the grid spatial index over one container file's points.
//
// The index is single-threaded: it drives the reader it was given and owns
// any temp file it creates exclusively.
type Index struct {
	reader *file.Reader

	// configuration
	cellSizeZ    float64
	maxMemory    uint32
	tempFileName string
	outputPath   string
	standalone   bool
	forceRebuild bool
	readOnly     bool
	debugLevel   int
	logger       *slog.Logger
	author       string
	comment      string
	date         string
	compression  format.CompressionType

	// grid geometry
	bounds                 geom.Bounds3
	rangeX, rangeY, rangeZ float64
	cellSizeX, cellSizeY   float64
	cellsX, cellsY, cellsZ uint32
	totalCells             uint32
	pointCount             uint64

	cells [][]indexCell
	built bool

	tempFile        *os.File
	tempFileStarted bool
	tempWritten     int64
}

// New configures an index over the reader's file and prepares it: an
// existing index is loaded and validated, and a missing, stale or
// force-discarded index is rebuilt unless the index is read-only.
func New(reader *file.Reader, opts ...Option) (*Index, error) {
	idx := &Index{
		reader:      reader,
		maxMemory:   DefaultMaxMemory,
		logger:      slog.New(slog.DiscardHandler),
		standalone:  true,
		compression: format.CompressionS2,
	}
	if err := applyOptions(idx, opts); err != nil {
		return nil, err
	}
	if idx.standalone && idx.outputPath == "" {
		idx.outputPath = reader.Filename() + ".hsx"
	}

	if err := idx.prepare(); err != nil {
		return nil, err
	}

	return idx, nil
}

// Ready reports whether the index is built and queryable.
func (idx *Index) Ready() bool { return idx.built }

// Bounds returns the extents the index was built over.
func (idx *Index) Bounds() geom.Bounds3 { return idx.bounds }

// PointCount returns the point total captured at build time.
func (idx *Index) PointCount() uint64 { return idx.pointCount }

// CellCounts returns the grid resolution (x, y, z).
func (idx *Index) CellCounts() (uint32, uint32, uint32) {
	return idx.cellsX, idx.cellsY, idx.cellsZ
}

// prepare loads an existing index when possible, otherwise builds one.
func (idx *Index) prepare() error {
	found := false
	if !idx.forceRebuild {
		if err := idx.load(); err == nil {
			found = true
		} else if idx.debugLevel > 1 {
			idx.logger.Info("no existing index loaded", "reason", err)
		}
	} else if idx.debugLevel > 1 {
		idx.logger.Info("old index discarded")
	}

	if found {
		if idx.Validate() {
			idx.built = true

			return nil
		}
		if idx.debugLevel > 1 {
			idx.logger.Info("existing index out of date")
		}
	}

	if idx.readOnly {
		if idx.debugLevel > 1 {
			idx.logger.Info("index not found nor created per read-only instructions")
		}

		return errs.ErrStaleIndex
	}

	if err := idx.Build(); err != nil {
		return err
	}
	idx.built = true

	return nil
}

// Validate compares the index's captured point count and extents against
// the current file header. Moved points cannot be detected, but a changed
// count or extent marks the index stale.
func (idx *Index) Validate() bool {
	h := idx.reader.Header()
	headerBounds := h.Extent()
	if !idx.bounds.Equal(headerBounds) {
		return false
	}

	return idx.pointCount == h.PointRecordsCount()
}

// Build runs the two-pass build: stream-and-bucket into the cell grid
// (spilling to the temp file when the memory budget fills), then
// consolidate each cell, subdivide overfilled ones and serialize the
// result.
func (idx *Index) Build() error {
	h := idx.reader.Header()
	idx.pointCount = h.PointRecordsCount()
	idx.bounds = h.Extent()
	if !idx.bounds.Valid() {
		return idx.inputBoundsError("Build")
	}
	idx.rangeX = idx.bounds.RangeX()
	idx.rangeY = idx.bounds.RangeY()
	idx.rangeZ = idx.bounds.RangeZ()

	if idx.cellSizeZ > 0 && !compareDistance(idx.cellSizeZ, 0) {
		idx.cellsZ = uint32(math.Ceil(idx.rangeZ / idx.cellSizeZ))
		if idx.cellsZ < 1 {
			idx.cellsZ = 1
		}
	} else {
		idx.cellsZ = 1
	}

	// A zero or negative X/Y extent cannot be partitioned.
	if idx.bounds.MaxX <= idx.bounds.MinX || idx.bounds.MaxY <= idx.bounds.MinY {
		return idx.pointBoundsError("Build")
	}

	idx.computeGrid()

	if idx.debugLevel > 1 {
		idx.logger.Info("grid fixed",
			"points", idx.pointCount,
			"cellsX", idx.cellsX, "cellsY", idx.cellsY, "cellsZ", idx.cellsZ)
	}

	if err := idx.binPoints(); err != nil {
		idx.closeTempFile()

		return err
	}

	if idx.debugLevel > 2 {
		idx.outputCellStats()
	}

	if err := idx.consolidateCells(); err != nil {
		idx.closeTempFile()

		return err
	}
	idx.closeTempFile()

	if idx.standalone {
		if err := idx.saveStandalone(); err != nil {
			return err
		}
	} else {
		if err := idx.saveInline(); err != nil {
			return err
		}
	}

	return nil
}

// computeGrid fixes the cell matrix: ceil(sqrt(N/50)) cells per axis
// scaled by the X/Y aspect ratio, at least MinCellsPerAxis, at most
// MaxTotalCells in total.
func (idx *Index) computeGrid() {
	xRatio, yRatio := 1.0, 1.0
	if idx.rangeX < idx.rangeY {
		xRatio = idx.rangeX / idx.rangeY
	}
	if idx.rangeY < idx.rangeX {
		yRatio = idx.rangeY / idx.rangeX
	}

	total := uint32(math.Ceil(math.Sqrt(float64(idx.pointCount) / OptimalPointsPerCell)))
	if total < MinCellsPerAxis {
		total = MinCellsPerAxis
	}
	idx.cellsX = uint32(xRatio * float64(total))
	idx.cellsY = uint32(yRatio * float64(total))
	if idx.cellsX < 1 {
		idx.cellsX = 1
	}
	if idx.cellsY < 1 {
		idx.cellsY = 1
	}
	idx.totalCells = idx.cellsX * idx.cellsY
	if idx.totalCells > MaxTotalCells {
		reduction := math.Sqrt(float64(MaxTotalCells) / float64(idx.totalCells))
		idx.cellsX = uint32(float64(idx.cellsX) * reduction)
		idx.cellsY = uint32(float64(idx.cellsY) * reduction)
		idx.totalCells = idx.cellsX * idx.cellsY
	}
	idx.cellSizeX = idx.rangeX / float64(idx.cellsX)
	idx.cellSizeY = idx.rangeY / float64(idx.cellsY)

	idx.cells = make([][]indexCell, idx.cellsX)
	for x := range idx.cells {
		idx.cells[x] = make([]indexCell, idx.cellsY)
		for y := range idx.cells[x] {
			idx.cells[x][y] = newIndexCell()
		}
	}
}

// binPoints is pass 1: stream every point, extend or start a run in its
// cell, and spill the run table to the temp file when it would exceed the
// memory budget.
func (idx *Index) binPoints() error {
	if err := idx.reader.Seek(0); err != nil {
		return idx.inputFileError("binPoints")
	}

	lastCellX := ^uint32(0)
	lastCellY := ^uint32(0)
	var pointID, lastPointID uint32
	var runsInMemory, maxRunsInMemory uint32
	maxRunsInMemory = idx.maxMemory / runEntrySize

	for idx.reader.ReadNextPoint(false) {
		pt := idx.reader.Point()
		cx, cy, ok := idx.identifyCell(pt.X(), pt.Y())
		if ok {
			cell := &idx.cells[cx][cy]
			if !(cx == lastCellX && cy == lastCellY && cell.incrementLast(lastPointID)) {
				if idx.tempFileName != "" && runsInMemory >= maxRunsInMemory {
					if err := idx.purgeToTempFile(); err != nil {
						return err
					}
					runsInMemory = 0
				}
				cell.addRun(pointID)
				lastPointID = pointID
				lastCellX = cx
				lastCellY = cy
				runsInMemory++
			} else {
				lastPointID = pointID
			}
			cell.updateZBounds(pt.Z())
		}
		pointID++
	}
	if err := idx.reader.Err(); err != nil {
		return idx.inputFileError("binPoints")
	}

	if idx.tempFileName != "" && idx.tempFileStarted {
		if err := idx.purgeToTempFile(); err != nil {
			return err
		}
	}

	return nil
}

// consolidateCells is pass 2: reload each cell's spilled runs, subdivide
// cells that exceed the Z range or point thresholds, and leave the cell
// ready for serialization.
func (idx *Index) consolidateCells() error {
	indexed := uint64(0)
	for x := uint32(0); x < idx.cellsX; x++ {
		for y := uint32(0); y < idx.cellsY; y++ {
			cell := &idx.cells[x][y]
			if idx.debugLevel > 3 {
				idx.logger.Info("reloading cell", "x", x, "y", y)
			}
			if idx.tempFileStarted {
				if err := idx.loadCellFromTempFile(cell, x, y); err != nil {
					return err
				}
			}

			zRange := cell.zRange()
			zBinned := idx.cellsZ > 1 && zRange > idx.cellSizeZ
			if zBinned || cell.numPoints > MaxPointsPerCell {
				if err := idx.subdivideCell(cell, x, y, zBinned); err != nil {
					return err
				}
				cell.removeMainRuns()
			}
			indexed += uint64(cell.numPoints)
		}
	}

	if idx.debugLevel > 0 && indexed < idx.pointCount {
		idx.logger.Info("not all points indexed",
			"indexed", indexed, "total", idx.pointCount)
	}

	return nil
}

// subdivideCell walks every point the cell owns and files it into Z bins
// or quadrant sub-cells. Z binning takes precedence over quadrants.
func (idx *Index) subdivideCell(cell *indexCell, x, y uint32, zBinned bool) error {
	for _, run := range cell.runs {
		if err := idx.reader.Seek(uint64(run.first)); err != nil {
			return idx.fileError("subdivideCell")
		}
		for i := uint32(0); i < run.count; i++ {
			if !idx.reader.ReadNextPoint(false) {
				return idx.fileError("subdivideCell")
			}
			pt := idx.reader.Point()
			pointID := run.first + i

			if zBinned {
				if cz, ok := idx.identifyCellZ(pt.Z()); ok {
					cell.addZCellPoint(cz, pointID)
				}
			} else {
				sub := idx.identifySubCell(pt.X(), pt.Y(), x, y)
				cell.addSubCellPoint(sub, pointID)
			}
		}
	}

	return nil
}

// identifyCell maps a coordinate pair to its (x, y) cell. Points exactly
// on the maximum boundary fall into the last cell.
func (idx *Index) identifyCell(x, y float64) (uint32, uint32, bool) {
	offsetX := (x - idx.bounds.MinX) / idx.rangeX
	var cx, cy uint32
	switch {
	case offsetX >= 0 && offsetX < 1:
		cx = uint32(offsetX * float64(idx.cellsX))
	case compareDistance(offsetX, 1):
		cx = idx.cellsX - 1
	default:
		return 0, 0, false
	}

	offsetY := (y - idx.bounds.MinY) / idx.rangeY
	switch {
	case offsetY >= 0 && offsetY < 1:
		cy = uint32(offsetY * float64(idx.cellsY))
	case compareDistance(offsetY, 1):
		cy = idx.cellsY - 1
	default:
		return 0, 0, false
	}

	return cx, cy, true
}

// identifyCellZ maps a Z coordinate to its Z bin.
func (idx *Index) identifyCellZ(z float64) (uint32, bool) {
	offsetZ := (z - idx.bounds.MinZ) / idx.rangeZ
	switch {
	case offsetZ >= 0 && offsetZ < 1:
		return uint32(offsetZ * float64(idx.cellsZ)), true
	case compareDistance(offsetZ, 1):
		return idx.cellsZ - 1, true
	default:
		return 0, false
	}
}

// identifySubCell maps a coordinate pair to its quadrant within cell
// (x, y): 0 is SW, 1 is SE, 2 is NW, 3 is NE.
func (idx *Index) identifySubCell(px, py float64, x, y uint32) uint32 {
	cellMinX := float64(x)*idx.cellSizeX + idx.bounds.MinX
	cellMinY := float64(y)*idx.cellSizeY + idx.bounds.MinY

	var sub uint32
	if (px-cellMinX)/idx.cellSizeX > 0.5 {
		sub |= 1
	}
	if (py-cellMinY)/idx.cellSizeY > 0.5 {
		sub |= 2
	}

	return sub
}

// outputCellStats logs a population histogram of the cell grid.
func (idx *Index) outputCellStats() {
	const bins = 20

	var maxPoints uint32
	for x := range idx.cells {
		for y := range idx.cells[x] {
			if n := idx.cells[x][y].numPoints; n > maxPoints {
				maxPoints = n
			}
		}
	}
	if maxPoints == 0 {
		return
	}

	population := make([]uint32, bins)
	for x := range idx.cells {
		for y := range idx.cells[x] {
			bin := uint32(bins * float64(idx.cells[x][y].numPoints) / float64(maxPoints))
			if bin >= bins {
				bin = bins - 1
			}
			population[bin]++
		}
	}

	idx.logger.Info("max points per cell", "count", maxPoints)
	for i, count := range population {
		idx.logger.Info("cell population bin",
			"bin", i,
			"from", uint32(i)*maxPoints/bins,
			"to", uint32(i+1)*maxPoints/bins,
			"cells", count)
	}
}

// compareDistance reports near-equality of two doubles.
func compareDistance(a, b float64) bool {
	const epsilon = 1e-12
	d := a - b

	return d <= epsilon && d >= -epsilon
}

// Error helpers mirror the builder's failure taxonomy; each logs through
// the configured sink and returns a sentinel-wrapped error.

func (idx *Index) fileError(reporter string) error {
	idx.closeTempFile()
	if idx.debugLevel > 0 {
		idx.logger.Error("file i/o error", "in", reporter)
	}

	return fmt.Errorf("index %s: temp file i/o failed", reporter)
}

func (idx *Index) inputFileError(reporter string) error {
	if idx.debugLevel > 0 {
		idx.logger.Error("input file i/o error", "in", reporter)
	}

	return fmt.Errorf("index %s: input file i/o failed", reporter)
}

func (idx *Index) pointBoundsError(reporter string) error {
	if idx.debugLevel > 0 {
		idx.logger.Error("point out of bounds error", "in", reporter)
	}

	return fmt.Errorf("index %s: %w", reporter, errs.ErrIndexBounds)
}

func (idx *Index) inputBoundsError(reporter string) error {
	if idx.debugLevel > 0 {
		idx.logger.Error("input file has inappropriate bounds", "in", reporter)
	}

	return fmt.Errorf("index %s: %w", reporter, errs.ErrIndexBounds)
}

func applyOptions(idx *Index, opts []Option) error {
	return options.Apply(idx, opts...)
}
