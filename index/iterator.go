package index

import (
	"math"

	"github.com/geodatakit/hspc/geom"
)

// Iterator walks a region query in chunks of point IDs.
//
// Each call to Next returns up to chunkSize conforming IDs, resuming from
// the previous position. At(n) rewinds and replays to the n-th conforming
// point; Advance(n) skips n-1 conforming points beyond the current position.
// The returned slice is reused across calls; callers must copy it before
// the next call.
type Iterator struct {
	index     *Index
	filter    geom.Bounds3
	chunkSize int

	noFilterX, noFilterY, noFilterZ bool

	// Cell ranges fully inside the query box (no per-point tests) and the
	// wider border ranges that require per-point tests.
	lowXCellIn, highXCellIn int32
	lowYCellIn, highYCellIn int32
	lowZCellIn, highZCellIn int32
	lowXBorder, highXBorder int32
	lowYBorder, highYBorder int32
	lowZBorder, highZBorder int32

	// Fractional positions of the query edges inside their border cells,
	// used to skip sub-cells that cannot intersect the box.
	lowXBorderPart, highXBorderPart float64
	lowYBorderPart, highYBorderPart float64

	// Scan position.
	curCellX, curCellY uint32
	ptsScannedCurCell  uint32
	totalScanned       uint32
	conformingFound    uint32
	advance            uint32
	exhausted          bool

	result []uint32
}

// Filter starts a region query over the built index.
func (idx *Index) Filter(bounds geom.Bounds3, chunkSize int) *Iterator {
	if chunkSize < 1 {
		chunkSize = 1
	}
	it := &Iterator{
		index:     idx,
		filter:    bounds,
		chunkSize: chunkSize,
	}
	it.filter.Clip(idx.bounds)
	it.calcFilterEnablers()
	it.setCellFilterBounds()
	it.resetPosition()

	return it
}

// Next returns the next chunk of conforming point IDs. An empty slice
// marks the end of the query.
func (it *Iterator) Next() []uint32 {
	return it.Advance(1)
}

// At rewinds and replays the query to return IDs starting at the n-th
// (0-based) conforming point.
func (it *Iterator) At(n int) []uint32 {
	switch {
	case n <= 0:
		it.resetPosition()
		it.advance = 1
	case uint32(n) < it.conformingFound:
		it.resetPosition()
		it.advance = uint32(n) + 1
	default:
		it.advance = uint32(n) - it.conformingFound + 1
	}

	return it.index.scan(it)
}

// Advance skips n-1 conforming points beyond the current position and
// returns the next chunk.
func (it *Iterator) Advance(n int) []uint32 {
	if n > 0 {
		n--
	}

	return it.At(int(it.conformingFound) + n)
}

// ConformingFound returns the number of conforming points located so far.
func (it *Iterator) ConformingFound() uint32 { return it.conformingFound }

func (it *Iterator) resetPosition() {
	it.curCellX = 0
	it.curCellY = 0
	it.ptsScannedCurCell = 0
	it.totalScanned = 0
	it.conformingFound = 0
	it.exhausted = false
}

// calcFilterEnablers disables per-axis filtering for degenerate filter
// axes.
func (it *Iterator) calcFilterEnablers() {
	if compareDistance(it.filter.MinX, it.filter.MaxX) {
		it.noFilterX = true
	}
	if compareDistance(it.filter.MinY, it.filter.MaxY) {
		it.noFilterY = true
	}
	if compareDistance(it.filter.MinZ, it.filter.MaxZ) {
		it.noFilterZ = true
	}
}

// setCellFilterBounds converts the filter box into cell number ranges:
// the fully-inside range whose cells need no per-point tests and the
// border range whose cells do.
func (it *Iterator) setCellFilterBounds() {
	idx := it.index

	filterMinXCell := float64(idx.cellsX) * (it.filter.MinX - idx.bounds.MinX) / idx.rangeX
	filterMaxXCell := float64(idx.cellsX) * (it.filter.MaxX - idx.bounds.MinX) / idx.rangeX
	filterMinYCell := float64(idx.cellsY) * (it.filter.MinY - idx.bounds.MinY) / idx.rangeY
	filterMaxYCell := float64(idx.cellsY) * (it.filter.MaxY - idx.bounds.MinY) / idx.rangeY

	var filterMinZCell, filterMaxZCell float64
	if idx.rangeZ > 0 && !compareDistance(idx.rangeZ, 0) {
		filterMinZCell = float64(idx.cellsZ) * (it.filter.MinZ - idx.bounds.MinZ) / idx.rangeZ
		filterMaxZCell = float64(idx.cellsZ) * (it.filter.MaxZ - idx.bounds.MinZ) / idx.rangeZ
	}

	it.lowXCellIn = int32(math.Ceil(filterMinXCell))
	it.highXCellIn = int32(math.Floor(filterMaxXCell) - 1)
	it.lowYCellIn = int32(math.Ceil(filterMinYCell))
	it.highYCellIn = int32(math.Floor(filterMaxYCell) - 1)
	it.lowZCellIn = int32(math.Ceil(filterMinZCell))
	it.highZCellIn = int32(math.Floor(filterMaxZCell) - 1)

	lowX := math.Floor(filterMinXCell)
	highX := math.Ceil(filterMaxXCell) - 1
	lowY := math.Floor(filterMinYCell)
	highY := math.Ceil(filterMaxYCell) - 1
	it.lowXBorder = int32(lowX)
	it.highXBorder = int32(highX)
	it.lowYBorder = int32(lowY)
	it.highYBorder = int32(highY)
	it.lowZBorder = int32(math.Floor(filterMinZCell))
	it.highZBorder = int32(math.Ceil(filterMaxZCell) - 1)

	it.lowXBorderPart = filterMinXCell - lowX
	it.highXBorderPart = filterMaxXCell - highX
	it.lowYBorderPart = filterMinYCell - lowY
	it.highYBorderPart = filterMaxYCell - highY
}

// cellInteresting reports whether an (x, y) cell overlaps the query box.
func (it *Iterator) cellInteresting(x, y int32) bool {
	if !it.noFilterX && (x < it.lowXBorder || x > it.highXBorder) {
		return false
	}
	if !it.noFilterY && (y < it.lowYBorder || y > it.highYBorder) {
		return false
	}

	return true
}

// zCellInteresting reports whether a Z bin overlaps the query box.
func (it *Iterator) zCellInteresting(z int32) bool {
	return it.noFilterZ || (z >= it.lowZBorder && z <= it.highZBorder)
}

// subCellInteresting reports whether a quadrant of a border cell can
// intersect the query box. Quadrants of fully-inside cells always can.
func (it *Iterator) subCellInteresting(sub uint32, x, y int32) bool {
	xGood := false
	yGood := false
	lowHalfX := sub == 0 || sub == 2
	lowHalfY := sub == 0 || sub == 1

	switch {
	case it.noFilterX || (x >= it.lowXCellIn && x <= it.highXCellIn):
		xGood = true
	case x == it.lowXBorder:
		if lowHalfX {
			// Only when the box edge falls in the lower half of the cell.
			if it.lowXBorderPart <= 0.5 {
				xGood = true
			}
		} else {
			xGood = true
		}
	default:
		// Right (upper) border cell.
		if lowHalfX {
			xGood = true
		} else if it.highXBorderPart > 0.5 {
			xGood = true
		}
	}

	switch {
	case it.noFilterY || (y >= it.lowYCellIn && y <= it.highYCellIn):
		yGood = true
	case y == it.lowYBorder:
		if lowHalfY {
			if it.lowYBorderPart <= 0.5 {
				yGood = true
			}
		} else {
			yGood = true
		}
	default:
		if lowHalfY {
			yGood = true
		} else if it.highYBorderPart > 0.5 {
			yGood = true
		}
	}

	return xGood && yGood
}

// scan fills the iterator's result slice with up to chunkSize conforming
// IDs, resuming from the stored position and honoring the advance count.
func (idx *Index) scan(it *Iterator) []uint32 {
	it.result = it.result[:0]
	if it.exhausted {
		return it.result
	}

	// Asking to advance past the file's point count is a waste of time.
	if it.advance+it.totalScanned > uint32(idx.pointCount) {
		return it.result
	}

	reserve := it.chunkSize
	if reserve > DefaultReserve {
		reserve = DefaultReserve
	}
	if cap(it.result) < reserve {
		it.result = make([]uint32, 0, reserve)
	}

	for x := it.curCellX; x < idx.cellsX; x++ {
		startY := uint32(0)
		if x == it.curCellX {
			startY = it.curCellY
		}
		for y := startY; y < idx.cellsY; y++ {
			resuming := x == it.curCellX && y == it.curCellY && it.ptsScannedCurCell > 0
			ignore := uint32(0)
			if resuming {
				ignore = it.ptsScannedCurCell
			}
			it.ptsScannedCurCell = 0

			if !it.cellInteresting(int32(x), int32(y)) {
				continue
			}

			full := idx.scanCell(it, x, y, ignore)
			if full {
				it.curCellX = x
				it.curCellY = y

				return it.result
			}
			it.ptsScannedCurCell = 0
		}
	}
	it.exhausted = true

	return it.result
}

// scanCell walks one cell's series in (z, sub, flat) order. It returns
// true when the chunk filled mid-cell.
func (idx *Index) scanCell(it *Iterator, x, y, ignore uint32) bool {
	cell := &idx.cells[x][y]

	if len(cell.zBins) > 0 {
		for _, bin := range cell.zBins {
			if !it.zCellInteresting(int32(bin.z)) {
				continue
			}
			for _, run := range bin.runs {
				if idx.filterPointSeries(it, run, int32(x), int32(y), int32(bin.z), ignore) {
					return true
				}
			}
		}

		return false
	}

	if cell.subdivided() {
		for sub := uint32(0); sub < 4; sub++ {
			if !it.subCellInteresting(sub, int32(x), int32(y)) {
				continue
			}
			for _, run := range cell.subCells[sub] {
				if idx.filterPointSeries(it, run, int32(x), int32(y), 0, ignore) {
					return true
				}
			}
		}

		return false
	}

	for _, run := range cell.runs {
		if idx.filterPointSeries(it, run, int32(x), int32(y), 0, ignore) {
			return true
		}
	}

	return false
}

// filterPointSeries tests one run against the query box, emitting
// conforming IDs. It returns true when the chunk filled.
func (idx *Index) filterPointSeries(it *Iterator, run pointRun, x, y, z int32, ignore uint32) bool {
	lastPtRead := false
	lastPointID := ^uint32(0)

	pointID := run.first
	for i := uint32(0); i < run.count; i, pointID = i+1, pointID+1 {
		it.ptsScannedCurCell++
		if it.ptsScannedCurCell <= ignore {
			lastPointID = pointID
			continue
		}
		it.totalScanned++

		if idx.filterOnePoint(it, x, y, z, pointID, lastPointID, &lastPtRead) {
			it.conformingFound++
			skip := false
			if it.advance > 0 {
				it.advance--
				if it.advance > 0 {
					skip = true
				}
			}
			if !skip {
				it.result = append(it.result, pointID)
				if len(it.result) >= it.chunkSize {
					return true
				}
			}
		}
		lastPointID = pointID
	}

	return false
}

// filterOnePoint decides whether a point conforms to the query box. Cells
// fully inside the box pass without disk reads; border cells read just
// enough of the point to test it, memoizing that the next disk read is
// the sequential next point to avoid seeks inside long runs.
func (idx *Index) filterOnePoint(it *Iterator, x, y, z int32, pointID, lastPointID uint32, lastPtRead *bool) bool {
	xGood, yGood, zGood := false, false, false
	ptRead := false
	var ptX, ptY, ptZ float64

	readPoint := func() bool {
		// Sequential next point: skip the seek.
		if pointID == lastPointID+1 && *lastPtRead {
			if idx.reader.ReadNextPoint(false) {
				return true
			}
		}
		if err := idx.reader.Seek(uint64(pointID)); err != nil {
			return false
		}

		return idx.reader.ReadNextPoint(false)
	}

	switch {
	case it.noFilterX:
		xGood = true
	case x >= it.lowXCellIn && x <= it.highXCellIn:
		xGood = true
	case x == it.lowXBorder || x == it.highXBorder:
		if !ptRead {
			ptRead = readPoint()
		}
		if ptRead {
			pt := idx.reader.Point()
			ptX, ptY, ptZ = pt.X(), pt.Y(), pt.Z()
			if ptX >= it.filter.MinX && ptX <= it.filter.MaxX {
				xGood = true
			}
		}
	}
	if xGood {
		switch {
		case it.noFilterY:
			yGood = true
		case y >= it.lowYCellIn && y <= it.highYCellIn:
			yGood = true
		case y == it.lowYBorder || y == it.highYBorder:
			if !ptRead {
				ptRead = readPoint()
				if ptRead {
					pt := idx.reader.Point()
					ptY, ptZ = pt.Y(), pt.Z()
				}
			}
			if ptRead && ptY >= it.filter.MinY && ptY <= it.filter.MaxY {
				yGood = true
			}
		}
	}
	if xGood && yGood {
		switch {
		case it.noFilterZ:
			zGood = true
		case z >= it.lowZCellIn && z <= it.highZCellIn:
			zGood = true
		case z == it.lowZBorder || z == it.highZBorder:
			if !ptRead {
				ptRead = readPoint()
				if ptRead {
					pt := idx.reader.Point()
					ptZ = pt.Z()
				}
			}
			if ptRead && ptZ >= it.filter.MinZ && ptZ <= it.filter.MaxZ {
				zGood = true
			}
		}
	}

	*lastPtRead = ptRead

	return xGood && yGood && zGood
}
