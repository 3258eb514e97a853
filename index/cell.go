package index

import "math"

// pointRun is one run-length encoded entry: count consecutive point IDs
// starting at first all belong to the same cell. Consecutive points
// usually land in the same cell, so runs are the index's core space
// optimisation.
type pointRun struct {
	first uint32
	count uint32
}

// zBin groups the runs of one Z slab of a subdivided cell.
type zBin struct {
	z    uint32
	runs []pointRun
}

// indexCell is one (x, y) grid cell. During pass 1 it accumulates runs in
// memory, spilling them into a temp-file linked list when the memory
// budget fills. After pass 2 it holds either its flat runs, four quadrant
// sub-cells, or a list of Z bins.
type indexCell struct {
	runs     []pointRun
	subCells [4][]pointRun
	zBins    []zBin

	numPoints  uint32
	numRuns    uint32
	fileOffset int64

	zMin float64
	zMax float64
}

func newIndexCell() indexCell {
	return indexCell{zMin: math.Inf(1), zMax: math.Inf(-1)}
}

// addRun starts a new run at the given point ID.
func (c *indexCell) addRun(pointID uint32) {
	c.runs = append(c.runs, pointRun{first: pointID, count: 1})
	c.numPoints++
	c.numRuns++
}

// addRunSpan re-adds a run reloaded from the temp file.
func (c *indexCell) addRunSpan(pointID, count uint32) {
	c.runs = append(c.runs, pointRun{first: pointID, count: count})
	c.numPoints += count
	c.numRuns++
}

// incrementLast extends the cell's most recent run when it ends exactly at
// lastPointID. It reports false when a new run must be started instead.
func (c *indexCell) incrementLast(lastPointID uint32) bool {
	if len(c.runs) == 0 {
		return false
	}
	last := &c.runs[len(c.runs)-1]
	if last.first+last.count-1 != lastPointID {
		return false
	}
	last.count++
	c.numPoints++

	return true
}

// updateZBounds folds a point's Z into the cell's Z range.
func (c *indexCell) updateZBounds(z float64) {
	if z < c.zMin {
		c.zMin = z
	}
	if z > c.zMax {
		c.zMax = z
	}
}

// zRange returns the cell's Z extent, or 0 for an empty cell.
func (c *indexCell) zRange() float64 {
	if c.zMax < c.zMin {
		return 0
	}

	return c.zMax - c.zMin
}

// addZCellPoint files one point into the given Z bin, extending the bin's
// last run when the point is consecutive.
func (c *indexCell) addZCellPoint(z, pointID uint32) {
	for i := range c.zBins {
		if c.zBins[i].z == z {
			runs := c.zBins[i].runs
			if n := len(runs); n > 0 && runs[n-1].first+runs[n-1].count == pointID {
				c.zBins[i].runs[n-1].count++
			} else {
				c.zBins[i].runs = append(runs, pointRun{first: pointID, count: 1})
			}

			return
		}
	}
	c.zBins = append(c.zBins, zBin{z: z, runs: []pointRun{{first: pointID, count: 1}}})
}

// addSubCellPoint files one point into the given quadrant, extending the
// quadrant's last run when the point is consecutive.
func (c *indexCell) addSubCellPoint(sub, pointID uint32) {
	runs := c.subCells[sub]
	if n := len(runs); n > 0 && runs[n-1].first+runs[n-1].count == pointID {
		c.subCells[sub][n-1].count++

		return
	}
	c.subCells[sub] = append(runs, pointRun{first: pointID, count: 1})
}

// removeMainRuns drops the flat run list, keeping the point total. Used
// after spilling to the temp file and after subdividing.
func (c *indexCell) removeMainRuns() {
	c.runs = nil
	c.numRuns = 0
}

// subdivided reports whether the cell holds sub-cells or Z bins instead of
// flat runs.
func (c *indexCell) subdivided() bool {
	if len(c.zBins) > 0 {
		return true
	}
	for i := range c.subCells {
		if len(c.subCells[i]) > 0 {
			return true
		}
	}

	return false
}
