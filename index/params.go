// Package index builds and queries the 2-D (optionally Z-binned) spatial
// index over a container file's points.
//
// The builder streams the file once, bucketing run-length encoded point ID
// ranges per grid cell with an external-memory temp file, then subdivides
// overfilled cells into quadrants or Z bins and serializes the result
// either into a standalone sidecar file or inline at the tail of the data
// file. Queries walk the cell grid through a chunked iterator.
package index

import (
	"io"
	"log/slog"

	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/internal/options"
)

// Design constants of the cell grid.
const (
	VersionMajor = 1
	VersionMinor = 0

	// DefaultMaxMemory bounds the in-memory run table during pass 1;
	// MinMemory is the enforced floor.
	DefaultMaxMemory = 10 * 1024 * 1024
	MinMemory        = 1024 * 1024

	// OptimalPointsPerCell drives the default cell count:
	// ceil(sqrt(N / OptimalPointsPerCell)) cells per axis.
	OptimalPointsPerCell = 50

	// MinCellsPerAxis and MaxTotalCells clamp the grid resolution.
	MinCellsPerAxis = 10
	MaxTotalCells   = 250000

	// MaxPointsPerCell is the overfill threshold beyond which a cell is
	// subdivided into quadrant sub-cells.
	MaxPointsPerCell = 1000

	// DefaultReserve caps the initial capacity of query result slices.
	DefaultReserve = 65536

	// runEntrySize approximates the in-memory cost of one run entry for
	// the pass-1 memory budget.
	runEntrySize = 32
)

// Option configures an Index before it is prepared.
type Option = options.Option[*Index]

// WithZBinHeight sets the Z bin height; cells whose Z range exceeds it are
// subdivided into Z bins instead of quadrants.
func WithZBinHeight(height float64) Option {
	return options.NoError(func(idx *Index) {
		idx.cellSizeZ = height
	})
}

// WithMaxMemory sets the pass-1 memory budget in bytes, floored at
// MinMemory.
func WithMaxMemory(bytes uint32) Option {
	return options.NoError(func(idx *Index) {
		if bytes < MinMemory {
			bytes = MinMemory
		}
		idx.maxMemory = bytes
	})
}

// WithTempFile sets the temp file path used for external-memory bucketing
// during the build. Without one, the whole run table stays in memory.
func WithTempFile(path string) Option {
	return options.NoError(func(idx *Index) {
		idx.tempFileName = path
	})
}

// WithStandalone directs the builder to write the index into a standalone
// sidecar file at the given path.
func WithStandalone(path string) Option {
	return options.NoError(func(idx *Index) {
		idx.standalone = true
		idx.outputPath = path
	})
}

// WithInline directs the builder to append the index to the data file
// itself, addressed from the file header. The data file must be writable.
func WithInline() Option {
	return options.NoError(func(idx *Index) {
		idx.standalone = false
	})
}

// WithForceRebuild discards any existing index and rebuilds.
func WithForceRebuild() Option {
	return options.NoError(func(idx *Index) {
		idx.forceRebuild = true
	})
}

// WithReadOnly forbids rebuilding: a missing or stale index makes New
// fail instead of writing.
func WithReadOnly() Option {
	return options.NoError(func(idx *Index) {
		idx.readOnly = true
	})
}

// WithDebug sets the verbosity level and sink for build diagnostics.
// Level 0 is silent; higher levels add cell statistics.
func WithDebug(level int, w io.Writer) Option {
	return options.NoError(func(idx *Index) {
		idx.debugLevel = level
		if w != nil {
			idx.logger = slog.New(slog.NewTextHandler(w, nil))
		}
	})
}

// WithLogger routes build diagnostics to an existing logger.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(idx *Index) {
		idx.logger = logger
	})
}

// WithAuthorship stamps the author, comment and date strings stored in the
// serialized index.
func WithAuthorship(author, comment, date string) Option {
	return options.NoError(func(idx *Index) {
		idx.author = author
		idx.comment = comment
		idx.date = date
	})
}

// WithCompression selects the sidecar payload compression.
func WithCompression(c format.CompressionType) Option {
	return options.NoError(func(idx *Index) {
		idx.compression = c
	})
}
