// Package hspc reads, writes and updates the HSPCD binary container for
// hyperspectral point-cloud records.
//
// Each record combines geometric coordinates, ASPRS-LiDAR-style
// attributes, an arbitrary number of per-point spectral band values and an
// optional variable-length waveform payload. Files are self-describing: a
// header enumerates every field, its binary data type, bit width and
// optional scale/offset, so the fixed-size record layout is fully
// determined by the embedded schema.
//
// # Basic Usage
//
// Writing a file:
//
//	hdr := hspc.NewHeader(format.PointFormat5)
//	hdr.Schema().AddBands(schema.BandDesc{Type: format.TypeInt16, Name: "Band Value"}, 3)
//	hdr.SetPointRecordsCount(1)
//
//	w, _ := hspc.CreateWriter("scan.hsp", hdr)
//	p := file.NewPoint(w.Header())
//	p.SetCoordinates(10, 20, 30)
//	w.WritePoint(p)
//	w.Close()
//
// Reading it back:
//
//	r, _ := hspc.OpenReader("scan.hsp")
//	for r.ReadNextPoint(true) {
//	    p := r.Point()
//	    fmt.Println(p.X(), p.Y(), p.Z())
//	}
//	r.Close()
//
// Building and querying a spatial index:
//
//	idx, _ := hspc.BuildIndex(r, index.WithZBinHeight(10))
//	it := idx.Filter(geom.NewBounds3(0, 0, 0, 100, 100, 50), 1000)
//	for ids := it.Next(); len(ids) > 0; ids = it.Next() {
//	    process(ids)
//	}
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the file and
// index packages, which expose the full API: schema manipulation lives in
// schema, on-disk layouts in section, and the typed value container in
// variant.
package hspc

import (
	"github.com/geodatakit/hspc/file"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/index"
)

// NewHeader creates a header carrying the required-field skeleton of the
// given point format preset.
func NewHeader(pointFormat format.PointFormat) *file.Header {
	return file.NewHeader(pointFormat)
}

// OpenReader opens an existing container file for sequential and
// positional reads.
func OpenReader(filename string) (*file.Reader, error) {
	r := file.NewReader(filename)
	if err := r.Open(); err != nil {
		return nil, err
	}

	return r, nil
}

// CreateWriter creates a container file bound to a copy of the header.
func CreateWriter(filename string, header *file.Header) (*file.Writer, error) {
	w := file.NewWriter(filename, header)
	if err := w.Open(); err != nil {
		return nil, err
	}

	return w, nil
}

// OpenUpdater opens an existing container file for in-place updates.
func OpenUpdater(filename string) (*file.Updater, error) {
	u := file.NewUpdater(filename)
	if err := u.Open(); err != nil {
		return nil, err
	}

	return u, nil
}

// BuildIndex prepares a spatial index over the reader's file, loading an
// existing index when it is still valid and building one otherwise.
func BuildIndex(reader *file.Reader, opts ...index.Option) (*index.Index, error) {
	return index.New(reader, opts...)
}
