package file

import (
	"fmt"
	"io"
	"os"

	"github.com/geodatakit/hspc/errs"
)

// Reader streams point records out of a container file, sequentially or by
// position, optionally applying a filter/transform chain and pulling in
// each point's waveform payload.
//
// The reader owns its file handle exclusively and reuses one Point across
// reads; callers must copy a point's buffers to retain a record beyond
// the next read.
type Reader struct {
	FileIO

	point           *Point
	current         uint64
	size            uint64
	recordSize      int
	needHeaderCheck bool
	writable        bool
	hsw             *os.File

	filters    []Filter
	transforms []Transform

	err error
}

// NewReader creates a reader for the given path. Open must succeed before
// any record I/O.
func NewReader(filename string) *Reader {
	r := &Reader{point: NewPoint(nil)}
	r.filename = filename

	return r
}

// Open opens the file, loads the header and the companion .prj, binds the
// reusable point to the loaded header and positions the cursor at the
// first record.
func (r *Reader) Open() error {
	if r.filename == "" {
		return errs.ErrFileNotOpen
	}

	flag := os.O_RDONLY
	if r.writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(r.filename, flag, 0o644)
	if err != nil {
		return err
	}
	r.f = f

	if err := r.loadHeader(); err != nil {
		r.f.Close()
		r.f = nil

		return err
	}
	if err := r.loadSRS(); err != nil {
		r.f.Close()
		r.f = nil

		return err
	}

	r.point.SetHeader(r.header)
	r.Reset()

	return nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	if r.hsw != nil {
		r.hsw.Close()
		r.hsw = nil
	}

	return r.close()
}

// Reset rewinds the cursor to the first record.
func (r *Reader) Reset() {
	r.current = 0
	r.size = r.header.PointRecordsCount()
	r.recordSize = r.header.Schema().ByteSize()
	r.err = nil
}

// Point returns the reusable point holding the last record read.
func (r *Reader) Point() *Point { return r.point }

// Err returns the first I/O error encountered during streaming, if any.
func (r *Reader) Err() error { return r.err }

// ReadNextPoint advances one record. It returns false at end of file or on
// an I/O error (see Err). Filters are applied first: records rejected by
// any filter are skipped until one passes or the file ends. Transforms
// run after filtering, in order. When readWaveform is set, the point's
// waveform payload is read as well.
func (r *Reader) ReadNextPoint(readWaveform bool) bool {
	if r.current == 0 {
		if _, err := r.f.Seek(int64(r.header.DataOffset()), io.SeekStart); err != nil {
			r.err = err
			return false
		}
	}
	if r.current >= r.size {
		return false
	}

	r.checkPointHeader()

	if !r.readRecord() {
		return false
	}

	for !r.filterPoint(r.point) {
		if r.current >= r.size {
			return false
		}
		if !r.readRecord() {
			return false
		}
	}

	if err := r.transformPoint(r.point); err != nil {
		r.err = err
		return false
	}

	if readWaveform {
		if err := r.readWaveformData(); err != nil {
			r.err = err
			return false
		}
	}

	return true
}

// ReadPointAt seeks to the n-th record and reads it, bypassing filters but
// applying transforms.
func (r *Reader) ReadPointAt(n uint64, readWaveform bool) (*Point, error) {
	if n >= r.size {
		return nil, fmt.Errorf("%w: point %d of %d", errs.ErrPointOutOfRange, n, r.size)
	}

	pos := int64(r.header.DataOffset()) + int64(n)*int64(r.header.DataRecordLength())
	if _, err := r.f.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}

	r.checkPointHeader()

	if _, err := io.ReadFull(r.f, r.point.Data()); err != nil {
		return nil, err
	}
	r.current = n + 1

	if err := r.transformPoint(r.point); err != nil {
		return nil, err
	}

	if readWaveform {
		if err := r.readWaveformData(); err != nil {
			return nil, err
		}
	}

	return r.point, nil
}

// Seek positions the cursor so the next ReadNextPoint returns record n.
func (r *Reader) Seek(n uint64) error {
	if n >= r.size {
		return fmt.Errorf("%w: point %d of %d", errs.ErrPointOutOfRange, n, r.size)
	}

	pos := int64(r.header.DataOffset()) + int64(n)*int64(r.header.DataRecordLength())
	if _, err := r.f.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	r.current = n

	return nil
}

// CurrentIndex returns the cursor position: the index of the record the
// next read will return.
func (r *Reader) CurrentIndex() uint64 { return r.current }

// readRecord reads one record into the reusable point and advances the
// cursor.
func (r *Reader) readRecord() bool {
	if _, err := io.ReadFull(r.f, r.point.Data()); err != nil {
		r.err = err
		return false
	}
	r.current++

	return true
}

// checkPointHeader rebinds the reusable point when a header-modifying
// transform may have moved it to a different header.
func (r *Reader) checkPointHeader() {
	if r.needHeaderCheck && r.point.Header() != r.header {
		r.point.SetHeader(r.header)
	}
}

// readWaveformData reads the point's waveform payload from its recorded
// address: internally from this file, or from the companion .hsw file
// when the header stores waveform data externally. The record cursor is
// restored afterwards.
func (r *Reader) readWaveformData() error {
	offset, err := r.point.WaveformDataByteOffset()
	if err != nil {
		return err
	}
	size, err := r.point.WaveformDataSize()
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	buf := make([]byte, size)

	if r.header.InternalWaveformData() {
		pre, err := r.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if _, err := r.f.Seek(int64(offset), io.SeekStart); err != nil {
			return err
		}
		if _, err := io.ReadFull(r.f, buf); err != nil {
			return err
		}
		if _, err := r.f.Seek(pre, io.SeekStart); err != nil {
			return err
		}
	} else {
		if r.hsw == nil {
			hsw, err := os.Open(r.hswPath())
			if err != nil {
				return fmt.Errorf("external waveform data: %w", err)
			}
			r.hsw = hsw
		}
		if _, err := r.hsw.ReadAt(buf, int64(offset)); err != nil {
			return err
		}
	}

	r.point.SetWaveformData(buf)

	return nil
}

// transformPoint applies the transforms to the point, in order.
func (r *Reader) transformPoint(p *Point) error {
	for _, t := range r.transforms {
		if err := t.Apply(p); err != nil {
			return err
		}
	}

	return nil
}

// filterPoint reports whether every filter keeps the point. With no
// filters configured, every point is kept.
func (r *Reader) filterPoint(p *Point) bool {
	for _, f := range r.filters {
		if !f.Keep(p) {
			return false
		}
	}

	return true
}

// SetFilters installs the filter chain.
func (r *Reader) SetFilters(filters []Filter) { r.filters = filters }

// Filters returns the filter chain.
func (r *Reader) Filters() []Filter { return r.filters }

// SetTransforms installs the transform chain. A transform that modifies
// the header forces a header recheck on subsequent reads.
func (r *Reader) SetTransforms(transforms []Transform) {
	r.transforms = transforms
	r.needHeaderCheck = false
	for _, t := range transforms {
		if t.ModifiesHeader() {
			r.needHeaderCheck = true
		}
	}
}

// Transforms returns the transform chain.
func (r *Reader) Transforms() []Transform { return r.transforms }
