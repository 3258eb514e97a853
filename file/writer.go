package file

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/internal/pool"
)

// Writer creates a container file and streams point records into it in
// strict append order.
//
// For headers that declare internal waveform data, Open pre-extends the
// file to dataOffset + expectedPointCount*recordLength so waveform
// payloads can be appended past records that have not been written yet
// without collision. The expected count is taken from the header's point
// record count, or from SetPointCount.
type Writer struct {
	FileIO

	pointCount      uint64
	totalPointCount uint64
	waveformTail    uint64
	hsw             *os.File
	hswTail         uint64

	filters    []Filter
	transforms []Transform
}

// NewWriter creates a writer bound to a copy of the header.
func NewWriter(filename string, header *Header) *Writer {
	w := &Writer{}
	w.filename = filename
	w.SetHeader(header)
	if header.HasWaveformData() {
		w.totalPointCount = header.PointRecordsCount()
	}

	return w
}

// SetPointCount declares the expected number of records, sizing the
// pre-extended record region that waveform payloads are appended after.
func (w *Writer) SetPointCount(count uint64) {
	w.totalPointCount = count
}

// Open creates the file and writes the header. With internal waveform
// data declared, the file is pre-extended for the expected record count;
// with external waveform data, the companion .hsw file is created and its
// descriptor table written.
func (w *Writer) Open() error {
	if w.filename == "" {
		return errs.ErrFileNotOpen
	}

	f, err := os.Create(w.filename)
	if err != nil {
		return err
	}
	w.f = f

	if err := w.writeHeader(); err != nil {
		w.f.Close()
		w.f = nil

		return err
	}
	if err := w.saveSRS(); err != nil {
		return err
	}

	recordRegionEnd := w.header.DataOffset() +
		w.totalPointCount*uint64(w.header.DataRecordLength())

	if w.header.HasWaveformData() && w.header.InternalWaveformData() {
		if err := w.f.Truncate(int64(recordRegionEnd)); err != nil {
			return fmt.Errorf("pre-extend for waveform data: %w", err)
		}
	}
	w.waveformTail = recordRegionEnd

	if w.header.HasWaveformData() && !w.header.InternalWaveformData() {
		if err := w.openExternalWaveform(); err != nil {
			return err
		}
	}

	return nil
}

// openExternalWaveform creates the .hsw sidecar: the descriptor table of
// the header followed by concatenated payloads appended per point.
func (w *Writer) openExternalWaveform() error {
	hsw, err := os.Create(w.hswPath())
	if err != nil {
		return err
	}
	w.hsw = hsw

	engine := endian.GetLittleEndianEngine()
	descs := w.header.WaveformDescriptors()
	buf := engine.AppendUint16(nil, uint16(len(descs)))
	for i := range descs {
		buf = append(buf, descs[i].Bytes()...)
	}
	if _, err := w.hsw.Write(buf); err != nil {
		return err
	}
	w.hswTail = uint64(len(buf))

	return nil
}

// WritePoint serializes the point's fixed record at the cursor. Filters
// reject points without writing them; transforms run first. When the
// header declares waveform data and the point carries a payload, the
// payload is written at the accumulated tail offset and the point's
// locator fields are stamped before serialization.
func (w *Writer) WritePoint(p *Point) error {
	if w.f == nil {
		return errs.ErrFileNotOpen
	}

	for _, t := range w.transforms {
		if err := t.Apply(p); err != nil {
			return err
		}
	}
	for _, f := range w.filters {
		if !f.Keep(p) {
			return nil
		}
	}

	writeWaveform := w.header.HasWaveformData() && p.HasWaveformData()
	var wfOffset uint64
	var wfData []byte
	if writeWaveform {
		wfData = p.WaveformData()
		if w.header.InternalWaveformData() {
			wfOffset = w.waveformTail
		} else {
			wfOffset = w.hswTail
		}
		p.SetWaveformDataAddress(wfOffset, uint32(len(wfData)))
	}

	buf := pool.GetRecordBuffer()
	buf.MustWrite(p.Data())
	_, err := w.f.Write(buf.Bytes())
	pool.PutRecordBuffer(buf)
	if err != nil {
		return err
	}
	w.pointCount++

	if writeWaveform {
		if w.header.InternalWaveformData() {
			pre, err := w.f.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			if _, err := w.f.WriteAt(wfData, int64(wfOffset)); err != nil {
				return err
			}
			if _, err := w.f.Seek(pre, io.SeekStart); err != nil {
				return err
			}
			w.waveformTail += uint64(len(wfData))
		} else {
			if _, err := w.hsw.WriteAt(wfData, int64(wfOffset)); err != nil {
				return err
			}
			w.hswTail += uint64(len(wfData))
		}
	}

	return nil
}

// PointCount returns the number of records written so far.
func (w *Writer) PointCount() uint64 { return w.pointCount }

// UpdatePointCount rewrites the header's point record count in place.
// A zero count writes the number of records written so far.
func (w *Writer) UpdatePointCount(count uint64) error {
	out := w.pointCount
	if count != 0 {
		out = count
	}
	w.header.SetPointRecordsCount(out)

	if w.f == nil {
		return errs.ErrFileNotOpen
	}

	// The point record count lives at byte offset 8 of the fixed header.
	var buf [8]byte
	endian.GetLittleEndianEngine().PutUint64(buf[:], out)
	_, err := w.f.WriteAt(buf[:], 8)

	return err
}

// UpdateExtent rewrites the header's extents in place from the given
// bounds fields of the bound header.
func (w *Writer) UpdateExtent() error {
	if w.f == nil {
		return errs.ErrFileNotOpen
	}

	engine := endian.GetLittleEndianEngine()
	buf := make([]byte, 0, 48)
	for _, v := range []float64{
		w.header.MinX(), w.header.MaxX(),
		w.header.MinY(), w.header.MaxY(),
		w.header.MinZ(), w.header.MaxZ(),
	} {
		buf = engine.AppendUint64(buf, math.Float64bits(v))
	}

	// Extents start at byte offset 24 of the fixed header.
	_, err := w.f.WriteAt(buf, 24)

	return err
}

// Close finalizes the point count in the header and releases the handles.
func (w *Writer) Close() error {
	if w.f != nil {
		if err := w.UpdatePointCount(w.pointCount); err != nil {
			return err
		}
	}
	if w.hsw != nil {
		w.hsw.Close()
		w.hsw = nil
	}

	return w.close()
}

// SetFilters installs the filter chain applied before each write.
func (w *Writer) SetFilters(filters []Filter) { w.filters = filters }

// Filters returns the filter chain.
func (w *Writer) Filters() []Filter { return w.filters }

// SetTransforms installs the transform chain applied before each write.
func (w *Writer) SetTransforms(transforms []Transform) { w.transforms = transforms }

// Transforms returns the transform chain.
func (w *Writer) Transforms() []Transform { return w.transforms }
