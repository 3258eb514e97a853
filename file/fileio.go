package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/geodatakit/hspc/errs"
)

// FileIO is the base of Reader, Writer and Updater: it owns the file
// handle, loads and stores the header block, and carries the opaque
// spatial reference string from the companion .prj file.
type FileIO struct {
	filename string
	f        *os.File
	header   *Header
	srs      string
}

// Filename returns the path this handle operates on.
func (fio *FileIO) Filename() string { return fio.filename }

// SetFilename sets the path before Open.
func (fio *FileIO) SetFilename(filename string) { fio.filename = filename }

// Header returns the header bound to this file.
func (fio *FileIO) Header() *Header { return fio.header }

// SetHeader binds a copy of the header to this file.
func (fio *FileIO) SetHeader(header *Header) {
	fio.header = header.Clone()
}

// SRS returns the opaque spatial reference string. The core stores and
// returns it verbatim; interpretation is left to external tooling.
func (fio *FileIO) SRS() string { return fio.srs }

// SetSRS sets the spatial reference string.
func (fio *FileIO) SetSRS(srs string) { fio.srs = srs }

// prjPath derives the companion .prj path from the data file path.
func (fio *FileIO) prjPath() string {
	ext := filepath.Ext(fio.filename)

	return strings.TrimSuffix(fio.filename, ext) + ".prj"
}

// hswPath derives the companion .hsw waveform path from the data file
// path.
func (fio *FileIO) hswPath() string {
	ext := filepath.Ext(fio.filename)

	return strings.TrimSuffix(fio.filename, ext) + ".hsw"
}

// loadHeader reads the complete header block from the current file
// position, re-materializing the schema.
func (fio *FileIO) loadHeader() error {
	if fio.f == nil {
		return errs.ErrFileNotOpen
	}
	header := newEmptyHeader()
	if _, err := header.ReadFrom(fio.f); err != nil {
		return fmt.Errorf("load header: %w", err)
	}
	fio.header = header

	return nil
}

// writeHeader serializes the header block at the current file position.
func (fio *FileIO) writeHeader() error {
	if fio.f == nil {
		return errs.ErrFileNotOpen
	}
	if fio.header == nil {
		return errs.ErrIncompatibleHeader
	}
	if _, err := fio.header.WriteTo(fio.f); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	return nil
}

// UpdateHeader rewrites the header block in place. The new header must be
// compatible with the bound one so the serialized layout keeps its size.
func (fio *FileIO) UpdateHeader(header *Header) error {
	if fio.header == nil || !fio.header.IsCompatible(header) {
		return errs.ErrIncompatibleHeader
	}
	fio.SetHeader(header)

	pre, err := fio.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := fio.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := fio.writeHeader(); err != nil {
		return err
	}
	_, err = fio.f.Seek(pre, io.SeekStart)

	return err
}

// loadSRS reads the companion .prj file if present. A missing file leaves
// the SRS empty without error.
func (fio *FileIO) loadSRS() error {
	data, err := os.ReadFile(fio.prjPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}
	fio.srs = string(data)

	return nil
}

// saveSRS writes the companion .prj file when an SRS string is set.
func (fio *FileIO) saveSRS() error {
	if fio.srs == "" {
		return nil
	}

	return os.WriteFile(fio.prjPath(), []byte(fio.srs), 0o644)
}

// close releases the file handle.
func (fio *FileIO) close() error {
	if fio.f == nil {
		return nil
	}
	err := fio.f.Close()
	fio.f = nil

	return err
}
