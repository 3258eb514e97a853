// Package errs defines the sentinel errors shared across the hspc packages.
//
// All errors are plain sentinel values so that callers can match them with
// errors.Is even when call sites wrap them with additional context.
package errs

import "errors"

// Format and header errors.
var (
	// ErrInvalidSignature is returned when a file does not start with the
	// HSPCD signature.
	ErrInvalidSignature = errors.New("invalid file signature")

	// ErrInvalidVersion is returned when the major/minor version pair is
	// outside the supported range.
	ErrInvalidVersion = errors.New("unsupported format version")

	// ErrInvalidHeaderSize is returned when a header buffer has the wrong size.
	ErrInvalidHeaderSize = errors.New("invalid header size")

	// ErrInvalidFormat is returned when a field table or block descriptor
	// violates the format specification.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidFieldDefinition is returned when a serialized field
	// definition cannot be decoded.
	ErrInvalidFieldDefinition = errors.New("invalid field definition")
)

// Schema and field errors.
var (
	// ErrFieldNotFound is returned when a lookup by index, name or id does
	// not match any schema field.
	ErrFieldNotFound = errors.New("field not found")

	// ErrRequiredFieldMissing is returned when a field mandated by the
	// current point format is absent from the schema.
	ErrRequiredFieldMissing = errors.New("required field missing from schema")

	// ErrInvalidBandDataType is returned when a band is added with a data
	// type that cannot hold band samples.
	ErrInvalidBandDataType = errors.New("unsupported band data type")

	// ErrInvalidDataType is returned when a value or field carries a data
	// type outside the closed set.
	ErrInvalidDataType = errors.New("invalid data type")
)

// Point and value errors.
var (
	// ErrInvalidPointData is returned when a point record fails a
	// structural check.
	ErrInvalidPointData = errors.New("invalid point data")

	// ErrValueConversion is returned when a variant value cannot be
	// converted to the requested type.
	ErrValueConversion = errors.New("variant value not convertible")

	// ErrBufferSize is returned when a caller-supplied buffer does not
	// match the native width of the addressed fields.
	ErrBufferSize = errors.New("buffer size mismatch")

	// ErrNoWaveformData is returned when waveform data is requested from a
	// point that carries none.
	ErrNoWaveformData = errors.New("point has no waveform data")
)

// I/O lifecycle errors.
var (
	// ErrFileNotOpen is returned when record I/O is attempted before a
	// successful Open.
	ErrFileNotOpen = errors.New("file not open")

	// ErrPointOutOfRange is returned when a seek or positional read
	// addresses a record beyond the recorded point count.
	ErrPointOutOfRange = errors.New("point index out of range")

	// ErrIncompatibleHeader is returned when an in-place header update
	// does not agree with the on-disk header layout.
	ErrIncompatibleHeader = errors.New("incompatible header")

	// ErrInvalidExpression is returned when a filter expression cannot be
	// parsed.
	ErrInvalidExpression = errors.New("invalid filter expression")
)

// Spatial index errors.
var (
	// ErrStaleIndex is returned when a stored index does not match the
	// current point count or extents of the data file.
	ErrStaleIndex = errors.New("spatial index out of date")

	// ErrIndexChecksum is returned when the sidecar cell table fails its
	// integrity check.
	ErrIndexChecksum = errors.New("spatial index checksum mismatch")

	// ErrIndexBounds is returned when the indexed file has a degenerate
	// X/Y extent that cannot be partitioned into cells.
	ErrIndexBounds = errors.New("input file has inappropriate bounds")

	// ErrPointCountMismatch is returned when reloading binned points from
	// the temp file yields a different count than was written.
	ErrPointCountMismatch = errors.New("point checksum error")
)

// Miscellaneous.
var (
	// ErrConfiguration is returned when a requested feature is not
	// available in this build.
	ErrConfiguration = errors.New("feature not configured")

	// ErrNotImplemented is returned by reserved operations.
	ErrNotImplemented = errors.New("not yet implemented")
)
