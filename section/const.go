// Package section implements the byte-exact on-disk structures of the
// HSPCD container: the fixed file header, the block descriptor, serialized
// field definitions and the waveform descriptor records.
//
// Every structure offers a Parse([]byte)/Bytes() pair over a little-endian
// layout with no padding. Higher-level packages compose these sections
// into complete headers and records.
package section

// FileSignature is the 5-byte magic at offset 0 of every container file.
const FileSignature = "HSPCD"

// Format version bounds. Version 1.0 is the only defined value.
const (
	VersionMajorMin = 1
	VersionMajorMax = 1
	VersionMinorMin = 0
	VersionMinorMax = 0
)

// Fixed section sizes in bytes.
const (
	// FileHeaderSize covers the 104-byte preamble plus the 4-byte return
	// count.
	FileHeaderSize = 108

	// BlockDescSize is the fixed block descriptor following the per-return
	// counts.
	BlockDescSize = 48

	// FieldDefinitionBaseSize is the serialized field definition size
	// excluding its three data-type-sized no-data/min/max slots.
	FieldDefinitionBaseSize = 88

	// WaveformPacketDescSize is one serialized waveform descriptor.
	WaveformPacketDescSize = 32

	// WaveformPacketDataDefinitionSize is one per-point, per-band waveform
	// locator inside a point's waveform payload.
	WaveformPacketDataDefinitionSize = 28

	// ReservedBytesAfterFields pads the header between the waveform
	// descriptors and the first point record.
	ReservedBytesAfterFields = 128

	// FieldNameLength and FieldDescriptionLength are the fixed string
	// widths inside a serialized field definition.
	FieldNameLength        = 32
	FieldDescriptionLength = 32
)

// Block descriptor option bits.
const (
	BlockOptInternalBandData     = 0x01 // band values stored inside point records
	BlockOptInternalWaveformData = 0x02 // waveform payloads stored inside this file
)

// Field definition option bits marking which slots carry valid values.
const (
	FieldOptNoData     = 0x01
	FieldOptMin        = 0x02
	FieldOptMax        = 0x04
	FieldOptScale      = 0x08
	FieldOptOffset     = 0x10
	FieldOptSizeInBits = 0x20
)

// ByteOrderLittleEndian is the only byte order emitted by this
// implementation; the byte-order header field records it for readers.
const ByteOrderLittleEndian = 0
