package section

import (
	"github.com/geodatakit/hspc/endian"
	"github.com/geodatakit/hspc/errs"
)

// BlockDesc describes the field table that follows it: how many field
// definitions are serialized, how they are encoded, and whether band and
// waveform data live inside this file.
type BlockDesc struct {
	FieldCount        uint32 // byte offset 0-3
	FieldDefEncoding  uint32 // byte offset 4-7
	CharacterEncoding uint16 // byte offset 8-9, ANSI code page of field names

	// WaveformDescCount is the number of WaveformPacketDesc records
	// serialized after the field table.
	WaveformDescCount uint16 // byte offset 10-11

	// Options packs the storage locality bits, see BlockOpt constants.
	Options  uint8    // byte offset 12
	Reserved [35]byte // byte offset 13-47
}

// NewBlockDesc returns a descriptor with band and waveform data marked
// internal, the defaults for single-file datasets.
func NewBlockDesc() *BlockDesc {
	return &BlockDesc{
		Options: BlockOptInternalBandData | BlockOptInternalWaveformData,
	}
}

// InternalBandData reports whether band values are stored inside the point
// records of this file.
func (d *BlockDesc) InternalBandData() bool {
	return d.Options&BlockOptInternalBandData != 0
}

// SetInternalBandData sets or clears the internal band data bit.
func (d *BlockDesc) SetInternalBandData(internal bool) {
	if internal {
		d.Options |= BlockOptInternalBandData
	} else {
		d.Options &^= BlockOptInternalBandData
	}
}

// InternalWaveformData reports whether waveform payloads are stored inside
// this file rather than in a companion .hsw file.
func (d *BlockDesc) InternalWaveformData() bool {
	return d.Options&BlockOptInternalWaveformData != 0
}

// SetInternalWaveformData sets or clears the internal waveform data bit.
func (d *BlockDesc) SetInternalWaveformData(internal bool) {
	if internal {
		d.Options |= BlockOptInternalWaveformData
	} else {
		d.Options &^= BlockOptInternalWaveformData
	}
}

// Parse decodes the descriptor from a byte slice of exactly BlockDescSize
// bytes.
func (d *BlockDesc) Parse(data []byte) error {
	if len(data) != BlockDescSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	d.FieldCount = engine.Uint32(data[0:4])
	d.FieldDefEncoding = engine.Uint32(data[4:8])
	d.CharacterEncoding = engine.Uint16(data[8:10])
	d.WaveformDescCount = engine.Uint16(data[10:12])
	d.Options = data[12]
	copy(d.Reserved[:], data[13:48])

	return nil
}

// Bytes serializes the descriptor into a new BlockDescSize byte slice.
func (d *BlockDesc) Bytes() []byte {
	b := make([]byte, BlockDescSize)
	engine := endian.GetLittleEndianEngine()

	engine.PutUint32(b[0:4], d.FieldCount)
	engine.PutUint32(b[4:8], d.FieldDefEncoding)
	engine.PutUint16(b[8:10], d.CharacterEncoding)
	engine.PutUint16(b[10:12], d.WaveformDescCount)
	b[12] = d.Options
	copy(b[13:48], d.Reserved[:])

	return b
}
