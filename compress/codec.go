// Package compress provides the payload codecs used for waveform packet
// data and spatial index sidecar payloads.
//
// A waveform packet descriptor and the index sidecar header both carry a
// format.CompressionType byte; GetCodec maps that byte to a Codec. Raw
// point records are never compressed: the header's isCompressed flag is
// recorded but no record codec is defined for it.
package compress

import (
	"fmt"

	"github.com/geodatakit/hspc/format"
)

// Compressor compresses a complete payload.
//
// The input slice is not modified. The compressing codecs return a newly
// allocated slice; the no-op codec returns the input slice itself.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload previously compressed with the matching
// algorithm.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the built-in Codec for the given compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	codec, ok := builtinCodecs[compressionType]
	if !ok {
		return nil, fmt.Errorf("unsupported compression type: %v", compressionType)
	}

	return codec, nil
}
