package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/format"
)

func testPayload() []byte {
	// Repetitive waveform-like samples compress under every codec.
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 32)
	}

	return payload
}

func TestCodecsRoundTrip(t *testing.T) {
	payload := testPayload()

	for _, ct := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.True(t, bytes.Equal(payload, restored))

			if ct != format.CompressionNone {
				require.Less(t, len(compressed), len(payload))
			}
		})
	}
}

func TestCodecsEmptyInput(t *testing.T) {
	for _, ct := range []format.CompressionType{
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		codec, err := GetCodec(ct)
		require.NoError(t, err)

		out, err := codec.Compress(nil)
		require.NoError(t, err)
		require.Empty(t, out)

		out, err = codec.Decompress(nil)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

func TestGetCodecUnknown(t *testing.T) {
	_, err := GetCodec(format.CompressionType(0x7F))
	require.Error(t, err)
}
