package endian

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCheckEndianness(t *testing.T) {
	require := require.New(t)

	result := CheckEndianness()

	var testValue uint16 = 0x0102
	testBytes := (*[2]byte)(unsafe.Pointer(&testValue))

	switch testBytes[0] {
	case 0x01:
		require.Equal(binary.BigEndian, result)
	case 0x02:
		require.Equal(binary.LittleEndian, result)
	}
}

func TestGetEngines(t *testing.T) {
	require.Equal(t, binary.LittleEndian, GetLittleEndianEngine())
	require.Equal(t, binary.BigEndian, GetBigEndianEngine())
}

func TestEngineRoundTrip(t *testing.T) {
	engine := GetLittleEndianEngine()

	buf := make([]byte, 8)
	engine.PutUint64(buf, 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), engine.Uint64(buf))
	require.Equal(t, byte(0x08), buf[0])

	appended := engine.AppendUint32(nil, 0xCAFEBABE)
	require.Len(t, appended, 4)
	require.Equal(t, uint32(0xCAFEBABE), engine.Uint32(appended))
}
