package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer(t *testing.T) {
	bb := NewByteBuffer(16)
	require.Equal(t, 0, bb.Len())

	bb.MustWrite([]byte("hello"))
	require.Equal(t, 5, bb.Len())
	require.Equal(t, []byte("hello"), bb.Bytes())

	bb.Reset()
	require.Equal(t, 0, bb.Len())
}

func TestRecordBufferPool(t *testing.T) {
	bb := GetRecordBuffer()
	bb.MustWrite([]byte{1, 2, 3})
	PutRecordBuffer(bb)

	again := GetRecordBuffer()
	require.Equal(t, 0, again.Len())
	PutRecordBuffer(again)
}

func TestOversizedBufferDropped(t *testing.T) {
	bb := NewByteBuffer(RecordBufferMaxThreshold * 2)
	bb.B = bb.B[:cap(bb.B)]
	// Must not panic; the buffer is silently dropped.
	PutRecordBuffer(bb)
}
