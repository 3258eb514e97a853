// Package pool provides reusable byte buffers for record serialization and
// index temp-file I/O.
package pool

import "sync"

// Default sizing for pooled buffers. Record buffers are small; index
// flush buffers batch many run entries per write.
const (
	RecordBufferDefaultSize  = 1024
	RecordBufferMaxThreshold = 64 * 1024
	IndexBufferDefaultSize   = 64 * 1024
	IndexBufferMaxThreshold  = 1024 * 1024
)

// ByteBuffer is a growable byte slice with an explicit reset, pooled to
// avoid per-record allocations.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default size.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer, retaining the allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// MustWrite appends data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

var recordBufferPool = sync.Pool{
	New: func() any {
		return NewByteBuffer(RecordBufferDefaultSize)
	},
}

var indexBufferPool = sync.Pool{
	New: func() any {
		return NewByteBuffer(IndexBufferDefaultSize)
	},
}

// GetRecordBuffer obtains a buffer sized for point record serialization.
func GetRecordBuffer() *ByteBuffer {
	bb, _ := recordBufferPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutRecordBuffer returns a record buffer to the pool. Oversized buffers
// are dropped so a single huge record cannot pin memory.
func PutRecordBuffer(bb *ByteBuffer) {
	if cap(bb.B) > RecordBufferMaxThreshold {
		return
	}
	recordBufferPool.Put(bb)
}

// GetIndexBuffer obtains a buffer sized for index temp-file flushes.
func GetIndexBuffer() *ByteBuffer {
	bb, _ := indexBufferPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutIndexBuffer returns an index buffer to the pool.
func PutIndexBuffer(bb *ByteBuffer) {
	if cap(bb.B) > IndexBufferMaxThreshold {
		return
	}
	indexBufferPool.Put(bb)
}
