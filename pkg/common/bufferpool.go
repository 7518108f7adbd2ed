package common

import (
	"sync"
)

// BufferPool provides a pool of reusable byte buffers
// to reduce garbage collector pressure and improve performance.
type BufferPool struct {
	pool sync.Pool
}

// Standard buffer sizes
const (
	SmallBufferSize  = 512   // For headers and small packets
	MediumBufferSize = 1500  // MTU size
	LargeBufferSize  = 65536 // Max IP packet size
)

// Global buffer pools for common sizes
var (
	SmallBufferPool  = NewBufferPool(SmallBufferSize)
	MediumBufferPool = NewBufferPool(MediumBufferSize)
	LargeBufferPool  = NewBufferPool(LargeBufferSize)
)

// NewBufferPool creates a new buffer pool with the specified buffer size.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get retrieves a buffer from the pool.
// The buffer should be returned to the pool using Put() when done.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:cap(*bufPtr)]
}

// Put returns a buffer to the pool.
// The buffer may be reused by future Get() calls.
func (bp *BufferPool) Put(buf []byte) {
	// Clear the buffer to avoid retaining references
	for i := range buf {
		buf[i] = 0
	}
	bp.pool.Put(&buf)
}

// GetBuffer returns a buffer of the smallest global pool size that fits
// size, reused by pkg/queue's boundary glue on every frame it copies off
// a driver/client buffer instead of allocating fresh on each call.
// Returns a freshly allocated buffer if size exceeds LargeBufferSize.
func GetBuffer(size int) []byte {
	if size <= SmallBufferSize {
		buf := SmallBufferPool.Get()
		return buf[:size]
	} else if size <= MediumBufferSize {
		buf := MediumBufferPool.Get()
		return buf[:size]
	} else if size <= LargeBufferSize {
		buf := LargeBufferPool.Get()
		return buf[:size]
	}
	// For very large buffers, allocate directly
	return make([]byte, size)
}

// PutBuffer returns a buffer to the appropriate global pool.
func PutBuffer(buf []byte) {
	if buf == nil {
		return
	}

	capacity := cap(buf)
	if capacity == SmallBufferSize {
		SmallBufferPool.Put(buf[:SmallBufferSize])
	} else if capacity == MediumBufferSize {
		MediumBufferPool.Put(buf[:MediumBufferSize])
	} else if capacity == LargeBufferSize {
		LargeBufferPool.Put(buf[:LargeBufferSize])
	}
	// For other sizes, let GC handle it
}
