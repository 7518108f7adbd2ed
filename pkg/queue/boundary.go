package queue

import (
	"fmt"
	"sync"

	"github.com/ringfence/pfw/pkg/common"
)

// DefaultBufferSize is the default shared-buffer capacity (spec.md §3,
// BUFFER_SIZE), sized for the largest Ethernet frame this firewall will
// ever copy across a driver/client boundary.
const DefaultBufferSize = 65536

// RxStatus mirrors the three-way status ethdriver_rx returns (spec.md
// §6): NoData means nothing pending, Last means this is the final frame
// available right now, More means additional frames are ready.
type RxStatus int32

const (
	RxNoData RxStatus = -1
	RxLast   RxStatus = 0
	RxMore   RxStatus = 1
)

// DriverBoundary is the glue around the Ethernet driver's shared buffer
// (spec.md §4.6). tx and rx stand in for the host-provided
// ethdriver_tx/ethdriver_rx primitives, which are external collaborators
// (spec.md §1); callers supply concrete ones (e.g. pkg/driverlink's raw
// socket, or a test fake).
type DriverBoundary struct {
	mu  sync.Locker
	buf []byte
	tx  func(n int) int32
	rx  func(buf []byte) (n int, status int32)
}

// NewDriverBoundary creates a driver-side boundary over a buffer of the
// given size, serialized by lock.
func NewDriverBoundary(bufSize int, lock sync.Locker, tx func(n int) int32, rx func(buf []byte) (n int, status int32)) *DriverBoundary {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &DriverBoundary{mu: lock, buf: make([]byte, bufSize), tx: tx, rx: rx}
}

// Buffer returns the boundary's shared buffer, letting a driver-side tx
// closure read back the bytes Send just copied in without a second
// allocation (spec.md §6: ethdriver_tx takes only a length, because the
// driver already shares the buffer it is told to transmit from).
func (d *DriverBoundary) Buffer() []byte {
	return d.buf
}

// Send copies frame into the driver buffer, bounded by the smaller of the
// frame length and the buffer capacity (spec.md §9: shared buffers are
// untrusted on ingress, pre-sized on egress — copies are always bounded),
// then calls the driver's tx primitive.
func (d *DriverBoundary) Send(frame []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := copy(d.buf, frame)
	if status := d.tx(n); status != 0 {
		return fmt.Errorf("driver boundary: tx returned status %d", status)
	}
	return nil
}

// Recv drains every frame currently available from the driver, calling
// rx repeatedly until it reports RxLast or RxNoData, per spec.md §4.6's
// "iterator of frames" contract. Any other status is a host protocol
// violation (spec.md §6) and is reported as an error rather than acted on.
func (d *DriverBoundary) Recv() ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var frames [][]byte
	for {
		n, status := d.rx(d.buf)
		switch RxStatus(status) {
		case RxNoData:
			return frames, nil
		case RxLast:
			frames = append(frames, cloneN(d.buf, n))
			return frames, nil
		case RxMore:
			frames = append(frames, cloneN(d.buf, n))
		default:
			return frames, fmt.Errorf("driver boundary: impossible rx status %d", status)
		}
	}
}

// ClientBoundary is the glue around the client's shared buffer (spec.md
// §4.6). Unlike the driver side there is no out-of-band status: the
// client path is a single bounded byte buffer, copied in and out under
// lock.
type ClientBoundary struct {
	mu  sync.Locker
	buf []byte
}

// NewClientBoundary creates a client-side boundary over buf, serialized
// by lock.
func NewClientBoundary(buf []byte, lock sync.Locker) *ClientBoundary {
	return &ClientBoundary{mu: lock, buf: buf}
}

// Send copies frame into the client buffer, bounded by the buffer's
// capacity, and returns the number of bytes actually copied.
func (c *ClientBoundary) Send(frame []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copy(c.buf, frame)
}

// Recv copies length bytes out of the client buffer, bounded by the
// buffer's capacity.
func (c *ClientBoundary) Recv(length int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if length > len(c.buf) {
		length = len(c.buf)
	}
	return cloneN(c.buf, length)
}

// cloneN copies the first n bytes of buf into a pool-backed buffer (spec.md
// §9: shared buffers are untrusted and must not escape by reference), sized
// from common's global sync.Pool buckets rather than a fresh allocation per
// frame. Callers are expected to return the clone with ReleaseFrame once
// they're done with it.
func cloneN(buf []byte, n int) []byte {
	if n > len(buf) {
		n = len(buf)
	}
	out := common.GetBuffer(n)
	copy(out, buf[:n])
	return out
}

// ReleaseFrame returns a frame previously handed out by DriverBoundary.Recv
// or ClientBoundary.Recv to the shared buffer pool. Safe to call on a frame
// that didn't come from the pool; PutBuffer is a no-op for sizes it doesn't
// recognize.
func ReleaseFrame(frame []byte) {
	common.PutBuffer(frame)
}
