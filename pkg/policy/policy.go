// Package policy wraps the external UDP policy decision function
// (spec.md §4.4, §6, component D).
package policy

import (
	"sync"

	"github.com/ringfence/pfw/pkg/common"
	"github.com/ringfence/pfw/pkg/pferr"
	"github.com/ringfence/pfw/pkg/udp"
)

// Decider is the external policy callout signature of spec.md §6. The
// callee may read and write payload in place, up to capacity bytes, and
// returns the new payload length (>0, accept) or a non-positive value
// (drop).
type Decider func(srcAddr common.IPv4Address, srcPort uint16, dstAddr common.IPv4Address, dstPort uint16, payloadLen uint16, payload []byte, capacity uint16) int

// Invoke calls decide under lock with a payload buffer pre-grown to
// udp.MaxUDPPayloadSize bytes (spec.md §9: the buffer must be pre-grown,
// not merely pre-reserved, so that reading back the reported length is
// well-defined). On accept it returns the (possibly rewritten) payload
// trimmed to the reported length, clamped to the buffer's capacity. A
// non-positive result or one above udp.MaxUDPPacketSize is a reject, and
// returns pferr.Dropped.
//
// This is the only place payload bytes may change across the whole
// pipeline (spec.md §4.4).
func Invoke(lock sync.Locker, decide Decider, srcAddr common.IPv4Address, srcPort uint16, dstAddr common.IPv4Address, dstPort uint16, payload []byte) ([]byte, error) {
	buf := make([]byte, udp.MaxUDPPayloadSize)
	n := copy(buf, payload)

	lock.Lock()
	result := decide(srcAddr, srcPort, dstAddr, dstPort, uint16(n), buf, uint16(len(buf)))
	lock.Unlock()

	if result <= 0 || result > udp.MaxUDPPacketSize {
		return nil, pferr.Dropped
	}

	newLen := result
	if newLen > len(buf) {
		newLen = len(buf)
	}

	return buf[:newLen], nil
}
