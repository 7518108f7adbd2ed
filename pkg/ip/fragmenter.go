package ip

import (
	"fmt"
	"sync"

	"github.com/ringfence/pfw/pkg/common"
)

// DefaultMTUUDP is the default chunking unit used by the fragmenter
// (spec.md §3, MTU_UDP). It must be a multiple of 8, the IPv4
// fragmentation constraint on offsets.
const DefaultMTUUDP = 1480

// Fragmenter splits an oversized IPv4/UDP datagram into link-MTU-sized
// fragments (spec.md §4.3, component C).
type Fragmenter struct {
	mtu int

	mu     sync.Mutex
	nextID uint16
}

// NewFragmenter creates a fragmenter chunking at mtu bytes of IPv4
// payload per fragment. mtu must be a positive multiple of 8.
func NewFragmenter(mtu int) (*Fragmenter, error) {
	if mtu <= 0 || mtu%8 != 0 {
		return nil, fmt.Errorf("ip: MTU_UDP must be a positive multiple of 8, got %d", mtu)
	}
	return &Fragmenter{mtu: mtu, nextID: 1}, nil
}

// nextIdentification returns the next value from the monotonic 16-bit
// identification counter. It is intentionally not cryptographically
// random (spec.md §4.3, §9): the host environment has no random source,
// and fragments are already keyed by id+addrs. Wraparound is accepted.
func (f *Fragmenter) nextIdentification() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	return id
}

// Fragment splits udpDatagram (a complete UDP header+payload byte
// sequence) into one or more IPv4 packets whose concatenated UDP content
// equals udpDatagram, per spec.md §4.3's algorithm. ident is the
// identification to use; 0 means "pick a fresh one" when fragmentation is
// actually needed (an unfragmented datagram's id is don't-care and is
// passed through unchanged, even if 0).
func (f *Fragmenter) Fragment(udpDatagram []byte, src, dst common.IPv4Address, ident uint16) ([]*Packet, error) {
	if len(udpDatagram) <= f.mtu {
		return []*Packet{{
			Version:        IPv4Version,
			IHL:            5,
			TTL:            64,
			Protocol:       common.ProtocolUDP,
			Identification: ident,
			Flags:          0,
			FragmentOffset: 0,
			Source:         src,
			Destination:    dst,
			Payload:        udpDatagram,
		}}, nil
	}

	if ident == 0 {
		ident = f.nextIdentification()
	}

	var fragments []*Packet
	offset := 0
	for offset < len(udpDatagram) {
		end := offset + f.mtu
		last := false
		if end >= len(udpDatagram) {
			end = len(udpDatagram)
			last = true
		}

		flags := IPv4Flags(0)
		if !last {
			flags = FlagMoreFragments
		}

		fragments = append(fragments, &Packet{
			Version:        IPv4Version,
			IHL:            5,
			TTL:            64,
			Protocol:       common.ProtocolUDP,
			Identification: ident,
			Flags:          flags,
			FragmentOffset: uint16(offset / 8),
			Source:         src,
			Destination:    dst,
			Payload:        udpDatagram[offset:end],
		})

		offset = end
	}

	return fragments, nil
}
