package udp

import "github.com/ringfence/pfw/pkg/common"

// Rebuild constructs the wire bytes of a UDP packet with the given ports
// and payload, with the checksum recomputed against the IPv4
// pseudo-header formed from srcIP/dstIP. This is the only place payload
// bytes are allowed to change shape after the policy callout has rewritten
// them (spec.md §4.4).
func Rebuild(srcPort, dstPort uint16, payload []byte, srcIP, dstIP common.IPv4Address) ([]byte, error) {
	pkt := NewPacket(srcPort, dstPort, payload)

	checksum, err := pkt.CalculateChecksum(srcIP, dstIP)
	if err != nil {
		return nil, err
	}
	pkt.Checksum = checksum

	return pkt.Serialize()
}
