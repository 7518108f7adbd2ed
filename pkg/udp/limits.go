package udp

// MaxUDPPacketSize and MaxUDPPayloadSize bound post-policy UDP size
// (spec.md §3, MAX_UDP_PACKET_SIZE / MAX_UDP_PAYLOAD_SIZE). They are
// deliberately smaller than the protocol's theoretical 65535-byte ceiling
// to leave room for the IPv4 header in the largest packet this firewall
// will ever reassemble or emit (ip.MaxReassembledFragmentSize).
const (
	MaxUDPPacketSize  = 65507 // 65535 - minimum IPv4 header (20) - UDP header (8)
	MaxUDPPayloadSize = MaxUDPPacketSize - HeaderLength
)
