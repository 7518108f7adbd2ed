package ip

import (
	"encoding/binary"

	"github.com/ringfence/pfw/pkg/ethernet"
)

// ShaveCRC implements the CRC-shave heuristic of spec.md §4.1.
//
// Ethernet drivers deliver frames with or without a trailing 4-byte FCS
// depending on the hardware, and the firewall has no reliable way to know
// which it got. If the declared total length (IP header included) plus
// ethernet.FCSSize equals the length of the buffer handed in, the extra
// bytes are assumed to be a trailing FCS and are shaved off before the
// caller reparses. Otherwise the buffer is returned unchanged.
//
// This is a heuristic, not a certainty: a payload whose length happens to
// produce the same arithmetic coincidence will be mis-shaved. spec.md §9
// accepts this as a known limitation rather than a defect to fix here.
func ShaveCRC(data []byte) []byte {
	if len(data) < MinHeaderLength {
		return data
	}

	ihl := data[0] & 0x0F
	headerLength := int(ihl) * 4
	if headerLength < MinHeaderLength || headerLength > len(data) {
		return data
	}

	totalLength := binary.BigEndian.Uint16(data[2:4])

	if int(totalLength)+ethernet.FCSSize == len(data) {
		return data[:len(data)-ethernet.FCSSize]
	}

	return data
}
