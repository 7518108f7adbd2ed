package ip

import (
	"sync"

	"github.com/ringfence/pfw/pkg/common"
	"github.com/ringfence/pfw/pkg/pferr"
)

const (
	// MaxReassembledFragmentSize bounds a datagram after reassembly
	// (spec.md §3, MAX_REASSEMBLED_FRAGMENT_SIZE).
	MaxReassembledFragmentSize = 65535

	// SupportedFragments is the number of reassembly slots held per
	// direction (spec.md §3, SUPPORTED_FRAGMENTS).
	SupportedFragments = 64

	// staleAfterTicks is the number of Add() calls after which an
	// accumulating entry is considered stale and eligible for reuse
	// (spec.md §4.2 policy (c)). The "timestamp" is a monotonic counter,
	// not wall-clock time, per spec.md §5.
	staleAfterTicks = 4096
)

// FragmentKey uniquely identifies one in-flight fragmented datagram within
// one direction (spec.md §3).
type FragmentKey struct {
	Identification uint16
	Source         common.IPv4Address
	Destination    common.IPv4Address
}

type byteRange struct {
	start, end int // [start, end) in payload-space bytes, header excluded
}

// FragmentEntry holds one partially (or fully) received fragmented
// datagram. The zero value is an empty entry.
type FragmentEntry struct {
	started bool
	key     FragmentKey

	haveHeader bool
	header     [MaxHeaderLength]byte
	headerLen  int

	haveTotal       bool
	totalPayloadLen int

	payload [MaxReassembledFragmentSize]byte
	ranges  []byteRange

	lastTouch uint64
}

func (e *FragmentEntry) reset() {
	e.started = false
	e.key = FragmentKey{}
	e.haveHeader = false
	e.headerLen = 0
	e.haveTotal = false
	e.totalPayloadLen = 0
	e.ranges = e.ranges[:0]
	e.lastTouch = 0
}

// addRange merges [start, end) into the entry's filled-range list,
// keeping it sorted and coalesced. Overlapping fragments are accepted:
// the most recently written bytes win in payload (the copy into
// e.payload always happens), and range bookkeeping here only tracks
// byte coverage, which is unaffected by write order.
func (e *FragmentEntry) addRange(start, end int) {
	merged := make([]byteRange, 0, len(e.ranges)+1)
	inserted := false
	for _, r := range e.ranges {
		if inserted || r.end < start {
			merged = append(merged, r)
			continue
		}
		if r.start > end {
			merged = append(merged, byteRange{start, end})
			merged = append(merged, r)
			inserted = true
			continue
		}
		// Overlaps or touches [start, end): fold it in.
		if r.start < start {
			start = r.start
		}
		if r.end > end {
			end = r.end
		}
	}
	if !inserted {
		merged = append(merged, byteRange{start, end})
	}
	e.ranges = merged
}

// coversUpTo reports whether the filled ranges cover [0, n) contiguously.
func (e *FragmentEntry) coversUpTo(n int) bool {
	if n == 0 {
		return true
	}
	if len(e.ranges) == 0 {
		return false
	}
	r := e.ranges[0]
	return r.start == 0 && r.end >= n
}

// FragmentTable is a fixed-size pool of FragmentEntry slots, one per
// direction (spec.md §3, §4.2).
type FragmentTable struct {
	mu      sync.Mutex
	entries [SupportedFragments]FragmentEntry
	clock   uint64
}

// NewFragmentTable creates an empty fragment reassembly table.
func NewFragmentTable() *FragmentTable {
	return &FragmentTable{}
}

// lookup implements the spec.md §4.2 policy, in order:
// (a) an entry already holding key, (b) an empty entry, (c) a stale
// entry (reset and reused), (d) none. Must be called with t.mu held.
func (t *FragmentTable) lookup(key FragmentKey) *FragmentEntry {
	for i := range t.entries {
		e := &t.entries[i]
		if e.started && e.key == key {
			return e
		}
	}
	for i := range t.entries {
		e := &t.entries[i]
		if !e.started {
			return e
		}
	}
	for i := range t.entries {
		e := &t.entries[i]
		if e.started && t.clock-e.lastTouch > staleAfterTicks {
			e.reset()
			return e
		}
	}
	return nil
}

// Add implements the assembly protocol of spec.md §4.2 for one arriving
// fragment. header is this fragment's own IP header (kept only from the
// offset-0 fragment);
// fragOffsetBytes is the fragment offset field already multiplied by 8;
// payload is the fragment's IP payload (UDP datagram bytes, header
// stripped). moreFragments is the fragment's MF flag.
//
// On completion it returns the assembled datagram (IP header + payload)
// with no error. Otherwise it returns (nil, pferr.Fragmented) if more
// fragments are still needed, or one of pferr.FragmentSetFull /
// pferr.TooManyFragments on the corresponding failure.
func (t *FragmentTable) Add(key FragmentKey, header []byte, fragOffsetBytes int, payload []byte, moreFragments bool) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clock++

	e := t.lookup(key)
	if e == nil {
		return nil, pferr.FragmentSetFull
	}

	if !e.started {
		e.started = true
		e.key = key
	}
	e.lastTouch = t.clock

	end := fragOffsetBytes + len(payload)
	if end > len(e.payload) {
		e.reset()
		return nil, pferr.TooManyFragments
	}

	if fragOffsetBytes == 0 {
		if len(header) > len(e.header) {
			e.reset()
			return nil, pferr.TooManyFragments
		}
		copy(e.header[:], header)
		e.headerLen = len(header)
		e.haveHeader = true
	}

	copy(e.payload[fragOffsetBytes:end], payload)
	e.addRange(fragOffsetBytes, end)

	if !moreFragments {
		e.totalPayloadLen = end
		e.haveTotal = true
	}

	if e.haveHeader && e.haveTotal && e.coversUpTo(e.totalPayloadLen) {
		total := e.headerLen + e.totalPayloadLen
		if total > MaxReassembledFragmentSize {
			e.reset()
			return nil, pferr.TooManyFragments
		}

		assembled := make([]byte, total)
		copy(assembled, e.header[:e.headerLen])
		copy(assembled[e.headerLen:], e.payload[:e.totalPayloadLen])

		assembled[2] = byte(total >> 8)
		assembled[3] = byte(total)
		// The datagram is whole again: clear MF and fragment offset.
		assembled[6] = 0
		assembled[7] = 0
		assembled[10] = 0
		assembled[11] = 0
		checksum := common.CalculateChecksum(assembled[:e.headerLen])
		assembled[10] = byte(checksum >> 8)
		assembled[11] = byte(checksum)

		e.reset()
		return assembled, nil
	}

	return nil, pferr.Fragmented
}
