// Package pferr defines the error taxonomy shared by the firewall pipeline.
//
// All errors here are locally originated and confined to the frame
// currently being processed: they never corrupt shared state, and a
// pipeline invocation reports at most one of them to its caller.
package pferr

import "errors"

var (
	// Malformed means a parse or checksum failure; the frame is dropped
	// silently from the caller's point of view.
	Malformed = errors.New("pfw: malformed frame")

	// Fragmented means a fragment was accepted into the reassembly table
	// but the datagram is not yet complete. No frames are emitted this
	// call; the fragment is retained for a later call to complete it.
	Fragmented = errors.New("pfw: fragment accepted, datagram incomplete")

	// FragmentSetFull means no reassembly slot was available for a new
	// fragmented datagram; the current fragment is dropped.
	FragmentSetFull = errors.New("pfw: fragment table full")

	// TooManyFragments means the assembled datagram would exceed the
	// reassembly buffer; assembly state for that key is reset.
	TooManyFragments = errors.New("pfw: reassembled datagram too large")

	// Unrecognized means a non-allowlisted IP protocol; the packet is
	// dropped.
	Unrecognized = errors.New("pfw: unrecognized IP protocol")

	// Dropped means the policy callout rejected the packet.
	Dropped = errors.New("pfw: dropped by policy")
)
