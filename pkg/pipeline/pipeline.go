// Package pipeline implements the per-direction frame state machine
// (spec.md §4.5, component E): Ethernet demux, MAC filter, EtherType
// dispatch, the IPv4 sub-pipeline (CRC shave, fragment reassembly, policy,
// re-fragmentation), and enqueue onto the outbound FrameQueue.
package pipeline

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ringfence/pfw/pkg/common"
	"github.com/ringfence/pfw/pkg/ethernet"
	"github.com/ringfence/pfw/pkg/ip"
	"github.com/ringfence/pfw/pkg/pferr"
	"github.com/ringfence/pfw/pkg/policy"
	"github.com/ringfence/pfw/pkg/queue"
	"github.com/ringfence/pfw/pkg/udp"
)

// Pipeline holds one direction's state: its fragment table, outbound
// queue, and policy callout. Ingress and egress each get their own
// Pipeline, sharing no state (spec.md §5).
type Pipeline struct {
	localMAC  common.MACAddress
	filterMAC bool

	frags      *ip.FragmentTable
	fragmenter *ip.Fragmenter
	outbound   *queue.FrameQueue

	policyLock sync.Locker
	decide     policy.Decider

	logger *log.Logger
}

// Config collects the per-direction dependencies a Pipeline needs.
// FilterMAC should be true for the ingress direction and false for egress
// (spec.md §4.5 step 2 only applies on ingress). Logger may be nil; it is
// used for diagnostics only and never consulted on the accept path.
type Config struct {
	LocalMAC   common.MACAddress
	FilterMAC  bool
	Frags      *ip.FragmentTable
	Fragmenter *ip.Fragmenter
	Outbound   *queue.FrameQueue
	PolicyLock sync.Locker
	Decide     policy.Decider
	Logger     *log.Logger
}

// New constructs a Pipeline for one direction.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		localMAC:   cfg.LocalMAC,
		filterMAC:  cfg.FilterMAC,
		frags:      cfg.Frags,
		fragmenter: cfg.Fragmenter,
		outbound:   cfg.Outbound,
		policyLock: cfg.PolicyLock,
		decide:     cfg.Decide,
		logger:     cfg.Logger,
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

// Process runs one raw Ethernet frame through the full state machine. It
// returns nil when frames were enqueued and for silent drops (MAC filter,
// IPv6, unknown EtherType). A policy rejection returns pferr.Dropped, an
// incomplete reassembly pferr.Fragmented, and the other failures one of the
// remaining pferr errors. Errors are informational only — the caller is
// expected to log them, not retry.
func (p *Pipeline) Process(raw []byte) error {
	frame, err := ethernet.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", pferr.Malformed, err)
	}

	if p.filterMAC && !frame.MatchesLocal(p.localMAC) {
		p.logf("pipeline: dropping frame from %s, destination %s not local", frame.Source, frame.Destination)
		return nil
	}

	switch frame.EtherType {
	case common.EtherTypeARP:
		p.emitFrame(frame)
		return nil
	case common.EtherTypeIPv6:
		return nil
	case common.EtherTypeIPv4:
		return p.processIPv4(frame)
	default:
		return nil
	}
}

func (p *Pipeline) processIPv4(frame *ethernet.Frame) error {
	payload := ip.ShaveCRC(frame.Payload)

	pkt, err := ip.Parse(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", pferr.Malformed, err)
	}
	if !pkt.VerifyChecksum() {
		return fmt.Errorf("%w: bad IPv4 header checksum", pferr.Malformed)
	}

	datagram := pkt
	if pkt.IsFragment() && pkt.Protocol == common.ProtocolUDP {
		headerLen := int(pkt.IHL) * 4
		key := ip.FragmentKey{
			Identification: pkt.Identification,
			Source:         pkt.Source,
			Destination:    pkt.Destination,
		}
		more := pkt.Flags&ip.FlagMoreFragments != 0
		assembled, err := p.frags.Add(key, payload[:headerLen], int(pkt.FragmentOffset)*8, pkt.Payload, more)
		if err != nil {
			if errors.Is(err, pferr.Fragmented) {
				p.logf("pipeline: fragment accepted, datagram %v incomplete", key)
			}
			return err
		}
		datagram, err = ip.Parse(assembled)
		if err != nil {
			return fmt.Errorf("%w: %v", pferr.Malformed, err)
		}
	}

	switch datagram.Protocol {
	case common.ProtocolICMP, common.ProtocolIGMP:
		return p.emitIPv4(frame, datagram)
	case common.ProtocolUDP:
		return p.processUDP(frame, datagram)
	default:
		return pferr.Unrecognized
	}
}

func (p *Pipeline) processUDP(frame *ethernet.Frame, pkt *ip.Packet) error {
	datagram, err := udp.Parse(pkt.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", pferr.Malformed, err)
	}

	accepted, err := policy.Invoke(p.policyLock, p.decide, pkt.Source, datagram.SourcePort, pkt.Destination, datagram.DestinationPort, datagram.Data)
	if err != nil {
		return err
	}

	rebuilt, err := udp.Rebuild(datagram.SourcePort, datagram.DestinationPort, accepted, pkt.Source, pkt.Destination)
	if err != nil {
		return fmt.Errorf("%w: %v", pferr.Malformed, err)
	}

	fragments, err := p.fragmenter.Fragment(rebuilt, pkt.Source, pkt.Destination, pkt.Identification)
	if err != nil {
		return fmt.Errorf("%w: %v", pferr.Malformed, err)
	}

	for _, fragment := range fragments {
		if err := p.emitIPv4(frame, fragment); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) emitIPv4(frame *ethernet.Frame, pkt *ip.Packet) error {
	raw, err := pkt.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", pferr.Malformed, err)
	}
	p.emitFrame(ethernet.NewFrame(frame.Destination, frame.Source, common.EtherTypeIPv4, raw))
	return nil
}

func (p *Pipeline) emitFrame(frame *ethernet.Frame) {
	if !p.outbound.Push(frame.Serialize()) {
		p.logf("pipeline: outbound queue full, dropping frame to %s", frame.Destination)
	}
}
