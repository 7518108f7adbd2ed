// Command pfwd runs the firewall's ingress pipeline against a live
// interface and logs what would be delivered to the trusted client.
//
// The client and policy endpoints are external collaborators (spec.md §1)
// with no CLI surface of their own; this binary wires the parts that are
// in scope — the driver link and the ingress pipeline — and stands in a
// trivial accept-all policy and a hex-dump in place of the real client.
package main

import (
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ringfence/pfw/pkg/common"
	"github.com/ringfence/pfw/pkg/driverlink"
	"github.com/ringfence/pfw/pkg/ip"
	"github.com/ringfence/pfw/pkg/pipeline"
	"github.com/ringfence/pfw/pkg/queue"
)

func main() {
	iface := flag.String("iface", "", "network interface to bind (requires CAP_NET_RAW)")
	mtu := flag.Int("mtu", ip.DefaultMTUUDP, "IPv4 fragmenter chunk size in bytes, must be a multiple of 8")
	queueCap := flag.Int("queue-capacity", queue.DefaultMaxEnqueuedPackets, "outbound FrameQueue capacity")
	noMACFilter := flag.Bool("no-mac-filter", false, "disable the ingress unicast MAC filter")
	flag.Parse()

	logger := log.New(os.Stderr, "pfwd: ", log.LstdFlags)

	if *iface == "" {
		logger.Fatal("-iface is required")
	}

	link, err := driverlink.Open(*iface)
	if err != nil {
		logger.Fatalf("open interface: %v", err)
	}
	defer link.Close()

	fragmenter, err := ip.NewFragmenter(*mtu)
	if err != nil {
		logger.Fatalf("configure fragmenter: %v", err)
	}

	ingressQueue := queue.NewFrameQueue(*queueCap)
	var policyLock sync.Mutex

	ingress := pipeline.New(pipeline.Config{
		LocalMAC:   link.LocalMAC(),
		FilterMAC:  !*noMACFilter,
		Frags:      ip.NewFragmentTable(),
		Fragmenter: fragmenter,
		Outbound:   ingressQueue,
		PolicyLock: &policyLock,
		Decide:     acceptAll,
		Logger:     logger,
	})

	var driverLock sync.Mutex
	boundary := queue.NewDriverBoundary(queue.DefaultBufferSize, &driverLock, nil, link.Recv)

	logger.Printf("listening on %s, local MAC %s, MTU_UDP=%d", link.Name(), link.LocalMAC(), *mtu)

	for {
		frames, err := boundary.Recv()
		if err != nil {
			logger.Printf("driver recv: %v", err)
			continue
		}
		for _, frame := range frames {
			if err := ingress.Process(frame); err != nil {
				logger.Printf("pipeline: %v", err)
			}
			queue.ReleaseFrame(frame)
		}
		for ingressQueue.Len() > 0 {
			out, ok := ingressQueue.Pop()
			if !ok {
				break
			}
			logger.Printf("to client, %d bytes:\n%s", len(out), common.HexDump(out))
		}
		if len(frames) == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// acceptAll is a placeholder policy decision function. The real policy
// callout (spec.md §4.4, §6) is an external collaborator supplied by the
// client; this binary has no policy surface of its own.
func acceptAll(srcAddr common.IPv4Address, srcPort uint16, dstAddr common.IPv4Address, dstPort uint16, payloadLen uint16, payload []byte, capacity uint16) int {
	return int(payloadLen)
}
