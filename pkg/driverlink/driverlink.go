// Package driverlink is the Ethernet driver boundary: an AF_PACKET raw
// socket bound to one interface, with a kernel-level BPF pre-filter that
// only hands the firewall frames it is equipped to dispatch (spec.md §3,
// §4.5 step 3 — IPv4 and ARP EtherTypes; everything else is dropped before
// it ever reaches userspace).
package driverlink

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/ringfence/pfw/pkg/common"
	"github.com/ringfence/pfw/pkg/ethernet"
)

// Link is a raw-socket Ethernet driver for one network interface.
type Link struct {
	name       string
	fd         int
	macAddress common.MACAddress
	index      int
}

// acceptedEtherTypes are the EtherTypes the BPF pre-filter admits. Anything
// else is rejected at the kernel level rather than copied into userspace
// and dropped by the pipeline's EtherType dispatch (spec.md §4.5 step 3).
var acceptedEtherTypes = []common.EtherType{common.EtherTypeIPv4, common.EtherTypeARP}

// Open binds a raw AF_PACKET socket to ifname and attaches the EtherType
// pre-filter. Requires CAP_NET_RAW (root on most systems).
func Open(ifname string) (*Link, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("driverlink: interface %s: %w", ifname, err)
	}

	if len(iface.HardwareAddr) != 6 {
		return nil, fmt.Errorf("driverlink: interface %s has no 6-byte MAC", ifname)
	}
	var mac common.MACAddress
	copy(mac[:], iface.HardwareAddr)

	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, int(htons(syscall.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("driverlink: raw socket: %w (need CAP_NET_RAW)", err)
	}

	addr := syscall.SockaddrLinklayer{
		Protocol: htons(syscall.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := syscall.Bind(fd, &addr); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("driverlink: bind to %s: %w", ifname, err)
	}

	if err := attachEtherTypeFilter(fd, acceptedEtherTypes); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("driverlink: attach BPF filter: %w", err)
	}

	return &Link{name: ifname, fd: fd, macAddress: mac, index: iface.Index}, nil
}

// Close releases the underlying socket.
func (l *Link) Close() error {
	if l.fd >= 0 {
		return syscall.Close(l.fd)
	}
	return nil
}

// Name returns the bound interface's name.
func (l *Link) Name() string { return l.name }

// LocalMAC returns the bound interface's hardware address, used by the
// pipeline's ingress MAC filter (spec.md §4.5 step 2).
func (l *Link) LocalMAC() common.MACAddress { return l.macAddress }

// Recv implements the rx half of the DriverBoundary contract
// (pkg/queue.DriverBoundary): it fills buf with one frame and reports a
// three-way status. There is no kernel-side queue depth signal available
// over a raw socket, so Recv always reports RxLast for a successful read.
func (l *Link) Recv(buf []byte) (int, int32) {
	n, _, err := syscall.Recvfrom(l.fd, buf, syscall.MSG_DONTWAIT)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return 0, -1
		}
		return 0, -1
	}
	return n, 0
}

// Send implements the tx half of the DriverBoundary contract. n is the
// number of valid bytes at the front of the shared buffer; the frame's
// destination MAC is parsed back out to address the socket.
func (l *Link) Send(buf []byte, n int) int32 {
	if n < ethernet.HeaderSize {
		return -1
	}

	addr := syscall.SockaddrLinklayer{
		Protocol: htons(syscall.ETH_P_ALL),
		Ifindex:  l.index,
		Halen:    6,
	}
	copy(addr.Addr[:], buf[0:6])

	if err := syscall.Sendto(l.fd, buf[:n], 0, &addr); err != nil {
		return -1
	}
	return 0
}

// attachEtherTypeFilter assembles a classic BPF program that accepts only
// the given EtherTypes and installs it with SO_ATTACH_FILTER, so the
// kernel discards everything else before it is copied to userspace.
func attachEtherTypeFilter(fd int, accepted []common.EtherType) error {
	var insns []bpf.Instruction
	insns = append(insns, bpf.LoadAbsolute{Off: 12, Size: 2})

	for i, et := range accepted {
		// Last EtherType in the list: fall through to reject on mismatch.
		skipTrue := uint8(len(accepted) - i)
		insns = append(insns, bpf.JumpIf{
			Cond:      bpf.JumpEqual,
			Val:       uint32(et),
			SkipTrue:  skipTrue,
			SkipFalse: 0,
		})
	}
	insns = append(insns, bpf.RetConstant{Val: 0})
	for range accepted {
		insns = append(insns, bpf.RetConstant{Val: 0xffff})
	}

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return fmt.Errorf("assemble BPF program: %w", err)
	}

	sockFilter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		sockFilter[i] = unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(sockFilter)),
		Filter: &sockFilter[0],
	}

	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog)
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// ListInterfaces returns candidate interface names for driverlink.Open,
// skipping loopback and down interfaces.
func ListInterfaces() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		names = append(names, iface.Name)
	}
	return names, nil
}
