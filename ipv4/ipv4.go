// Package ipv4 provides a minimal IPv4 layer on the netstack core:
// interface addressing, header codec, upper-protocol demux and
// unicast output. Fragmentation, options and routing beyond the
// registered interfaces are not supported.
package ipv4

import (
	"fmt"
	"sync/atomic"

	"github.com/ehrlich-b/go-netstack"
)

// Handler processes one inbound datagram payload in the softirq
// context. iface is the interface the datagram arrived on; the bytes
// are valid only for the duration of the call.
type Handler func(payload []byte, src, dst Addr, iface *Iface)

// Protocol is the IPv4 layer. Register it with a stack once during
// setup, then bind interfaces and upper protocols to it.
type Protocol struct {
	stack  *netstack.Stack
	logger netstack.Logger

	ifaces []*Iface
	upper  map[Proto]Handler

	idGen atomic.Uint32
}

// Register creates the IPv4 layer and registers it with the stack's
// protocol table under the IPv4 EtherType. Must be called before
// Stack.Run.
func Register(s *netstack.Stack) (*Protocol, error) {
	p := &Protocol{
		stack:  s,
		logger: s.Logger(),
		upper:  make(map[Proto]Handler),
	}
	if err := s.RegisterProtocol(netstack.TypeIPv4, p.input); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterIface binds iface to dev and adds it to the layer's
// interface list. Must be called before Stack.Run.
func (p *Protocol) RegisterIface(dev *netstack.Device, iface *Iface) error {
	if err := dev.AddInterface(iface); err != nil {
		return err
	}
	p.ifaces = append(p.ifaces, iface)
	p.logger.Printf("registered iface, dev=%s, %s", dev.Name(), iface)
	return nil
}

// RegisterProtocol adds an upper-layer protocol handler (ICMP, UDP,
// TCP). Must be called before Stack.Run.
func (p *Protocol) RegisterProtocol(proto Proto, handler Handler) error {
	if _, dup := p.upper[proto]; dup {
		return netstack.NewError("ip_register_protocol", netstack.CodeAlreadyRegistered,
			fmt.Sprintf("proto=%d", proto))
	}
	p.upper[proto] = handler
	p.logger.Printf("registered upper protocol, proto=%d", proto)
	return nil
}

// input is the netstack protocol handler: parse, filter to our
// addresses, demux to the upper protocol. Malformed datagrams are
// logged and dropped, datagrams not addressed to the interface are
// dropped silently; nothing propagates.
func (p *Protocol) input(data []byte, dev *netstack.Device) {
	hdr, payload, err := ParseHeader(data)
	if err != nil {
		p.logger.Errorf("ip input drop, dev=%s: %v", dev.Name(), err)
		return
	}
	iface, _ := dev.Interface(netstack.FamilyIPv4).(*Iface)
	if iface == nil {
		p.logger.Debugf("ip input drop, dev=%s: no ipv4 iface", dev.Name())
		return
	}
	if hdr.Dst != iface.unicast && hdr.Dst != iface.broadcast && hdr.Dst != AddrBroadcast {
		// not addressed to us; no forwarding
		return
	}
	p.logger.Debugf("ip input, dev=%s, proto=%d, %s => %s, len=%d",
		dev.Name(), hdr.Proto, hdr.Src, hdr.Dst, hdr.TotalLen)
	handler, ok := p.upper[hdr.Proto]
	if !ok {
		p.logger.Debugf("ip input drop: unsupported protocol, proto=%d", hdr.Proto)
		return
	}
	handler(payload, hdr.Src, hdr.Dst, iface)
}

// Output emits one datagram from src to dst. The interface is chosen
// by matching src against the registered unicast addresses; there is
// no routing table. The link-layer destination is left to the driver
// (ARP is an external collaborator).
func (p *Protocol) Output(proto Proto, payload []byte, src, dst Addr) error {
	iface := p.ifaceByAddr(src)
	if iface == nil {
		return netstack.NewError("ip_output", netstack.CodeNoRoute,
			fmt.Sprintf("src=%s", src))
	}
	dev := iface.Device()
	total := HeaderLenMin + len(payload)
	if total > dev.MTU {
		return netstack.NewDeviceError("ip_output", dev.Name(), netstack.CodeTooLong,
			fmt.Sprintf("len=%d, mtu=%d", total, dev.MTU))
	}
	hdr := &Header{
		TotalLen: total,
		ID:       uint16(p.idGen.Add(1)),
		TTL:      DefaultTTL,
		Proto:    proto,
		Src:      src,
		Dst:      dst,
	}
	datagram := append(hdr.Marshal(), payload...)
	p.logger.Debugf("ip output, dev=%s, proto=%d, %s => %s, len=%d",
		dev.Name(), proto, src, dst, total)
	return dev.Output(netstack.TypeIPv4, datagram, nil)
}

// Ifaces returns the registered interfaces.
func (p *Protocol) Ifaces() []*Iface {
	return append([]*Iface(nil), p.ifaces...)
}

func (p *Protocol) ifaceByAddr(addr Addr) *Iface {
	for _, iface := range p.ifaces {
		if iface.unicast == addr {
			return iface
		}
	}
	return nil
}
