// Package icmp implements the ICMP responder: the smallest complete
// protocol module on the netstack core. It answers echo requests with
// echo replies sourced from the receiving interface's unicast address
// and logs everything else.
package icmp

import (
	"github.com/ehrlich-b/go-netstack/internal/logging"
	"github.com/ehrlich-b/go-netstack/ipv4"
)

// Responder is the ICMP protocol module.
type Responder struct {
	ip     *ipv4.Protocol
	logger *logging.Logger
}

// Register creates the responder and registers it with the IPv4
// layer. Must be called before Stack.Run.
func Register(ip *ipv4.Protocol) (*Responder, error) {
	r := &Responder{
		ip:     ip,
		logger: logging.Default(),
	}
	if err := ip.RegisterProtocol(ipv4.ProtoICMP, r.input); err != nil {
		return nil, err
	}
	return r, nil
}

// input handles one inbound ICMP message. Short packets, checksum
// mismatches and unhandled types are logged and dropped; only an echo
// request produces output.
func (r *Responder) input(data []byte, src, dst ipv4.Addr, iface *ipv4.Iface) {
	msg, err := Parse(data)
	if err != nil {
		r.logger.Errorf("icmp input drop, %s => %s: %v", src, dst, err)
		return
	}
	r.logger.Debugf("icmp input, %s => %s, type=%d (%s), code=%d, len=%d",
		src, dst, msg.Type, TypeString(msg.Type), msg.Code, len(data))
	switch msg.Type {
	case TypeEcho:
		// Reply with the address of the receiving interface; id, seq
		// and payload are echoed verbatim.
		err := r.Output(TypeEchoReply, msg.Code, msg.Rest, msg.Payload, iface.Unicast(), src)
		if err != nil {
			r.logger.Errorf("icmp echo reply failure, %s => %s: %v", iface.Unicast(), src, err)
		}
	default:
		r.logger.Debugf("icmp ignored, type=%d (%s)", msg.Type, TypeString(msg.Type))
	}
}

// Output assembles one ICMP message, checksums it, and hands it to the
// IPv4 layer. Errors from the IP layer propagate to the caller.
func (r *Responder) Output(typ, code uint8, rest uint32, payload []byte, src, dst ipv4.Addr) error {
	msg := &Message{
		Type:    typ,
		Code:    code,
		Rest:    rest,
		Payload: payload,
	}
	b := msg.Marshal()
	r.logger.Debugf("icmp output, %s => %s, type=%d (%s), len=%d",
		src, dst, typ, TypeString(typ), len(b))
	return r.ip.Output(ipv4.ProtoICMP, b, src, dst)
}
