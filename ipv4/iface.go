package ipv4

import (
	"fmt"

	"github.com/ehrlich-b/go-netstack"
)

// Iface is an IPv4 binding to a device: the unicast address, netmask,
// and the derived directed-broadcast address.
type Iface struct {
	netstack.IfaceBase
	unicast   Addr
	netmask   Addr
	broadcast Addr
}

// NewIface creates an interface from dotted-quad unicast and netmask
// strings. The broadcast address is derived from the two.
func NewIface(unicast, netmask string) (*Iface, error) {
	u, err := ParseAddr(unicast)
	if err != nil {
		return nil, err
	}
	m, err := ParseAddr(netmask)
	if err != nil {
		return nil, err
	}
	return &Iface{
		unicast:   u,
		netmask:   m,
		broadcast: u&m | ^m,
	}, nil
}

// Family implements the netstack.Interface contract.
func (i *Iface) Family() netstack.Family { return netstack.FamilyIPv4 }

// Unicast returns the interface's unicast address.
func (i *Iface) Unicast() Addr { return i.unicast }

// Netmask returns the interface's netmask.
func (i *Iface) Netmask() Addr { return i.netmask }

// Broadcast returns the interface's directed-broadcast address.
func (i *Iface) Broadcast() Addr { return i.broadcast }

func (i *Iface) String() string {
	return fmt.Sprintf("%s netmask=%s", i.unicast, i.netmask)
}

var _ netstack.Interface = (*Iface)(nil)
