package ipv4

import (
	"fmt"
	"strconv"
	"strings"
)

// Addr is an IPv4 address in host byte order.
type Addr uint32

const (
	// AddrAny is the unspecified address (0.0.0.0).
	AddrAny Addr = 0x00000000
	// AddrBroadcast is the limited broadcast address (255.255.255.255).
	AddrBroadcast Addr = 0xffffffff
)

// ParseAddr parses dotted-quad notation.
func ParseAddr(s string) (Addr, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("ipv4: invalid address %q", s)
	}
	var addr Addr
	for _, part := range parts {
		octet, err := strconv.Atoi(part)
		if err != nil || octet < 0 || octet > 255 || (len(part) > 1 && part[0] == '0') {
			return 0, fmt.Errorf("ipv4: invalid address %q", s)
		}
		addr = addr<<8 | Addr(octet)
	}
	return addr, nil
}

// MustParseAddr is ParseAddr for tests and static configuration;
// panics on malformed input.
func MustParseAddr(s string) Addr {
	addr, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String formats the address as dotted quad.
func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}
