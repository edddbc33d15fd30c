package ipv4

import (
	"encoding/binary"
	"fmt"

	"github.com/ehrlich-b/go-netstack"
	"github.com/ehrlich-b/go-netstack/internal/inet"
)

// Proto identifies the upper-layer protocol carried in a datagram.
type Proto uint8

const (
	ProtoICMP Proto = 1
	ProtoTCP  Proto = 6
	ProtoUDP  Proto = 17
)

const (
	version = 4

	// HeaderLenMin is the length of a header without options.
	HeaderLenMin = 20
	// HeaderLenMax bounds the header including options.
	HeaderLenMax = 60

	// DefaultTTL is used for locally originated datagrams.
	DefaultTTL = 255

	flagMoreFragments = 0x1
)

// Header is a parsed IPv4 header. Multi-byte fields are read from and
// written to the wire big-endian; raw bytes are never aliased.
type Header struct {
	HeaderLen  int // bytes, including options
	TOS        uint8
	TotalLen   int // bytes, header plus payload
	ID         uint16
	Flags      uint8  // 3 bits
	FragOffset uint16 // 13 bits, in 8-byte units
	TTL        uint8
	Proto      Proto
	Checksum   uint16
	Src        Addr
	Dst        Addr
}

// ParseHeader decodes and validates the header at the front of data
// and returns it together with the payload. The header checksum is
// verified; fragments are rejected (reassembly is not supported).
func ParseHeader(data []byte) (*Header, []byte, error) {
	if len(data) < HeaderLenMin {
		return nil, nil, netstack.NewError("ip_parse", netstack.CodeTooShort,
			fmt.Sprintf("len=%d", len(data)))
	}
	vhl := data[0]
	if vhl>>4 != version {
		return nil, nil, fmt.Errorf("ipv4: bad version %d", vhl>>4)
	}
	hlen := int(vhl&0x0f) << 2
	if hlen < HeaderLenMin || hlen > HeaderLenMax || len(data) < hlen {
		return nil, nil, fmt.Errorf("ipv4: bad header length %d", hlen)
	}
	total := int(binary.BigEndian.Uint16(data[2:4]))
	if total < hlen || total > len(data) {
		return nil, nil, fmt.Errorf("ipv4: bad total length %d", total)
	}
	if !inet.Valid(data[:hlen]) {
		return nil, nil, netstack.NewError("ip_parse", netstack.CodeBadChecksum, "")
	}
	fragField := binary.BigEndian.Uint16(data[6:8])
	h := &Header{
		HeaderLen:  hlen,
		TOS:        data[1],
		TotalLen:   total,
		ID:         binary.BigEndian.Uint16(data[4:6]),
		Flags:      uint8(fragField >> 13),
		FragOffset: fragField & 0x1fff,
		TTL:        data[8],
		Proto:      Proto(data[9]),
		Checksum:   binary.BigEndian.Uint16(data[10:12]),
		Src:        Addr(binary.BigEndian.Uint32(data[12:16])),
		Dst:        Addr(binary.BigEndian.Uint32(data[16:20])),
	}
	if h.Flags&flagMoreFragments != 0 || h.FragOffset != 0 {
		return nil, nil, fmt.Errorf("ipv4: fragments not supported, id=%d, offset=%d",
			h.ID, h.FragOffset)
	}
	return h, data[hlen:total], nil
}

// Marshal emits a 20-byte option-less header with the checksum filled
// in. HeaderLen and Checksum in h are ignored.
func (h *Header) Marshal() []byte {
	b := make([]byte, HeaderLenMin)
	b[0] = version<<4 | HeaderLenMin>>2
	b[1] = h.TOS
	binary.BigEndian.PutUint16(b[2:4], uint16(h.TotalLen))
	binary.BigEndian.PutUint16(b[4:6], h.ID)
	binary.BigEndian.PutUint16(b[6:8], uint16(h.Flags)<<13|h.FragOffset&0x1fff)
	b[8] = h.TTL
	b[9] = uint8(h.Proto)
	binary.BigEndian.PutUint32(b[12:16], uint32(h.Src))
	binary.BigEndian.PutUint32(b[16:20], uint32(h.Dst))
	binary.BigEndian.PutUint16(b[10:12], inet.Checksum(b, 0))
	return b
}
