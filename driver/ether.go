package driver

import (
	"encoding/binary"
	"fmt"

	"github.com/ehrlich-b/go-netstack"
)

// Ethernet framing constants.
const (
	EtherAddrLen    = 6
	EtherHeaderSize = 14

	// EtherPayloadSizeMax is the classic Ethernet MTU.
	EtherPayloadSizeMax = 1500
	// EtherFrameSizeMax is header plus maximum payload.
	EtherFrameSizeMax = EtherHeaderSize + EtherPayloadSizeMax
)

// EtherBroadcast is the all-ones hardware address.
var EtherBroadcast = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// encodeEther assembles one Ethernet frame.
func encodeEther(dst, src []byte, typ netstack.EtherType, payload []byte) []byte {
	frame := make([]byte, EtherHeaderSize+len(payload))
	copy(frame[0:EtherAddrLen], dst)
	copy(frame[EtherAddrLen:2*EtherAddrLen], src)
	binary.BigEndian.PutUint16(frame[12:14], uint16(typ))
	copy(frame[EtherHeaderSize:], payload)
	return frame
}

// decodeEther splits one Ethernet frame into its EtherType and
// payload. The destination filter is left to the caller; TAP devices
// already filter in the kernel.
func decodeEther(frame []byte) (netstack.EtherType, []byte, error) {
	if len(frame) < EtherHeaderSize {
		return 0, nil, fmt.Errorf("driver: runt frame, len=%d", len(frame))
	}
	typ := netstack.EtherType(binary.BigEndian.Uint16(frame[12:14]))
	return typ, frame[EtherHeaderSize:], nil
}
