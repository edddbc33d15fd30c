package icmp

import (
	"encoding/binary"
	"fmt"

	"github.com/ehrlich-b/go-netstack"
	"github.com/ehrlich-b/go-netstack/internal/inet"
)

// ICMP message types.
const (
	TypeEchoReply      uint8 = 0
	TypeDestUnreach    uint8 = 3
	TypeSourceQuench   uint8 = 4
	TypeRedirect       uint8 = 5
	TypeEcho           uint8 = 8
	TypeTimeExceeded   uint8 = 11
	TypeParamProblem   uint8 = 12
	TypeTimestamp      uint8 = 13
	TypeTimestampReply uint8 = 14
	TypeInfoRequest    uint8 = 15
	TypeInfoReply      uint8 = 16
)

// HeaderSize is the fixed ICMP header length.
const HeaderSize = 8

// Message is a parsed ICMP message. Rest is the 4-byte rest-of-header
// field; for echo messages it splits into identifier and sequence.
type Message struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	Rest     uint32
	Payload  []byte
}

// EchoRest packs an identifier and sequence number into a
// rest-of-header value.
func EchoRest(id, seq uint16) uint32 {
	return uint32(id)<<16 | uint32(seq)
}

// ID returns the echo identifier.
func (m *Message) ID() uint16 { return uint16(m.Rest >> 16) }

// Seq returns the echo sequence number.
func (m *Message) Seq() uint16 { return uint16(m.Rest) }

// Parse decodes data into a message, verifying length and checksum.
// The payload is copied out of data.
func Parse(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, netstack.NewError("icmp_parse", netstack.CodeTooShort,
			fmt.Sprintf("len=%d", len(data)))
	}
	if !inet.Valid(data) {
		sum := binary.BigEndian.Uint16(data[2:4])
		return nil, netstack.NewError("icmp_parse", netstack.CodeBadChecksum,
			fmt.Sprintf("sum=0x%04x", sum))
	}
	return &Message{
		Type:     data[0],
		Code:     data[1],
		Checksum: binary.BigEndian.Uint16(data[2:4]),
		Rest:     binary.BigEndian.Uint32(data[4:8]),
		Payload:  append([]byte(nil), data[8:]...),
	}, nil
}

// Marshal assembles the message with the checksum computed over the
// whole assembled buffer. The Checksum field in m is ignored.
func (m *Message) Marshal() []byte {
	b := make([]byte, HeaderSize+len(m.Payload))
	b[0] = m.Type
	b[1] = m.Code
	binary.BigEndian.PutUint32(b[4:8], m.Rest)
	copy(b[HeaderSize:], m.Payload)
	binary.BigEndian.PutUint16(b[2:4], inet.Checksum(b, 0))
	return b
}

// TypeString names a message type for logs.
func TypeString(t uint8) string {
	switch t {
	case TypeEchoReply:
		return "EchoReply"
	case TypeDestUnreach:
		return "DestinationUnreachable"
	case TypeSourceQuench:
		return "SourceQuench"
	case TypeRedirect:
		return "Redirect"
	case TypeEcho:
		return "Echo"
	case TypeTimeExceeded:
		return "TimeExceeded"
	case TypeParamProblem:
		return "ParameterProblem"
	case TypeTimestamp:
		return "Timestamp"
	case TypeTimestampReply:
		return "TimestampReply"
	case TypeInfoRequest:
		return "InformationRequest"
	case TypeInfoReply:
		return "InformationReply"
	}
	return "Unknown"
}
