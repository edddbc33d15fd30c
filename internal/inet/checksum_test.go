package inet

import (
	"encoding/binary"
	"testing"
)

func TestChecksumRFC1071Example(t *testing.T) {
	// Worked example from RFC 1071 §3: the one's-complement sum of
	// these words is 0xddf2, so the checksum is its complement.
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
	if got := Checksum(data, 0); got != ^uint16(0xddf2) {
		t.Errorf("Checksum() = 0x%04x, want 0x%04x", got, ^uint16(0xddf2))
	}
}

func TestChecksumOddLength(t *testing.T) {
	// The trailing byte is padded with a zero octet.
	odd := []byte{0x01, 0x02, 0x03}
	padded := []byte{0x01, 0x02, 0x03, 0x00}
	if Checksum(odd, 0) != Checksum(padded, 0) {
		t.Error("odd-length checksum should match zero-padded even length")
	}
}

func TestChecksumEmpty(t *testing.T) {
	if got := Checksum(nil, 0); got != 0xffff {
		t.Errorf("Checksum(nil) = 0x%04x, want 0xffff", got)
	}
}

func TestValidRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x42},
		{0xde, 0xad, 0xbe, 0xef},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}
	for _, payload := range payloads {
		// Message layout: 2-byte checksum field followed by payload.
		msg := make([]byte, 2+len(payload))
		copy(msg[2:], payload)
		binary.BigEndian.PutUint16(msg[0:2], Checksum(msg, 0))

		if !Valid(msg) {
			t.Errorf("message with embedded checksum should validate: % x", msg)
		}

		if len(payload) > 0 {
			msg[2] ^= 0x01
			if Valid(msg) {
				t.Errorf("corrupted message should not validate: % x", msg)
			}
		}
	}
}

func TestChecksumSeeded(t *testing.T) {
	// Summing in two halves with a seed equals summing the whole.
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}
	whole := Checksum(data, 0)

	// Seed with the one's-complement sum (not the complemented
	// checksum) of the first half.
	partial := uint32(0x1234) + uint32(0x5678)
	split := Checksum(data[4:], partial)
	if whole != split {
		t.Errorf("split checksum 0x%04x != whole 0x%04x", split, whole)
	}
}
