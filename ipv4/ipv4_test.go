package ipv4

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-netstack"
	"github.com/ehrlich-b/go-netstack/internal/logging"
)

type fixture struct {
	stack *netstack.Stack
	ops   *netstack.MockDevice
	dev   *netstack.Device
	ip    *Protocol
	iface *Iface
}

// newFixture wires a stack with one mock device carrying 192.0.2.2/24.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := netstack.New(&netstack.Options{
		Logger: logging.NewLogger(&logging.Config{
			Level:  logging.LevelError,
			Output: io.Discard,
		}),
	})
	ops := netstack.NewMockDevice()
	dev := netstack.NewDevice(netstack.DeviceTypeDummy, 1500, ops)
	require.NoError(t, s.RegisterDevice(dev))

	ip, err := Register(s)
	require.NoError(t, err)

	iface, err := NewIface("192.0.2.2", "255.255.255.0")
	require.NoError(t, err)
	require.NoError(t, ip.RegisterIface(dev, iface))

	return &fixture{stack: s, ops: ops, dev: dev, ip: ip, iface: iface}
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	require.NoError(t, f.stack.Run())
	t.Cleanup(f.stack.Shutdown)
}

// datagram builds a valid datagram addressed as given.
func datagram(t *testing.T, proto Proto, src, dst string, payload []byte) []byte {
	t.Helper()
	h := &Header{
		TotalLen: HeaderLenMin + len(payload),
		TTL:      64,
		Proto:    proto,
		Src:      MustParseAddr(src),
		Dst:      MustParseAddr(dst),
	}
	return append(h.Marshal(), payload...)
}

func TestRegisterProtocolDuplicate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ip.RegisterProtocol(ProtoICMP, func([]byte, Addr, Addr, *Iface) {}))
	err := f.ip.RegisterProtocol(ProtoICMP, func([]byte, Addr, Addr, *Iface) {})
	require.Error(t, err)
	assert.True(t, netstack.IsCode(err, netstack.CodeAlreadyRegistered))
}

func TestInputDemux(t *testing.T) {
	f := newFixture(t)

	var gotPayload []byte
	var gotSrc, gotDst Addr
	var gotIface *Iface
	require.NoError(t, f.ip.RegisterProtocol(ProtoICMP, func(p []byte, src, dst Addr, iface *Iface) {
		gotPayload = append([]byte(nil), p...)
		gotSrc, gotDst, gotIface = src, dst, iface
	}))

	payload := []byte{1, 2, 3, 4}
	f.ip.input(datagram(t, ProtoICMP, "192.0.2.7", "192.0.2.2", payload), f.dev)

	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, MustParseAddr("192.0.2.7"), gotSrc)
	assert.Equal(t, MustParseAddr("192.0.2.2"), gotDst)
	assert.Same(t, f.iface, gotIface)
}

func TestInputAcceptsBroadcast(t *testing.T) {
	f := newFixture(t)

	count := 0
	require.NoError(t, f.ip.RegisterProtocol(ProtoUDP, func([]byte, Addr, Addr, *Iface) { count++ }))

	f.ip.input(datagram(t, ProtoUDP, "192.0.2.7", "192.0.2.255", nil), f.dev)
	f.ip.input(datagram(t, ProtoUDP, "192.0.2.7", "255.255.255.255", nil), f.dev)
	assert.Equal(t, 2, count)
}

func TestInputDropsForeignDestination(t *testing.T) {
	f := newFixture(t)

	count := 0
	require.NoError(t, f.ip.RegisterProtocol(ProtoICMP, func([]byte, Addr, Addr, *Iface) { count++ }))

	f.ip.input(datagram(t, ProtoICMP, "192.0.2.7", "198.51.100.9", nil), f.dev)
	assert.Equal(t, 0, count)
}

func TestInputDropsMalformed(t *testing.T) {
	f := newFixture(t)

	count := 0
	require.NoError(t, f.ip.RegisterProtocol(ProtoICMP, func([]byte, Addr, Addr, *Iface) { count++ }))

	// Truncated header.
	f.ip.input([]byte{0x45, 0x00}, f.dev)
	// Corrupted checksum.
	d := datagram(t, ProtoICMP, "192.0.2.7", "192.0.2.2", nil)
	d[10] ^= 0xff
	f.ip.input(d, f.dev)
	assert.Equal(t, 0, count)
}

func TestInputDropsUnknownUpperProtocol(t *testing.T) {
	f := newFixture(t)
	// No handler registered: must not panic, just drop.
	f.ip.input(datagram(t, ProtoTCP, "192.0.2.7", "192.0.2.2", nil), f.dev)
}

func TestOutput(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	payload := []byte{0xca, 0xfe}
	require.NoError(t, f.ip.Output(ProtoICMP, payload, MustParseAddr("192.0.2.2"), MustParseAddr("192.0.2.7")))

	transmits := f.ops.Transmits()
	require.Len(t, transmits, 1)
	assert.Equal(t, netstack.TypeIPv4, transmits[0].Type)

	hdr, body, err := ParseHeader(transmits[0].Data)
	require.NoError(t, err)
	assert.Equal(t, ProtoICMP, hdr.Proto)
	assert.Equal(t, uint8(DefaultTTL), hdr.TTL)
	assert.Equal(t, MustParseAddr("192.0.2.2"), hdr.Src)
	assert.Equal(t, MustParseAddr("192.0.2.7"), hdr.Dst)
	assert.Equal(t, payload, body)
}

func TestOutputNoMatchingInterface(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	err := f.ip.Output(ProtoICMP, nil, MustParseAddr("203.0.113.1"), MustParseAddr("192.0.2.7"))
	require.Error(t, err)
	assert.True(t, netstack.IsCode(err, netstack.CodeNoRoute))
	assert.Empty(t, f.ops.Transmits())
}

func TestOutputTooLong(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	payload := make([]byte, f.dev.MTU-HeaderLenMin+1)
	err := f.ip.Output(ProtoICMP, payload, MustParseAddr("192.0.2.2"), MustParseAddr("192.0.2.7"))
	require.Error(t, err)
	assert.True(t, netstack.IsCode(err, netstack.CodeTooLong))
	assert.Empty(t, f.ops.Transmits())
}

func TestOutputIDsIncrement(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	src, dst := MustParseAddr("192.0.2.2"), MustParseAddr("192.0.2.7")
	require.NoError(t, f.ip.Output(ProtoICMP, nil, src, dst))
	require.NoError(t, f.ip.Output(ProtoICMP, nil, src, dst))

	transmits := f.ops.Transmits()
	require.Len(t, transmits, 2)
	h1, _, err := ParseHeader(transmits[0].Data)
	require.NoError(t, err)
	h2, _, err := ParseHeader(transmits[1].Data)
	require.NoError(t, err)
	assert.Equal(t, h1.ID+1, h2.ID)
}
