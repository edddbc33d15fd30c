// Package driver provides the concrete device drivers shipped with
// go-netstack: a loopback device and a Linux TAP device.
package driver

import (
	"github.com/ehrlich-b/go-netstack"
)

// LoopbackMTU is deliberately large; loopback never fragments.
const LoopbackMTU = 65535

// loopback feeds every transmitted frame straight back into the
// stack's input path. Input never blocks, so transmitting from the
// softirq context is safe.
type loopback struct {
	stack *netstack.Stack
}

// NewLoopback creates and returns an unregistered loopback device.
func NewLoopback(s *netstack.Stack) *netstack.Device {
	dev := netstack.NewDevice(netstack.DeviceTypeLoopback, LoopbackMTU, &loopback{stack: s})
	dev.Flags = netstack.FlagLoopback
	return dev
}

// Transmit implements the DeviceOps interface
func (lo *loopback) Transmit(dev *netstack.Device, typ netstack.EtherType, data []byte, dst any) error {
	return lo.stack.Input(typ, data, dev)
}

var _ netstack.DeviceOps = (*loopback)(nil)
