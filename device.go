package netstack

import (
	"fmt"
	"sync/atomic"
)

// DeviceType identifies the link type of a device.
type DeviceType uint16

const (
	DeviceTypeDummy    DeviceType = 0x0000
	DeviceTypeLoopback DeviceType = 0x0001
	DeviceTypeEthernet DeviceType = 0x0002
)

// EtherType identifies the protocol carried in a frame, using the
// EtherType code space (IPv4 = 0x0800).
type EtherType uint16

const (
	TypeIPv4 EtherType = 0x0800
	TypeARP  EtherType = 0x0806
	TypeIPv6 EtherType = 0x86dd
)

// Family tags an interface with its address family.
type Family int

const (
	FamilyIPv4 Family = 1
	FamilyIPv6 Family = 2
)

// Flags describe static device capabilities. The UP state is tracked
// separately and toggled by open/close.
type Flags uint16

const (
	FlagLoopback  Flags = 1 << 0
	FlagBroadcast Flags = 1 << 1
	FlagP2P       Flags = 1 << 2
	FlagNeedARP   Flags = 1 << 3
)

// DeviceOps is the contract a device driver must implement. Transmit is
// the only required operation; drivers that need setup or teardown also
// implement Opener and Closer.
//
// Transmit is called from the softirq context with a frame that already
// passed the UP and MTU checks. dst is an opaque link-layer destination
// the driver interprets (a hardware address for ethernet, ignored by
// loopback). Transmit may block briefly for hardware.
type DeviceOps interface {
	Transmit(dev *Device, typ EtherType, data []byte, dst any) error
}

// Opener is an optional interface for drivers that need to acquire
// resources before the device can carry traffic. Called by Stack.Run.
type Opener interface {
	Open(dev *Device) error
}

// Closer is an optional interface for drivers that need teardown.
// Called by Stack.Shutdown.
type Closer interface {
	Close(dev *Device) error
}

// Interface is a per-address-family binding to a device. Concrete
// interface types (e.g. ipv4.Iface) embed IfaceBase to satisfy the
// device back-reference.
type Interface interface {
	Family() Family
	Device() *Device
	attach(*Device)
}

// IfaceBase carries the weak back-reference from an interface to its
// owning device. Embed it in concrete interface types.
type IfaceBase struct {
	dev *Device
}

// Device returns the device this interface is bound to, or nil before
// the interface is added to a device.
func (b *IfaceBase) Device() *Device { return b.dev }

func (b *IfaceBase) attach(d *Device) { b.dev = d }

// Device represents a registered network device. Drivers fill the
// public fields before registration; the stack assigns the name and
// index at RegisterDevice and owns the interface list.
type Device struct {
	Type      DeviceType
	MTU       int
	Flags     Flags
	Addr      []byte // link-layer address, driver-defined ("" for loopback)
	Broadcast []byte // link-layer broadcast address, if any
	Ops       DeviceOps
	Priv      any // opaque driver state

	name     string
	index    int
	up       atomic.Bool
	ifaces   []Interface
	stack    *Stack
	logger   Logger
	observer Observer
}

// NewDevice returns a device with the given link type, MTU and driver
// ops. The caller may fill the remaining public fields before passing
// it to Stack.RegisterDevice.
func NewDevice(typ DeviceType, mtu int, ops DeviceOps) *Device {
	return &Device{
		Type: typ,
		MTU:  mtu,
		Ops:  ops,
	}
}

// Name returns the stack-assigned device name (net0, net1, ...).
// Empty until the device is registered.
func (d *Device) Name() string { return d.name }

// Index returns the stack-assigned device index.
func (d *Device) Index() int { return d.index }

// IsUp reports whether the device is open and may carry traffic.
func (d *Device) IsUp() bool { return d.up.Load() }

// State returns "up" or "down" for logging.
func (d *Device) State() string {
	if d.IsUp() {
		return "up"
	}
	return "down"
}

// open transitions the device to UP, invoking the driver's Open hook
// if it has one. Invoked by Stack.Run.
func (d *Device) open() error {
	if d.IsUp() {
		return NewDeviceError("device_open", d.name, CodeAlreadyOpen, "")
	}
	if op, ok := d.Ops.(Opener); ok {
		if err := op.Open(d); err != nil {
			return WrapDriverError("device_open", d.name, err)
		}
	}
	d.up.Store(true)
	d.logger.Printf("device %s is %s", d.name, d.State())
	return nil
}

// close transitions the device to DOWN, invoking the driver's Close
// hook if it has one. Invoked by Stack.Shutdown.
func (d *Device) close() error {
	if !d.IsUp() {
		return NewDeviceError("device_close", d.name, CodeNotOpen, "")
	}
	if cl, ok := d.Ops.(Closer); ok {
		if err := cl.Close(d); err != nil {
			return WrapDriverError("device_close", d.name, err)
		}
	}
	d.up.Store(false)
	d.logger.Printf("device %s is %s", d.name, d.State())
	return nil
}

// AddInterface binds iface to the device. Only one interface per
// address family may be bound. Must not be called after Stack.Run.
func (d *Device) AddInterface(iface Interface) error {
	if d.stack != nil && d.stack.running.Load() {
		return NewDeviceError("add_interface", d.name, CodeAlreadyRunning, "")
	}
	for _, entry := range d.ifaces {
		if entry.Family() == iface.Family() {
			return NewDeviceError("add_interface", d.name, CodeDuplicateFamily,
				fmt.Sprintf("family %d already bound", iface.Family()))
		}
	}
	iface.attach(d)
	d.ifaces = append(d.ifaces, iface)
	return nil
}

// Interface returns the interface of the given family bound to the
// device, or nil if none is.
func (d *Device) Interface(family Family) Interface {
	for _, entry := range d.ifaces {
		if entry.Family() == family {
			return entry
		}
	}
	return nil
}

// Output validates the device state and frame size, then hands the
// frame to the driver's Transmit.
func (d *Device) Output(typ EtherType, data []byte, dst any) error {
	if !d.IsUp() {
		return NewDeviceError("device_output", d.name, CodeNotOpen, "")
	}
	if len(data) > d.MTU {
		return NewDeviceError("device_output", d.name, CodeTooLong,
			fmt.Sprintf("len=%d, mtu=%d", len(data), d.MTU))
	}
	d.logger.Debugf("output, dev=%s, type=0x%04x, len=%d", d.name, uint16(typ), len(data))
	if err := d.Ops.Transmit(d, typ, data, dst); err != nil {
		d.observer.ObserveTransmit(d.name, len(data), false)
		return WrapDriverError("device_output", d.name, err)
	}
	d.observer.ObserveTransmit(d.name, len(data), true)
	return nil
}
