package netstack

import "sync"

// TransmitRecord captures one frame handed to a MockDevice.
type TransmitRecord struct {
	Type EtherType
	Data []byte
	Dst  any
}

// MockDevice provides a mock driver for testing. It implements
// DeviceOps, Opener and Closer, records every call, and can be told to
// fail open or transmit.
type MockDevice struct {
	mu         sync.Mutex
	transmits  []TransmitRecord
	openCalls  int
	closeCalls int

	// FailOpen, when non-nil, is returned from Open.
	FailOpen error
	// FailTransmit, when non-nil, is returned from Transmit.
	FailTransmit error
}

// NewMockDevice creates a new mock driver.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

// Open implements the Opener interface
func (m *MockDevice) Open(dev *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls++
	return m.FailOpen
}

// Close implements the Closer interface
func (m *MockDevice) Close(dev *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

// Transmit implements the DeviceOps interface
func (m *MockDevice) Transmit(dev *Device, typ EtherType, data []byte, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTransmit != nil {
		return m.FailTransmit
	}
	m.transmits = append(m.transmits, TransmitRecord{
		Type: typ,
		Data: append([]byte(nil), data...),
		Dst:  dst,
	})
	return nil
}

// Transmits returns a copy of the recorded transmissions.
func (m *MockDevice) Transmits() []TransmitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransmitRecord(nil), m.transmits...)
}

// OpenCalls returns the number of times Open has been called
func (m *MockDevice) OpenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}

// CloseCalls returns the number of times Close has been called
func (m *MockDevice) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// Reset clears the recorded calls
func (m *MockDevice) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transmits = nil
	m.openCalls = 0
	m.closeCalls = 0
}

// ReceivedFrame captures one frame delivered to a FrameCollector's
// handler.
type ReceivedFrame struct {
	Data []byte
	Dev  *Device
}

// FrameCollector is a ProtocolHandler factory for tests: the returned
// handler appends every delivered frame to the collector.
type FrameCollector struct {
	mu     sync.Mutex
	frames []ReceivedFrame
}

// Handler returns a ProtocolHandler that records into the collector.
// The frame bytes are copied; the handler does not retain the
// dispatch buffer.
func (c *FrameCollector) Handler() ProtocolHandler {
	return func(data []byte, dev *Device) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.frames = append(c.frames, ReceivedFrame{
			Data: append([]byte(nil), data...),
			Dev:  dev,
		})
	}
}

// Frames returns a copy of the collected frames.
func (c *FrameCollector) Frames() []ReceivedFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ReceivedFrame(nil), c.frames...)
}

// Compile-time interface checks
var (
	_ DeviceOps = (*MockDevice)(nil)
	_ Opener    = (*MockDevice)(nil)
	_ Closer    = (*MockDevice)(nil)
)
