package netstack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceOpenClose(t *testing.T) {
	s := New(quietOptions())
	ops := NewMockDevice()
	dev := NewDevice(DeviceTypeDummy, 1500, ops)
	require.NoError(t, s.RegisterDevice(dev))

	require.NoError(t, dev.open())
	assert.True(t, dev.IsUp())

	err := dev.open()
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeAlreadyOpen))
	assert.Equal(t, 1, ops.OpenCalls())

	require.NoError(t, dev.close())
	assert.False(t, dev.IsUp())

	err = dev.close()
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeNotOpen))
	assert.Equal(t, 1, ops.CloseCalls())
}

func TestDeviceOpenDriverFailure(t *testing.T) {
	s := New(quietOptions())
	ops := NewMockDevice()
	ops.FailOpen = errors.New("no such interface")
	dev := NewDevice(DeviceTypeDummy, 1500, ops)
	require.NoError(t, s.RegisterDevice(dev))

	err := dev.open()
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeDriverError))
	assert.ErrorIs(t, err, ops.FailOpen)
	assert.False(t, dev.IsUp())
}

// transmitOnly implements just the required Transmit operation.
type transmitOnly struct {
	calls int
}

func (d *transmitOnly) Transmit(*Device, EtherType, []byte, any) error {
	d.calls++
	return nil
}

func TestDeviceWithoutOpenCloseHooks(t *testing.T) {
	// Open and Close hooks are optional; a transmit-only driver still
	// toggles UP through the lifecycle.
	s := New(quietOptions())
	ops := &transmitOnly{}
	dev := NewDevice(DeviceTypeDummy, 1500, ops)
	require.NoError(t, s.RegisterDevice(dev))

	require.NoError(t, dev.open())
	assert.True(t, dev.IsUp())
	require.NoError(t, dev.Output(0x0800, []byte{1}, nil))
	assert.Equal(t, 1, ops.calls)
	require.NoError(t, dev.close())
}

func TestDeviceOutputDriverFailure(t *testing.T) {
	s := New(quietOptions())
	ops := NewMockDevice()
	ops.FailTransmit = errors.New("tx ring stalled")
	dev := NewDevice(DeviceTypeDummy, 1500, ops)
	require.NoError(t, s.RegisterDevice(dev))
	require.NoError(t, dev.open())

	err := dev.Output(0x0800, []byte{1}, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeDriverError))
	assert.ErrorIs(t, err, ops.FailTransmit)
}

func TestDeviceOutputPassesDestination(t *testing.T) {
	s := New(quietOptions())
	ops := NewMockDevice()
	dev := NewDevice(DeviceTypeEthernet, 1500, ops)
	require.NoError(t, s.RegisterDevice(dev))
	require.NoError(t, dev.open())

	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	require.NoError(t, dev.Output(0x0806, []byte{1, 2}, dst))

	transmits := ops.Transmits()
	require.Len(t, transmits, 1)
	assert.Equal(t, EtherType(0x0806), transmits[0].Type)
	assert.Equal(t, []byte{1, 2}, transmits[0].Data)
	assert.Equal(t, dst, transmits[0].Dst)
}
