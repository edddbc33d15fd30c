package driver

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-netstack"
	"github.com/ehrlich-b/go-netstack/internal/logging"
)

// readPollTimeoutMs bounds how long the reader blocks in poll(2), so
// shutdown is observed promptly even on an idle device.
const readPollTimeoutMs = 100

// tap drives a Linux TAP device. The tun fd is acquired in Open and a
// reader goroutine feeds inbound frames to the stack until Close.
type tap struct {
	stack  *netstack.Stack
	name   string
	fd     int
	done   chan struct{}
	exited chan struct{}
	logger *logging.Logger
}

// NewTAP creates an unregistered Ethernet device backed by the named
// TAP interface (e.g. "tap0"). The interface must already exist and
// be administratively up; the device attaches to it at Stack.Run.
func NewTAP(s *netstack.Stack, name string) *netstack.Device {
	t := &tap{
		stack:  s,
		name:   name,
		fd:     -1,
		logger: logging.Default(),
	}
	dev := netstack.NewDevice(netstack.DeviceTypeEthernet, EtherPayloadSizeMax, t)
	dev.Flags = netstack.FlagBroadcast | netstack.FlagNeedARP
	dev.Broadcast = append([]byte(nil), EtherBroadcast...)
	return dev
}

// Open implements the Opener interface: attach to the TAP interface,
// learn its hardware address, and start the reader.
func (t *tap) Open(dev *netstack.Device) error {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open /dev/net/tun: %w", err)
	}

	ifr, err := unix.NewIfreq(t.name)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("ifreq %q: %w", t.name, err)
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("TUNSETIFF %q: %w", t.name, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set nonblock: %w", err)
	}

	hwaddr, err := hardwareAddr(t.name)
	if err != nil {
		unix.Close(fd)
		return err
	}
	dev.Addr = hwaddr

	t.fd = fd
	t.done = make(chan struct{})
	t.exited = make(chan struct{})
	go t.readLoop(dev)

	t.logger.Printf("tap attached, dev=%s, if=%s, hwaddr=%s",
		dev.Name(), t.name, net.HardwareAddr(hwaddr))
	return nil
}

// Close implements the Closer interface
func (t *tap) Close(dev *netstack.Device) error {
	close(t.done)
	<-t.exited
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}

// Transmit implements the DeviceOps interface. dst is the destination
// hardware address; nil falls back to broadcast (no resolver is wired
// into this driver).
func (t *tap) Transmit(dev *netstack.Device, typ netstack.EtherType, data []byte, dst any) error {
	dstHW := EtherBroadcast
	if hw, ok := dst.([]byte); ok && len(hw) == EtherAddrLen {
		dstHW = hw
	}
	frame := encodeEther(dstHW, dev.Addr, typ, data)
	for {
		_, err := unix.Write(t.fd, frame)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// readLoop polls the tun fd and feeds decoded frames to the stack
// until Close. This is the driver context: Stack.Input copies and
// enqueues, nothing here blocks on protocol work.
func (t *tap) readLoop(dev *netstack.Device) {
	defer close(t.exited)

	buf := make([]byte, EtherFrameSizeMax)
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-t.done:
			return
		default:
		}

		n, err := unix.Poll(fds, readPollTimeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			t.logger.Errorf("tap poll failure, dev=%s: %v", dev.Name(), err)
			return
		}
		if n == 0 {
			continue
		}

		for {
			n, err := unix.Read(t.fd, buf)
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				break
			}
			if err != nil {
				t.logger.Errorf("tap read failure, dev=%s: %v", dev.Name(), err)
				return
			}
			typ, payload, derr := decodeEther(buf[:n])
			if derr != nil {
				t.logger.Debugf("tap drop, dev=%s: %v", dev.Name(), derr)
				continue
			}
			if ierr := t.stack.Input(typ, payload, dev); ierr != nil {
				t.logger.Debugf("tap input drop, dev=%s: %v", dev.Name(), ierr)
			}
		}
	}
}

// hardwareAddr reads the interface's MAC from sysfs.
func hardwareAddr(name string) ([]byte, error) {
	raw, err := os.ReadFile("/sys/class/net/" + name + "/address")
	if err != nil {
		return nil, fmt.Errorf("read hwaddr of %q: %w", name, err)
	}
	hw, err := net.ParseMAC(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse hwaddr of %q: %w", name, err)
	}
	return hw, nil
}

var (
	_ netstack.DeviceOps = (*tap)(nil)
	_ netstack.Opener    = (*tap)(nil)
	_ netstack.Closer    = (*tap)(nil)
)
