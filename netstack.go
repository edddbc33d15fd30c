// Package netstack implements the dispatch core of a userspace TCP/IP
// stack: a device and protocol multiplexer that ingests link-layer
// frames from pluggable drivers, defers protocol processing to a
// softirq worker, drives periodic protocol timers, and multiplexes
// outbound traffic back to the correct device.
//
// Protocol modules (ipv4, icmp, ...) and device drivers (driver/) are
// layered on top through narrow contracts: RegisterProtocol and Input
// on the inbound side, Device.Output on the outbound side.
package netstack

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-netstack/internal/intr"
	"github.com/ehrlich-b/go-netstack/internal/logging"
)

// Logger is the minimal logging contract the stack needs. The default
// implementation is internal/logging; callers may plug their own.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

var _ Logger = (*logging.Logger)(nil)

// ProtocolHandler processes one inbound frame in the softirq context.
// The handler owns neither the bytes (valid only for the duration of
// the call) nor the device (borrowed reference). Handlers must log and
// swallow their own failures; nothing is propagated.
type ProtocolHandler func(data []byte, dev *Device)

// Options configures a Stack. The zero value is usable.
type Options struct {
	// Logger for stack messages (default: internal logging).
	Logger Logger

	// Observer for metrics collection (default: no-op).
	Observer Observer

	// QueueDepth bounds each protocol's input queue
	// (default: DefaultQueueDepth).
	QueueDepth int

	// TickInterval is the period of the timer tick
	// (default: DefaultTickInterval).
	TickInterval time.Duration

	// Now supplies wall time for timers. Tests inject a virtual clock
	// here (default: time.Now).
	Now func() time.Time
}

type protocol struct {
	typ     EtherType
	handler ProtocolHandler
	queue   chan *queueEntry
}

// queueEntry owns a private copy of the frame from enqueue until the
// softirq worker releases it after dispatch.
type queueEntry struct {
	dev  *Device
	data []byte
}

type timer struct {
	interval time.Duration
	last     time.Time
	handler  func()
}

type subscription struct {
	handler func(arg any)
	arg     any
}

// Stack owns every registry of the network core: devices, protocols
// with their input queues, timers and event subscriptions. All
// registration happens before Run; after Run the registries are
// read-only and the interrupt worker serializes the softirq, timer and
// event contexts.
type Stack struct {
	logger     Logger
	observer   Observer
	now        func() time.Time
	queueDepth int

	intr *intr.Controller

	running atomic.Bool

	// mu guards the registries during the setup phase only. Once Run
	// succeeds the registries are append-only-frozen and read lock-free.
	mu        sync.Mutex
	devices   []*Device
	protocols []*protocol
	timers    []*timer
	events    []*subscription
}

// New creates a Stack ready for registration.
func New(opts *Options) *Stack {
	if opts == nil {
		opts = &Options{}
	}
	s := &Stack{
		logger:     opts.Logger,
		observer:   opts.Observer,
		now:        opts.Now,
		queueDepth: opts.QueueDepth,
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.observer == nil {
		s.observer = NoOpObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.queueDepth <= 0 {
		s.queueDepth = DefaultQueueDepth
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	s.intr = intr.New(intr.Config{
		TickInterval: tick,
		OnSoftirq:    s.softirq,
		OnEvent:      s.eventTick,
		OnTick:       s.timerTick,
	})
	return s
}

// RegisterDevice assigns the device its index and name (net0, net1,
// ...) and links it into the device table. Must not be called after
// Run.
func (s *Stack) RegisterDevice(dev *Device) error {
	if s.running.Load() {
		return NewError("register_device", CodeAlreadyRunning, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dev.index = len(s.devices)
	dev.name = fmt.Sprintf("net%d", dev.index)
	dev.stack = s
	dev.logger = s.logger
	dev.observer = s.observer
	s.devices = append(s.devices, dev)
	s.logger.Printf("registered, dev=%s, type=0x%04x", dev.name, uint16(dev.Type))
	return nil
}

// RegisterProtocol adds a protocol handler for the given type code
// with a fresh bounded input queue. Must not be called after Run.
func (s *Stack) RegisterProtocol(typ EtherType, handler ProtocolHandler) error {
	if s.running.Load() {
		return NewError("register_protocol", CodeAlreadyRunning, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proto := range s.protocols {
		if proto.typ == typ {
			return NewError("register_protocol", CodeAlreadyRegistered,
				fmt.Sprintf("type=0x%04x", uint16(typ)))
		}
	}
	s.protocols = append(s.protocols, &protocol{
		typ:     typ,
		handler: handler,
		queue:   make(chan *queueEntry, s.queueDepth),
	})
	s.logger.Printf("registered, type=0x%04x", uint16(typ))
	return nil
}

// RegisterTimer adds a periodic timer. The handler fires in the timer
// context whenever now - last >= interval; heavy work must be deferred
// to the softirq. Must not be called after Run.
func (s *Stack) RegisterTimer(interval time.Duration, handler func()) error {
	if s.running.Load() {
		return NewError("register_timer", CodeAlreadyRunning, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, &timer{
		interval: interval,
		last:     s.now(),
		handler:  handler,
	})
	s.logger.Printf("registered timer, interval=%s", interval)
	return nil
}

// SubscribeEvent adds an event subscription, invoked with arg on every
// event tick in registration order. Must not be called after Run.
func (s *Stack) SubscribeEvent(handler func(arg any), arg any) error {
	if s.running.Load() {
		return NewError("subscribe_event", CodeAlreadyRunning, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &subscription{handler: handler, arg: arg})
	return nil
}

// RaiseEvent triggers the event IRQ. Safe from any goroutine; the
// subscriptions run later in the interrupt worker.
func (s *Stack) RaiseEvent() {
	s.intr.Raise(intr.IRQEvent)
}

// Input accepts one inbound frame from a driver. It runs in the
// driver's context and must not block: the frame is copied into a
// queue entry, enqueued on the matching protocol's queue, and the
// softirq is raised. The caller's buffer may be reused as soon as
// Input returns. Frames for unregistered protocol types are silently
// dropped (success).
func (s *Stack) Input(typ EtherType, data []byte, dev *Device) error {
	for _, proto := range s.protocols {
		if proto.typ != typ {
			continue
		}
		entry := &queueEntry{
			dev:  dev,
			data: append([]byte(nil), data...),
		}
		select {
		case proto.queue <- entry:
		default:
			s.observer.ObserveInput(typ, len(data), false)
			return NewDeviceError("input", dev.Name(), CodeQueueFull,
				fmt.Sprintf("type=0x%04x", uint16(typ)))
		}
		s.observer.ObserveInput(typ, len(data), true)
		s.observer.ObserveQueueDepth(typ, len(proto.queue))
		s.logger.Debugf("queued, dev=%s, type=0x%04x, len=%d", dev.Name(), uint16(typ), len(data))
		s.intr.Raise(intr.IRQSoftirq)
		return nil
	}
	// unsupported protocol
	s.observer.ObserveInput(typ, len(data), false)
	return nil
}

// softirq is the deferred worker: it drains every protocol queue FIFO
// and dispatches each entry to the protocol's handler. Runs in the
// interrupt worker; within one protocol entries dispatch in arrival
// order, across protocols no order is guaranteed.
func (s *Stack) softirq() {
	for _, proto := range s.protocols {
		for {
			var entry *queueEntry
			select {
			case entry = <-proto.queue:
			default:
			}
			if entry == nil {
				break
			}
			s.logger.Debugf("dequeued, dev=%s, type=0x%04x, len=%d",
				entry.dev.Name(), uint16(proto.typ), len(entry.data))
			proto.handler(entry.data, entry.dev)
			s.observer.ObserveDispatch(proto.typ, len(entry.data))
		}
	}
}

// timerTick fires every timer whose interval has elapsed and resets
// its last-fire time.
func (s *Stack) timerTick() {
	for _, t := range s.timers {
		now := s.now()
		if now.Sub(t.last) >= t.interval {
			t.handler()
			t.last = now
		}
	}
}

// eventTick invokes every subscription in registration order.
func (s *Stack) eventTick() {
	for _, e := range s.events {
		e.handler(e.arg)
	}
}

// Run freezes the registries, starts the interrupt worker, and opens
// every registered device. A device whose driver fails to open stays
// down; the failure is logged, not fatal.
func (s *Stack) Run() error {
	if s.running.Swap(true) {
		return NewError("run", CodeAlreadyRunning, "")
	}
	if err := s.intr.Run(); err != nil {
		s.running.Store(false)
		return err
	}
	s.logger.Debugf("open all devices...")
	for _, dev := range s.devices {
		if err := dev.open(); err != nil {
			s.logger.Errorf("open failure, dev=%s: %v", dev.Name(), err)
		}
	}
	s.logger.Debugf("running...")
	return nil
}

// Shutdown closes every device and stops the interrupt worker.
func (s *Stack) Shutdown() {
	s.logger.Debugf("close all devices...")
	for _, dev := range s.devices {
		if err := dev.close(); err != nil {
			s.logger.Errorf("close failure, dev=%s: %v", dev.Name(), err)
		}
	}
	s.intr.Shutdown()
	s.running.Store(false)
	s.logger.Debugf("shutting down")
}

// Devices returns the registered devices in registration order.
func (s *Stack) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Device(nil), s.devices...)
}

// Logger returns the stack's logger for protocol modules that want to
// share it.
func (s *Stack) Logger() Logger { return s.logger }
