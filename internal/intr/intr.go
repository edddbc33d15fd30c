// Package intr provides the interrupt worker that serializes the
// deferred execution contexts of the network core: softirq, event, and
// the periodic timer tick. Raising an IRQ is a non-blocking signal;
// the worker goroutine observes it and runs the matching handler to
// completion before yielding, so handlers never run concurrently.
package intr

import (
	"context"
	"time"

	"github.com/ehrlich-b/go-netstack/internal/logging"
)

// IRQ identifies an interrupt line.
type IRQ int

const (
	// IRQSoftirq wakes the deferred protocol-input worker.
	IRQSoftirq IRQ = iota
	// IRQEvent wakes the event subscription dispatcher.
	IRQEvent
)

// Config wires the worker to its handlers. All three handlers run on
// the worker goroutine, never concurrently.
type Config struct {
	TickInterval time.Duration
	OnSoftirq    func()
	OnEvent      func()
	OnTick       func()
}

// Controller owns the IRQ lines and the worker goroutine.
type Controller struct {
	cfg Config

	// One-slot signal channels: a raise while a signal is already
	// pending coalesces, which is exactly the level-triggered behavior
	// the softirq drain wants.
	softirq chan struct{}
	event   chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// New creates a controller. Run starts the worker.
func New(cfg Config) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:     cfg,
		softirq: make(chan struct{}, 1),
		event:   make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Raise signals an IRQ line. Non-blocking and safe from any goroutine;
// a signal already pending on the line absorbs the raise.
func (c *Controller) Raise(irq IRQ) {
	var line chan struct{}
	switch irq {
	case IRQSoftirq:
		line = c.softirq
	case IRQEvent:
		line = c.event
	default:
		return
	}
	select {
	case line <- struct{}{}:
	default:
	}
}

// Run starts the worker goroutine.
func (c *Controller) Run() error {
	c.started = true
	go c.loop()
	return nil
}

// Shutdown stops the worker and waits for it to exit. A controller
// that never ran has nothing to wait for.
func (c *Controller) Shutdown() {
	c.cancel()
	if c.started {
		<-c.done
	}
}

func (c *Controller) loop() {
	defer close(c.done)

	logger := logging.Default()
	logger.Debug("interrupt worker running", "tick", c.cfg.TickInterval)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			logger.Debug("interrupt worker stopping")
			return
		case <-c.softirq:
			if c.cfg.OnSoftirq != nil {
				c.cfg.OnSoftirq()
			}
		case <-c.event:
			if c.cfg.OnEvent != nil {
				c.cfg.OnEvent()
			}
		case <-ticker.C:
			if c.cfg.OnTick != nil {
				c.cfg.OnTick()
			}
		}
	}
}
