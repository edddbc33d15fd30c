package netstack

import (
	"sync/atomic"
	"time"
)

// Metrics tracks frame-level statistics for a running stack.
type Metrics struct {
	// Inbound counters
	FramesIn   atomic.Uint64 // Frames accepted by Input
	BytesIn    atomic.Uint64 // Bytes accepted by Input
	InDrops    atomic.Uint64 // Frames refused at Input (unknown type or queue full)
	Dispatched atomic.Uint64 // Frames handed to protocol handlers

	// Outbound counters
	FramesOut      atomic.Uint64 // Frames accepted by drivers
	BytesOut       atomic.Uint64 // Bytes accepted by drivers
	TransmitErrors atomic.Uint64 // Driver transmit failures

	// Queue statistics
	MaxQueueDepth atomic.Uint32 // Maximum observed queue depth

	// Lifecycle
	StartTime atomic.Int64 // Stack start timestamp (UnixNano)
	StopTime  atomic.Int64 // Stack stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordInput records one frame offered to Input
func (m *Metrics) RecordInput(bytes int, enqueued bool) {
	if enqueued {
		m.FramesIn.Add(1)
		m.BytesIn.Add(uint64(bytes))
	} else {
		m.InDrops.Add(1)
	}
}

// RecordDispatch records one frame dispatched by the softirq
func (m *Metrics) RecordDispatch(bytes int) {
	m.Dispatched.Add(1)
}

// RecordTransmit records one frame handed to a driver
func (m *Metrics) RecordTransmit(bytes int, success bool) {
	if success {
		m.FramesOut.Add(1)
		m.BytesOut.Add(uint64(bytes))
	} else {
		m.TransmitErrors.Add(1)
	}
}

// RecordQueueDepth records an observed queue depth
func (m *Metrics) RecordQueueDepth(depth int) {
	for {
		current := m.MaxQueueDepth.Load()
		if uint32(depth) <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, uint32(depth)) {
			break
		}
	}
}

// Stop marks the stack as stopped
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of the counters plus derived
// rates.
type MetricsSnapshot struct {
	FramesIn       uint64
	BytesIn        uint64
	InDrops        uint64
	Dispatched     uint64
	FramesOut      uint64
	BytesOut       uint64
	TransmitErrors uint64
	MaxQueueDepth  uint32

	UptimeNs     uint64
	InFramesPS   float64 // Inbound frames per second
	OutFramesPS  float64 // Outbound frames per second
	InBandwidth  float64 // Inbound bytes per second
	OutBandwidth float64 // Outbound bytes per second
	DropRate     float64 // Percentage of offered frames dropped
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		FramesIn:       m.FramesIn.Load(),
		BytesIn:        m.BytesIn.Load(),
		InDrops:        m.InDrops.Load(),
		Dispatched:     m.Dispatched.Load(),
		FramesOut:      m.FramesOut.Load(),
		BytesOut:       m.BytesOut.Load(),
		TransmitErrors: m.TransmitErrors.Load(),
		MaxQueueDepth:  m.MaxQueueDepth.Load(),
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.InFramesPS = float64(snap.FramesIn) / uptimeSeconds
		snap.OutFramesPS = float64(snap.FramesOut) / uptimeSeconds
		snap.InBandwidth = float64(snap.BytesIn) / uptimeSeconds
		snap.OutBandwidth = float64(snap.BytesOut) / uptimeSeconds
	}

	offered := snap.FramesIn + snap.InDrops
	if offered > 0 {
		snap.DropRate = float64(snap.InDrops) / float64(offered) * 100.0
	}

	return snap
}

// Reset resets all metrics counters (useful for testing)
func (m *Metrics) Reset() {
	m.FramesIn.Store(0)
	m.BytesIn.Store(0)
	m.InDrops.Store(0)
	m.Dispatched.Store(0)
	m.FramesOut.Store(0)
	m.BytesOut.Store(0)
	m.TransmitErrors.Store(0)
	m.MaxQueueDepth.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection. Implementations must
// be safe for concurrent use; ObserveInput is called from driver
// contexts while the rest run in the interrupt worker.
type Observer interface {
	// ObserveInput is called for every frame offered to Input.
	// enqueued is false when the frame was dropped (unknown protocol
	// type or full queue).
	ObserveInput(typ EtherType, bytes int, enqueued bool)

	// ObserveDispatch is called for every frame handed to a protocol
	// handler by the softirq.
	ObserveDispatch(typ EtherType, bytes int)

	// ObserveTransmit is called for every frame handed to a driver.
	ObserveTransmit(dev string, bytes int, success bool)

	// ObserveQueueDepth is called with a protocol queue's depth after
	// each enqueue.
	ObserveQueueDepth(typ EtherType, depth int)
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveInput(EtherType, int, bool) {}
func (NoOpObserver) ObserveDispatch(EtherType, int)    {}
func (NoOpObserver) ObserveTransmit(string, int, bool) {}
func (NoOpObserver) ObserveQueueDepth(EtherType, int)  {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveInput(typ EtherType, bytes int, enqueued bool) {
	o.metrics.RecordInput(bytes, enqueued)
}

func (o *MetricsObserver) ObserveDispatch(typ EtherType, bytes int) {
	o.metrics.RecordDispatch(bytes)
}

func (o *MetricsObserver) ObserveTransmit(dev string, bytes int, success bool) {
	o.metrics.RecordTransmit(bytes, success)
}

func (o *MetricsObserver) ObserveQueueDepth(typ EtherType, depth int) {
	o.metrics.RecordQueueDepth(depth)
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
