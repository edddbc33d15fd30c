package netstack

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	// Test initial state
	snap := m.Snapshot()
	if snap.FramesIn != 0 || snap.FramesOut != 0 {
		t.Errorf("Expected zero initial counters, got in=%d out=%d", snap.FramesIn, snap.FramesOut)
	}

	// Record some traffic
	m.RecordInput(1024, true)
	m.RecordInput(512, true)
	m.RecordInput(64, false) // dropped
	m.RecordDispatch(1024)
	m.RecordTransmit(2048, true)
	m.RecordTransmit(128, false)

	snap = m.Snapshot()

	if snap.FramesIn != 2 {
		t.Errorf("Expected 2 frames in, got %d", snap.FramesIn)
	}
	if snap.BytesIn != 1536 {
		t.Errorf("Expected 1536 bytes in, got %d", snap.BytesIn)
	}
	if snap.InDrops != 1 {
		t.Errorf("Expected 1 input drop, got %d", snap.InDrops)
	}
	if snap.Dispatched != 1 {
		t.Errorf("Expected 1 dispatched frame, got %d", snap.Dispatched)
	}
	if snap.FramesOut != 1 {
		t.Errorf("Expected 1 frame out, got %d", snap.FramesOut)
	}
	if snap.BytesOut != 2048 {
		t.Errorf("Expected 2048 bytes out, got %d", snap.BytesOut)
	}
	if snap.TransmitErrors != 1 {
		t.Errorf("Expected 1 transmit error, got %d", snap.TransmitErrors)
	}

	// Drop rate: 1 of 3 offered frames.
	if snap.DropRate < 33.0 || snap.DropRate > 34.0 {
		t.Errorf("Expected drop rate ~33.3%%, got %f", snap.DropRate)
	}

	if snap.UptimeNs == 0 {
		t.Error("Expected non-zero uptime")
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(3)
	m.RecordQueueDepth(7)
	m.RecordQueueDepth(5)

	if got := m.MaxQueueDepth.Load(); got != 7 {
		t.Errorf("Expected max queue depth 7, got %d", got)
	}
}

func TestMetricsStop(t *testing.T) {
	m := NewMetrics()
	time.Sleep(time.Millisecond)
	m.Stop()

	snap := m.Snapshot()
	uptime := snap.UptimeNs
	if uptime == 0 {
		t.Error("Expected non-zero uptime after stop")
	}

	// Uptime freezes at stop.
	time.Sleep(2 * time.Millisecond)
	if got := m.Snapshot().UptimeNs; got != uptime {
		t.Errorf("Uptime changed after stop: %d != %d", got, uptime)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordInput(100, true)
	m.RecordTransmit(100, true)
	m.RecordQueueDepth(9)
	m.Stop()

	m.Reset()
	snap := m.Snapshot()
	if snap.FramesIn != 0 || snap.FramesOut != 0 || snap.MaxQueueDepth != 0 {
		t.Errorf("Expected zeroed counters after reset, got %+v", snap)
	}
	if m.StopTime.Load() != 0 {
		t.Error("Expected stop time cleared after reset")
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveInput(TypeIPv4, 40, true)
	o.ObserveDispatch(TypeIPv4, 40)
	o.ObserveTransmit("net0", 40, true)
	o.ObserveQueueDepth(TypeIPv4, 4)

	snap := m.Snapshot()
	if snap.FramesIn != 1 || snap.Dispatched != 1 || snap.FramesOut != 1 {
		t.Errorf("Observer did not record: %+v", snap)
	}
	if snap.MaxQueueDepth != 4 {
		t.Errorf("Expected max queue depth 4, got %d", snap.MaxQueueDepth)
	}
}
