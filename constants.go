package netstack

import "time"

const (
	// DefaultQueueDepth bounds each protocol's input queue. A full
	// queue rejects new frames rather than growing without bound, so a
	// flooded protocol cannot starve the softirq worker.
	DefaultQueueDepth = 128

	// DefaultTickInterval is the period of the timer tick. Timers fire
	// on tick boundaries, so this must be at least as frequent as the
	// shortest registered timer interval.
	DefaultTickInterval = 100 * time.Millisecond
)
