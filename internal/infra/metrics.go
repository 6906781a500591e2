package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ticksProcessed    atomic.Uint64
	movementsDetected atomic.Uint64
	messagesEnqueued  atomic.Uint64
	messagesSpoken    atomic.Uint64
	sendFailures      atomic.Uint64
	pollFailures      atomic.Uint64

	// Gauges
	queueDepth       atomic.Int32
	speakerClients   atomic.Int32
	dashboardClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records one processed price sample.
func (m *Metrics) RecordTick() {
	m.ticksProcessed.Add(1)
}

// RecordMovement records one detected movement event.
func (m *Metrics) RecordMovement() {
	m.movementsDetected.Add(1)
}

// RecordEnqueue records a message entering the speech queue.
func (m *Metrics) RecordEnqueue() {
	m.messagesEnqueued.Add(1)
}

// RecordMessageSpoken records one completed speaker broadcast.
func (m *Metrics) RecordMessageSpoken() {
	m.messagesSpoken.Add(1)
}

// RecordSendFailure records a failed speaker broadcast.
func (m *Metrics) RecordSendFailure() {
	m.sendFailures.Add(1)
}

// RecordPollFailure records a failed price-source polling cycle.
func (m *Metrics) RecordPollFailure() {
	m.pollFailures.Add(1)
}

// SetQueueDepth sets the current speech queue depth.
func (m *Metrics) SetQueueDepth(depth int32) {
	m.queueDepth.Store(depth)
}

// SetSpeakerClients sets the current speaker client count.
func (m *Metrics) SetSpeakerClients(count int32) {
	m.speakerClients.Store(count)
}

// SetDashboardClients sets the current dashboard client count.
func (m *Metrics) SetDashboardClients(count int32) {
	m.dashboardClients.Store(count)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksProcessed    uint64
	MovementsDetected uint64
	MessagesEnqueued  uint64
	MessagesSpoken    uint64
	SendFailures      uint64
	PollFailures      uint64
	QueueDepth        int32
	SpeakerClients    int32
	DashboardClients  int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TicksProcessed:    m.ticksProcessed.Load(),
		MovementsDetected: m.movementsDetected.Load(),
		MessagesEnqueued:  m.messagesEnqueued.Load(),
		MessagesSpoken:    m.messagesSpoken.Load(),
		SendFailures:      m.sendFailures.Load(),
		PollFailures:      m.pollFailures.Load(),
		QueueDepth:        m.queueDepth.Load(),
		SpeakerClients:    m.speakerClients.Load(),
		DashboardClients:  m.dashboardClients.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ticksProcessed.Store(0)
	m.movementsDetected.Store(0)
	m.messagesEnqueued.Store(0)
	m.messagesSpoken.Store(0)
	m.sendFailures.Store(0)
	m.pollFailures.Store(0)
	m.queueDepth.Store(0)
	m.speakerClients.Store(0)
	m.dashboardClients.Store(0)
}
