package diagsdk

import (
	"sync/atomic"
	"time"
)

// Metrics tracks cumulative SDK activity counters (SPEC_FULL.md
// §3-FULL.2): coredump capture outcomes, event storage activity, chunk
// emission counts, bytes sent, response status classes, and the crash
// count observed at the most recent boot.
type Metrics struct {
	CoredumpsCaptured  atomic.Uint64
	CoredumpsTruncated atomic.Uint64
	CoredumpsAborted   atomic.Uint64

	EventsAppended atomic.Uint64
	EventsDropped  atomic.Uint64

	ChunksInitial      atomic.Uint64
	ChunksContinuation atomic.Uint64
	BytesSent          atomic.Uint64

	HTTP2xx atomic.Uint64
	HTTP4xx atomic.Uint64
	HTTP5xx atomic.Uint64

	CrashCountAtBoot atomic.Uint32

	StartTime atomic.Int64 // UnixNano
}

// NewMetrics creates a Metrics instance stamped with the current time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCoredumpCapture records the outcome of one capture attempt.
func (m *Metrics) RecordCoredumpCapture(truncated bool) {
	m.CoredumpsCaptured.Add(1)
	if truncated {
		m.CoredumpsTruncated.Add(1)
	}
}

// RecordCoredumpAborted records a capture that failed outright (a
// storage error, not a truncation).
func (m *Metrics) RecordCoredumpAborted() {
	m.CoredumpsAborted.Add(1)
}

// RecordEventAppend records one event store append outcome.
func (m *Metrics) RecordEventAppend(dropped bool) {
	if dropped {
		m.EventsDropped.Add(1)
		return
	}
	m.EventsAppended.Add(1)
}

// RecordChunkEmitted records one chunk handed off to the transport.
func (m *Metrics) RecordChunkEmitted(continuation bool, n int) {
	if continuation {
		m.ChunksContinuation.Add(1)
	} else {
		m.ChunksInitial.Add(1)
	}
	m.BytesSent.Add(uint64(n))
}

// RecordHTTPStatus buckets an HTTP response by its status class.
func (m *Metrics) RecordHTTPStatus(statusCode int) {
	switch {
	case statusCode >= 200 && statusCode < 300:
		m.HTTP2xx.Add(1)
	case statusCode >= 400 && statusCode < 500:
		m.HTTP4xx.Add(1)
	case statusCode >= 500 && statusCode < 600:
		m.HTTP5xx.Add(1)
	}
}

// RecordBootCrashCount records the crash count reconciled at boot.
func (m *Metrics) RecordBootCrashCount(n uint32) {
	m.CrashCountAtBoot.Store(n)
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics for
// reporting or serialization.
type MetricsSnapshot struct {
	CoredumpsCaptured  uint64
	CoredumpsTruncated uint64
	CoredumpsAborted   uint64

	EventsAppended uint64
	EventsDropped  uint64

	ChunksInitial      uint64
	ChunksContinuation uint64
	BytesSent          uint64

	HTTP2xx uint64
	HTTP4xx uint64
	HTTP5xx uint64

	CrashCountAtBoot uint32
	UptimeNs         uint64
}

// Snapshot copies every counter into a plain value type.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		CoredumpsCaptured:  m.CoredumpsCaptured.Load(),
		CoredumpsTruncated: m.CoredumpsTruncated.Load(),
		CoredumpsAborted:   m.CoredumpsAborted.Load(),
		EventsAppended:     m.EventsAppended.Load(),
		EventsDropped:      m.EventsDropped.Load(),
		ChunksInitial:      m.ChunksInitial.Load(),
		ChunksContinuation: m.ChunksContinuation.Load(),
		BytesSent:          m.BytesSent.Load(),
		HTTP2xx:            m.HTTP2xx.Load(),
		HTTP4xx:            m.HTTP4xx.Load(),
		HTTP5xx:            m.HTTP5xx.Load(),
		CrashCountAtBoot:   m.CrashCountAtBoot.Load(),
		UptimeNs:           uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
}

// Observer allows pluggable metrics collection, in case a caller wants
// to forward these counts into their own telemetry system instead of
// (or in addition to) the built-in Metrics.
type Observer interface {
	ObserveCoredumpCapture(truncated bool)
	ObserveCoredumpAborted()
	ObserveEventAppend(dropped bool)
	ObserveChunkEmitted(continuation bool, n int)
	ObserveHTTPStatus(statusCode int)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCoredumpCapture(bool)   {}
func (NoOpObserver) ObserveCoredumpAborted()       {}
func (NoOpObserver) ObserveEventAppend(bool)       {}
func (NoOpObserver) ObserveChunkEmitted(bool, int) {}
func (NoOpObserver) ObserveHTTPStatus(int)         {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCoredumpCapture(truncated bool) {
	o.metrics.RecordCoredumpCapture(truncated)
}

func (o *MetricsObserver) ObserveCoredumpAborted() {
	o.metrics.RecordCoredumpAborted()
}

func (o *MetricsObserver) ObserveEventAppend(dropped bool) {
	o.metrics.RecordEventAppend(dropped)
}

func (o *MetricsObserver) ObserveChunkEmitted(continuation bool, n int) {
	o.metrics.RecordChunkEmitted(continuation, n)
}

func (o *MetricsObserver) ObserveHTTPStatus(statusCode int) {
	o.metrics.RecordHTTPStatus(statusCode)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
