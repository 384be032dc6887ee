package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core service metrics.
type Metrics struct {
	// Chunk buffer
	ChunksAdded   *prometheus.CounterVec
	ChunksExpired prometheus.Counter
	BufferEntries prometheus.Gauge

	// Snapshot repository
	SnapshotsSaved   prometheus.Counter
	SnapshotsEvicted prometheus.Counter
	CompareOps       prometheus.Counter

	// HTTP boundary
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Backend
	NATSConnected prometheus.Gauge
}

// NewMetrics creates all core metrics, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fingercloak",
				Subsystem: "chunks",
				Name:      "added_total",
				Help:      "Total number of network chunks buffered",
			},
			[]string{"kind"},
		),

		ChunksExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fingercloak",
				Subsystem: "chunks",
				Name:      "expired_total",
				Help:      "Total number of chunk entries dropped by TTL",
			},
		),

		BufferEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fingercloak",
				Subsystem: "chunks",
				Name:      "buffer_entries",
				Help:      "Current number of live correlation entries",
			},
		),

		SnapshotsSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fingercloak",
				Subsystem: "snapshots",
				Name:      "saved_total",
				Help:      "Total number of fingerprint snapshots saved",
			},
		),

		SnapshotsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fingercloak",
				Subsystem: "snapshots",
				Name:      "evicted_total",
				Help:      "Total number of snapshots dropped by retention",
			},
		),

		CompareOps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fingercloak",
				Subsystem: "snapshots",
				Name:      "compare_total",
				Help:      "Total number of snapshot comparisons",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fingercloak",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fingercloak",
				Subsystem: "http",
				Name:      "duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fingercloak",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

// RecordChunkAdded increments the per-kind chunk counter.
func (m *Metrics) RecordChunkAdded(kind string) {
	m.ChunksAdded.WithLabelValues(kind).Inc()
}

// RecordChunkExpired increments the TTL eviction counter.
func (m *Metrics) RecordChunkExpired() {
	m.ChunksExpired.Inc()
}

// SetBufferEntries updates the live-entry gauge.
func (m *Metrics) SetBufferEntries(n int) {
	m.BufferEntries.Set(float64(n))
}

// RecordSnapshotSaved increments the snapshot counter.
func (m *Metrics) RecordSnapshotSaved() {
	m.SnapshotsSaved.Inc()
}

// RecordSnapshotEvicted increments the retention eviction counter.
func (m *Metrics) RecordSnapshotEvicted() {
	m.SnapshotsEvicted.Inc()
}

// RecordCompare increments the comparison counter.
func (m *Metrics) RecordCompare() {
	m.CompareOps.Inc()
}

// RecordHTTPRequest accounts one finished HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordNATSStatus updates the backend connection gauge.
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}
