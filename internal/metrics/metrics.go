package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the attendance engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PresenceWrites *prometheus.CounterVec
	BatchSize      prometheus.Histogram
	Recognitions   *prometheus.CounterVec
	Exports        *prometheus.CounterVec
	ExportSessions prometheus.Histogram
	SyncDeliveries *prometheus.CounterVec
	SnapshotPushes prometheus.Counter
	SnapshotErrors prometheus.Counter
}

// New registers all collectors with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PresenceWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_presence_writes_total",
				Help: "Presence store writes by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollcall_mark_batch_size",
				Help:    "Number of new ids written per mark batch",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),
		Recognitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_recognitions_total",
				Help: "Recognition merges by outcome",
			},
			[]string{"outcome"},
		),
		Exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_exports_total",
				Help: "Report exports by range kind and outcome",
			},
			[]string{"range", "outcome"},
		),
		ExportSessions: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollcall_export_sessions",
				Help:    "Sessions included per export",
				Buckets: prometheus.ExponentialBuckets(1, 2, 9),
			},
		),
		SyncDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_sync_deliveries_total",
				Help: "Sheet sync webhook deliveries by outcome",
			},
			[]string{"outcome"},
		),
		SnapshotPushes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rollcall_snapshot_pushes_total",
				Help: "Snapshots pushed to subscribers",
			},
		),
		SnapshotErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rollcall_snapshot_errors_total",
				Help: "Snapshot reloads that failed",
			},
		),
	}
}

// PresenceWrite counts one store write.
func (m *Metrics) PresenceWrite(op, outcome string) {
	if m == nil {
		return
	}
	m.PresenceWrites.WithLabelValues(op, outcome).Inc()
}

// Batch observes how many writes a batch issued.
func (m *Metrics) Batch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

// Recognition counts one merge outcome.
func (m *Metrics) Recognition(outcome string) {
	if m == nil {
		return
	}
	m.Recognitions.WithLabelValues(outcome).Inc()
}

// Export counts one export attempt and the sessions it covered.
func (m *Metrics) Export(rangeKind, outcome string, sessions int) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(rangeKind, outcome).Inc()
	if sessions > 0 {
		m.ExportSessions.Observe(float64(sessions))
	}
}

// SyncDelivery counts one webhook delivery.
func (m *Metrics) SyncDelivery(outcome string) {
	if m == nil {
		return
	}
	m.SyncDeliveries.WithLabelValues(outcome).Inc()
}

// SnapshotPushed counts a snapshot delivered to a subscriber.
func (m *Metrics) SnapshotPushed() {
	if m == nil {
		return
	}
	m.SnapshotPushes.Inc()
}

// SnapshotFailed counts a failed snapshot reload.
func (m *Metrics) SnapshotFailed() {
	if m == nil {
		return
	}
	m.SnapshotErrors.Inc()
}
