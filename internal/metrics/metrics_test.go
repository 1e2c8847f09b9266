package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PresenceWrite("ensure", "created")
	m.PresenceWrite("ensure", "created")
	m.PresenceWrite("remove", "error")
	m.Recognition("no_match")
	m.Export("range", "ok", 4)
	m.SyncDelivery("ok")
	m.SnapshotPushed()
	m.SnapshotFailed()
	m.Batch(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PresenceWrites.WithLabelValues("ensure", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PresenceWrites.WithLabelValues("remove", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recognitions.WithLabelValues("no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("range", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncDeliveries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotPushes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotErrors))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PresenceWrite("ensure", "created")
		m.Batch(1)
		m.Recognition("ok")
		m.Export("all", "ok", 1)
		m.SyncDelivery("ok")
		m.SnapshotPushed()
		m.SnapshotFailed()
	})
}
