package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestRecordCertificationIncrementsCounterAndObservesScore(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordCertification("platform_api", "production", "AUTO_MERGE", 92)

	assert.Equal(t, float64(1), counterValue(t, reg.CertificationsTotal.WithLabelValues("platform_api", "production", "AUTO_MERGE")))
}

func TestRecordDeltasAddsPerCategory(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordDeltas(map[string]int{"config": 3, "terraform": 2})

	assert.Equal(t, float64(3), counterValue(t, reg.DeltasDetected.WithLabelValues("config")))
	assert.Equal(t, float64(2), counterValue(t, reg.DeltasDetected.WithLabelValues("terraform")))
}

func TestObserveStageRecordsDuration(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	start := time.Now().Add(-50 * time.Millisecond)

	reg.ObserveStage("drift", start)

	ch := make(chan prometheus.Metric, 1)
	reg.StageDuration.WithLabelValues("drift").Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	assert.Equal(t, uint64(1), m.Histogram.GetSampleCount())
	assert.Greater(t, m.Histogram.GetSampleSum(), 0.0)
}

func TestRecordRetryAndFleetSync(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordRetry("forge")
	reg.RecordRetry("forge")
	reg.RecordFleetSync("success")

	assert.Equal(t, float64(2), counterValue(t, reg.RetriesTotal.WithLabelValues("forge")))
	assert.Equal(t, float64(1), counterValue(t, reg.FleetSyncRuns.WithLabelValues("success")))
}
