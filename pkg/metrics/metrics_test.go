package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRecommendation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRecommendation(OutcomeOK, 2*time.Millisecond, "Urea")
	m.ObserveRecommendation(OutcomeOK, time.Millisecond, "Urea")
	m.ObserveRecommendation(OutcomeValidationError, 0, "")
	m.ObserveRecommendation(OutcomeInferenceError, time.Millisecond, "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Recommendations.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recommendations.WithLabelValues(OutcomeValidationError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predicted.WithLabelValues("Urea")))
	// validation failures never reach the models
	assert.Equal(t, uint64(3), histogramCount(t, reg, "fertadvisor_inference_duration_seconds"))
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRecommendation(OutcomeOK, time.Second, "DAP")
		m.ObserveEvent("published")
	})
}

func TestObserveEvent(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEvent("published")
	m.ObserveEvent("duplicate")
	m.ObserveEvent("published")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("published")))
}
