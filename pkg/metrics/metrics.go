package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for fertadvisor_recommendations_total.
const (
	OutcomeOK              = "ok"
	OutcomeValidationError = "validation_error"
	OutcomeInferenceError  = "inference_error"
)

// OtherFertilizer is the fertilizer label for names outside the catalog.
const OtherFertilizer = "other"

// Metrics groups the advisor collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	Recommendations   *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	Predicted         *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fertadvisor_recommendations_total",
				Help: "Recommendation requests by outcome",
			},
			[]string{"outcome"},
		),
		InferenceDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fertadvisor_inference_duration_seconds",
				Help:    "Time spent in classifier, regressor and label decoding",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		Predicted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fertadvisor_predicted_fertilizer_total",
				Help: "Recommended fertilizers by name",
			},
			[]string{"fertilizer"},
		),
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fertadvisor_events_published_total",
				Help: "Recommendation events by publish result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveRecommendation(outcome string, took time.Duration, fertilizer string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeValidationError {
		return // models never ran
	}
	m.InferenceDuration.Observe(took.Seconds())
	if fertilizer != "" {
		m.Predicted.WithLabelValues(fertilizer).Inc()
	}
}

// ObserveEvent records "published", "duplicate" or "failed".
func (m *Metrics) ObserveEvent(result string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}
