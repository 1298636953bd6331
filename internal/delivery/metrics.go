package delivery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus collectors.
type Metrics struct {
	deliveries *prometheus.CounterVec
	segments   prometheus.Counter
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gewebridge_deliveries_total",
			Help: "Outbound replies by kind and outcome.",
		}, []string{"kind", "outcome"}),
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gewebridge_voice_segments_total",
			Help: "Voice segments accepted by the provider.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gewebridge_delivery_duration_seconds",
			Help:    "Time spent delivering one reply, including conversion and pacing.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.deliveries, m.segments, m.duration)
	}
	return m
}

func (m *Metrics) observe(res Result, took time.Duration) {
	if m == nil {
		return
	}
	kind := string(res.Kind)
	m.deliveries.WithLabelValues(kind, res.Outcome()).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) segmentSent() {
	if m == nil {
		return
	}
	m.segments.Inc()
}
