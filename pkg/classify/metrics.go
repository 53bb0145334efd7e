package classify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics tracks classification outcomes
type metrics struct {
	classifications *prometheus.CounterVec
	failures        *prometheus.CounterVec
	latency         prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_classifications_total",
			Help: "Flows classified, by predicted label",
		}, []string{"label"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_classification_errors_total",
			Help: "Flows that could not be classified, by error kind",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowguard_classification_seconds",
			Help:    "Time spent normalizing and scoring a single flow",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.classifications, m.failures, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(start time.Time, label string, err error) {
	m.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(KindOf(err)).Inc()
		return
	}
	m.classifications.WithLabelValues(label).Inc()
}
