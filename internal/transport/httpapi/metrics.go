package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline activity for /metrics. It implements xlledger.Recorder.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	diagnostics   *prometheus.CounterVec
	requests      *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xlledger",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "outcome"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xlledger",
			Name:      "diagnostics_total",
			Help:      "Row diagnostics reported by classification, by code.",
		}, []string{"code"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xlledger",
			Name:      "http_requests_total",
			Help:      "API requests by route and result code.",
		}, []string{"route", "code"}),
	}
	for _, c := range []prometheus.Collector{m.stageDuration, m.diagnostics, m.requests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDiagnostics(counts map[string]int) {
	for code, n := range counts {
		m.diagnostics.WithLabelValues(code).Add(float64(n))
	}
}

func (m *Metrics) observeRequest(route, code string) {
	if code == "" {
		code = "OK"
	}
	m.requests.WithLabelValues(route, code).Inc()
}
