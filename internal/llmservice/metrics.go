package llmservice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusCacheHit = "cache_hit"
)

// Metrics instruments backend calls. A nil *Metrics records nothing.
type Metrics struct {
	CallLatency *prometheus.HistogramVec
	CallsTotal  *prometheus.CounterVec
	Attempts    *prometheus.CounterVec
	InFlight    *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_call_latency_seconds",
				Help:    "Backend call latency in seconds, retries included.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model", "status"},
		),
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Backend calls by outcome.",
			},
			[]string{"model", "status"}, // success, error, cache_hit
		),
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_call_attempts_total",
				Help: "Requests sent to the model, retries included.",
			},
			[]string{"model"},
		),
		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llm_calls_in_flight",
				Help: "Backend calls currently holding a concurrency slot.",
			},
			[]string{"model"},
		),
	}
}

func (m *Metrics) observe(model, status string, attempts int, started time.Time) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(model, status).Inc()
	if status == statusCacheHit {
		return
	}
	m.CallLatency.WithLabelValues(model, status).Observe(time.Since(started).Seconds())
	m.Attempts.WithLabelValues(model).Add(float64(attempts))
}

func (m *Metrics) inFlight(model string, delta float64) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(model).Add(delta)
}
