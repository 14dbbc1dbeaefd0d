package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); fed by subscribing ObservePhase to
// the dispatch bus, so workers stay metrics-agnostic.
type Metrics struct {
	InvocationsFulfilled *prometheus.CounterVec
	InvocationsRejected  *prometheus.CounterVec
	DispatchDuration     *prometheus.HistogramVec
	QueueDepthHigh       prometheus.Gauge
	QueueDepthNormal     prometheus.Gauge
	QueueDepthLow        prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvocationsFulfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invocations_fulfilled_total",
			Help: "Total number of invocations that settled successfully.",
		}, []string{"action"}),

		InvocationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invocations_rejected_total",
			Help: "Total number of invocations that settled with an error.",
		}, []string{"action"}),

		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invocation_dispatch_seconds",
			Help:    "Dispatch latency from pending emission to settlement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),

		QueueDepthHigh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_high",
			Help: "Current number of items in the high-priority queue.",
		}),
		QueueDepthNormal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_normal",
			Help: "Current number of items in the normal-priority queue.",
		}),
		QueueDepthLow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_low",
			Help: "Current number of items in the low-priority queue.",
		}),
	}

	reg.MustRegister(
		m.InvocationsFulfilled,
		m.InvocationsRejected,
		m.DispatchDuration,
		m.QueueDepthHigh,
		m.QueueDepthNormal,
		m.QueueDepthLow,
	)

	return m
}

// ObservePhase folds one phase event into the instruments. It is subscribed
// to the dispatch bus in main, which delivers events serially, so no
// additional synchronization is needed here.
func (m *Metrics) ObservePhase(ev domain.PhaseEvent) {
	switch ev.Phase {
	case domain.PhaseFulfilled:
		m.InvocationsFulfilled.WithLabelValues(ev.Action).Inc()
		m.DispatchDuration.WithLabelValues(ev.Action).Observe(ev.Elapsed.Seconds())
	case domain.PhaseRejected:
		m.InvocationsRejected.WithLabelValues(ev.Action).Inc()
		m.DispatchDuration.WithLabelValues(ev.Action).Observe(ev.Elapsed.Seconds())
	}
}

// SetQueueDepths updates the gauges from a queue snapshot.
func (m *Metrics) SetQueueDepths(high, normal, low int) {
	m.QueueDepthHigh.Set(float64(high))
	m.QueueDepthNormal.Set(float64(normal))
	m.QueueDepthLow.Set(float64(low))
}
