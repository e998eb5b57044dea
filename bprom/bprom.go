// Package bprom adapts breaker.Instrument to Prometheus, exporting the
// breaker's current state as a gauge and its transition/rejection
// counts as counters, labeled by a caller-supplied breaker name.
package bprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eugener/breaker"
)

// Metrics holds the Prometheus collectors shared by every Instrument
// this package creates. Construct one per process and derive a
// per-breaker Instrument from it with For.
type Metrics struct {
	state    *prometheus.GaugeVec   // labels: breaker
	rejects  *prometheus.CounterVec // labels: breaker
	opened   *prometheus.CounterVec // labels: breaker
	halfOpen *prometheus.CounterVec // labels: breaker
	closed   *prometheus.CounterVec // labels: breaker
}

// NewMetrics creates and registers the circuit breaker collectors
// against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open).",
		}, []string{"breaker"}),

		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breaker",
			Name:      "rejects_total",
			Help:      "Total calls rejected without invoking the operation.",
		}, []string{"breaker"}),

		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breaker",
			Name:      "opened_total",
			Help:      "Total transitions into the open state.",
		}, []string{"breaker"}),

		halfOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breaker",
			Name:      "half_open_total",
			Help:      "Total transitions into the half_open state.",
		}, []string{"breaker"}),

		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breaker",
			Name:      "closed_total",
			Help:      "Total transitions into the closed state.",
		}, []string{"breaker"}),
	}

	reg.MustRegister(m.state, m.rejects, m.opened, m.halfOpen, m.closed)
	return m
}

// For returns a breaker.Instrument that reports events under name. Call
// it once per CircuitBreaker and pass the result to NewCircuitBreaker.
func (m *Metrics) For(name string) breaker.Instrument {
	return &instrument{m: m, name: name}
}

type instrument struct {
	m    *Metrics
	name string
}

func (i *instrument) OnCallRejected() {
	i.m.rejects.WithLabelValues(i.name).Inc()
}

func (i *instrument) OnOpen() {
	i.m.opened.WithLabelValues(i.name).Inc()
	i.m.state.WithLabelValues(i.name).Set(float64(breaker.StateOpen))
}

func (i *instrument) OnHalfOpen() {
	i.m.halfOpen.WithLabelValues(i.name).Inc()
	i.m.state.WithLabelValues(i.name).Set(float64(breaker.StateHalfOpen))
}

func (i *instrument) OnClosed() {
	i.m.closed.WithLabelValues(i.name).Inc()
	i.m.state.WithLabelValues(i.name).Set(float64(breaker.StateClosed))
}
