// Package metrics holds prometheus metrics of the service.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "collections"

type Metrics struct {
	registry *prometheus.Registry

	matches      *prometheus.CounterVec
	selections   *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	queueDepth   prometheus.Gauge
	dropped      prometheus.Counter
	breakerState *prometheus.GaugeVec
	reconciled   *prometheus.CounterVec
}

// New creates metrics in a new registry, with go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matches by matcher and event (created, complete, failed, reused).",
		}, []string{"matcher", "event"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Selections by event (created, complete, failed, reused).",
		}, []string{"event"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent by background jobs.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}, []string{"kind", "status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_dropped_total",
			Help:      "Jobs rejected because the queue is full.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "State of circuit breakers. 0: closed, 1: half-open, 2: open.",
		}, []string{"name"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_total",
			Help:      "Records handled by background loops, by loop and kind.",
		}, []string{"loop", "kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.matches, m.selections, m.jobDuration, m.queueDepth, m.dropped, m.breakerState, m.reconciled,
	)
	return m
}

// Handler serves metrics for prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MatchEvent(matcher string, event string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(matcher, event).Inc()
}

func (m *Metrics) SelectionEvent(event string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveJob(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobDuration.WithLabelValues(kind, status).Observe(d.Seconds())
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) Reconciled(loop string, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.reconciled.WithLabelValues(loop, kind).Add(float64(n))
}

// BreakerStateChanged is for gobreaker.Settings.OnStateChange.
func (m *Metrics) BreakerStateChanged(name string, _ gobreaker.State, to gobreaker.State) {
	if m == nil {
		return
	}
	v := 0.0
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.breakerState.WithLabelValues(name).Set(v)
}
