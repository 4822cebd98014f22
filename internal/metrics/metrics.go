package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dawidmalina/alertops/internal/dispatch"
)

const namespace = "alertops"

// unknownPlugin replaces names that are not registered so that arbitrary URL
// segments cannot grow label cardinality.
const unknownPlugin = "_unknown"

// Metrics is a dispatch.Recorder that keeps Prometheus counters per plugin.
type Metrics struct {
	known func(name string) bool

	dispatches *prometheus.CounterVec
	results    *prometheus.CounterVec
	alerts     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
}

// New creates the collectors and registers them with reg. known reports
// whether a plugin name is registered; a nil known accepts every name.
func New(reg prometheus.Registerer, known func(name string) bool) *Metrics {
	if known == nil {
		known = func(string) bool { return true }
	}
	m := &Metrics{
		known: known,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Webhook deliveries by plugin and routing outcome.",
		}, []string{"plugin", "outcome", "code"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_results_total",
			Help:      "Completed handler invocations by plugin and result.",
		}, []string{"plugin", "result"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Individual alerts in dispatched payloads by plugin and alert status.",
		}, []string{"plugin", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in a plugin's Handle call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handlers_in_flight",
			Help:      "Handler invocations currently running.",
		}),
	}
	reg.MustRegister(m.dispatches, m.results, m.alerts, m.duration, m.inFlight)
	return m
}

// Record implements dispatch.Recorder.
func (m *Metrics) Record(rec dispatch.Record) {
	name := rec.Plugin
	if !m.known(name) {
		name = unknownPlugin
	}

	switch rec.Stage {
	case dispatch.StageRejected, dispatch.StageDispatched:
		m.dispatches.WithLabelValues(name, string(rec.Stage), codeLabel(rec.HTTPStatus)).Inc()
	}

	switch rec.Stage {
	case dispatch.StageDispatched:
		m.inFlight.Inc()
		m.alerts.WithLabelValues(name, "firing").Add(float64(rec.Firing))
		m.alerts.WithLabelValues(name, "resolved").Add(float64(rec.Alerts - rec.Firing))
	case dispatch.StageCompleted:
		m.inFlight.Dec()
		result := "success"
		if rec.Result == nil || !rec.Result.OK {
			result = "failure"
		}
		m.results.WithLabelValues(name, result).Inc()
		m.duration.WithLabelValues(name).Observe(rec.Duration.Seconds())
	}
}

func codeLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 200 && code < 300:
		return "2xx"
	default:
		return "other"
	}
}
