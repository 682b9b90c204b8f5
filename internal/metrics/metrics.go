// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boostskilla_bot"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics bundles the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	updates  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	groups   *prometheus.CounterVec
	logons   prometheus.Counter
	bootTime prometheus.Gauge
}

// New registers the bot collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Handled updates by action and result.",
		}, []string{"action", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent handling an update.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_changes_total",
			Help:      "Group registration changes by outcome.",
		}, []string{"outcome"}),
		logons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logons_total",
			Help:      "Daily log-ons written.",
		}),
		bootTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boot_time_seconds",
			Help:      "Bot startup time.",
		}),
	}

	m.registry.MustRegister(
		m.updates,
		m.duration,
		m.groups,
		m.logons,
		m.bootTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.bootTime.Set(float64(time.Now().Unix()))

	return m
}

// ObserveUpdate records one handled update.
func (m *Metrics) ObserveUpdate(action string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.updates.WithLabelValues(action, result).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// GroupChanged counts a register or unregister outcome.
func (m *Metrics) GroupChanged(outcome string) {
	if m == nil {
		return
	}
	m.groups.WithLabelValues(outcome).Inc()
}

// LoggedOn counts a written log-on.
func (m *Metrics) LoggedOn() {
	if m == nil {
		return
	}
	m.logons.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
