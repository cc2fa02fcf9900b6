// Package metrics provides Prometheus metrics for the usage monitor.
//
// All Collector methods are safe on a nil receiver so services can run
// without metrics wired.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
)

const namespace = "usagemonitor"

// Collector holds all Prometheus metrics for the usage monitor.
type Collector struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Accounting metrics
	ChargesTotal        prometheus.Counter
	RejectionsTotal     *prometheus.CounterVec
	ChargeRetries       prometheus.Counter
	PersistenceFailures *prometheus.CounterVec
	RemainingCapacity   prometheus.Gauge
	RecordedStatus      *prometheus.CounterVec

	// Upstream metrics
	UpstreamErrors *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid global state.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "status_class"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		ChargesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "charges_total",
				Help:      "Requests charged against a ledger entry",
			},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Guarded requests turned away, by reason",
			},
			[]string{"reason"},
		),
		ChargeRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "charge_retries_total",
				Help:      "Charge attempts retried after a concurrent update",
			},
		),
		PersistenceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Storage failures while admitting or recording requests",
			},
			[]string{"op"},
		),
		RemainingCapacity: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "remaining_capacity",
				Help:      "Remaining requests on the entry charged last",
			},
		),
		RecordedStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recorded_requests_total",
				Help:      "Requests written to the usage log, by status class",
			},
			[]string{"status_class"},
		),

		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream errors",
			},
			[]string{"type"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, string(usage.ClassOf(status))).Inc()
	c.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveCharge records a successful charge and the entry's remaining capacity.
func (c *Collector) ObserveCharge(remaining int64) {
	if c == nil {
		return
	}
	c.ChargesTotal.Inc()
	c.RemainingCapacity.Set(float64(remaining))
}

// ObserveRecorded counts a log row by the class of its status.
func (c *Collector) ObserveRecorded(status int) {
	if c == nil {
		return
	}
	c.RecordedStatus.WithLabelValues(string(usage.ClassOf(status))).Inc()
}

func (c *Collector) ObserveRejection(reason string) {
	if c == nil {
		return
	}
	c.RejectionsTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) ObserveRetry() {
	if c == nil {
		return
	}
	c.ChargeRetries.Inc()
}

func (c *Collector) ObservePersistenceFailure(op string) {
	if c == nil {
		return
	}
	c.PersistenceFailures.WithLabelValues(op).Inc()
}

func (c *Collector) ObserveUpstreamError(kind string) {
	if c == nil {
		return
	}
	c.UpstreamErrors.WithLabelValues(kind).Inc()
}

// ObserveReload records the result of a config reload attempt.
func (c *Collector) ObserveReload(err error, at time.Time) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}
