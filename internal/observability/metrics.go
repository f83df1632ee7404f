package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-level prometheus collectors
type Metrics struct {
	monitorTicks      prometheus.Counter
	monitorTickErrors *prometheus.CounterVec
	alertsEmitted     *prometheus.CounterVec
	alertsSuppressed  *prometheus.CounterVec
	recordsIngested   *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		monitorTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagepulse_monitor_ticks_total",
			Help: "Total number of alert monitor checks run.",
		}),
		monitorTickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagepulse_monitor_errors_total",
			Help: "Total errors encountered by the alert monitor, by stage.",
		}, []string{"stage"}),
		alertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagepulse_alerts_emitted_total",
			Help: "Total alerts persisted, by metric and severity.",
		}, []string{"metric", "severity"}),
		alertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagepulse_alerts_suppressed_total",
			Help: "Total breaches skipped because of the cooldown window.",
		}, []string{"metric", "severity"}),
		recordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagepulse_metric_records_ingested_total",
			Help: "Total metric records stored, by ingestion source.",
		}, []string{"source"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.monitorTicks,
		m.monitorTickErrors,
		m.alertsEmitted,
		m.alertsSuppressed,
		m.recordsIngested,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// ObserveTick counts one monitor check
func (m *Metrics) ObserveTick() {
	if m == nil {
		return
	}
	m.monitorTicks.Inc()
}

// ObserveError counts a monitor failure at the given stage
func (m *Metrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.monitorTickErrors.WithLabelValues(stage).Inc()
}

// ObserveAlert counts an emitted alert
func (m *Metrics) ObserveAlert(metric, severity string) {
	if m == nil {
		return
	}
	m.alertsEmitted.WithLabelValues(metric, severity).Inc()
}

// ObserveSuppressed counts a breach dropped by the cooldown
func (m *Metrics) ObserveSuppressed(metric, severity string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(metric, severity).Inc()
}

// ObserveIngested counts a stored metric record
func (m *Metrics) ObserveIngested(source string) {
	if m == nil {
		return
	}
	m.recordsIngested.WithLabelValues(source).Inc()
}

// GinMiddleware records request counts and latencies per route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
