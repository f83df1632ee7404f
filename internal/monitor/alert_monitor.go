package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/logsink"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/observability"
	"github.com/pagepulse/pagepulse/internal/storage"
)

const (
	logSource           = "alert_monitor"
	defaultCheckTimeout = 30 * time.Second
)

// ErrInvalidInterval is returned by Start when the interval is not positive
var ErrInvalidInterval = errors.New("monitor interval must be positive")

// Option configures an AlertMonitor
type Option func(*AlertMonitor)

// WithThresholds replaces the default thresholds
func WithThresholds(t Thresholds) Option {
	return func(m *AlertMonitor) { m.thresholds = t }
}

// WithCooldown sets the minimum gap between alerts sharing a metric and severity
func WithCooldown(d time.Duration) Option {
	return func(m *AlertMonitor) { m.cooldown = newCooldownTracker(d) }
}

// WithLogSink sets where emitted alerts and check failures are forwarded
func WithLogSink(sink logsink.Sink) Option {
	return func(m *AlertMonitor) { m.sink = sink }
}

// WithNotificationChannel sets the channel emitted alerts are sent on
func WithNotificationChannel(ch NotificationChannel) Option {
	return func(m *AlertMonitor) { m.channel = ch }
}

// WithMetrics attaches prometheus collectors
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *AlertMonitor) { m.metrics = metrics }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *AlertMonitor) { m.now = now }
}

// WithCheckTimeout bounds a single check started by the timer loop
func WithCheckTimeout(d time.Duration) Option {
	return func(m *AlertMonitor) { m.checkTimeout = d }
}

// CheckResult summarizes one check
type CheckResult struct {
	Emitted    []*model.Alert
	Suppressed int
	Errors     int
}

// AlertMonitor periodically compares recent metric records against thresholds
// and persists deduplicated alerts.
type AlertMonitor struct {
	logger       *zap.Logger
	store        storage.MetricStore
	sink         logsink.Sink
	channel      NotificationChannel
	metrics      *observability.Metrics
	thresholds   Thresholds
	now          func() time.Time
	checkTimeout time.Duration

	// mu guards the run state
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// checkMu serializes checks and owns the cooldown tracker
	checkMu  sync.Mutex
	cooldown *cooldownTracker
}

// NewAlertMonitor creates a stopped monitor reading from store
func NewAlertMonitor(store storage.MetricStore, logger *zap.Logger, opts ...Option) *AlertMonitor {
	m := &AlertMonitor{
		logger:       logger.Named("alert-monitor"),
		store:        store,
		sink:         logsink.Nop{},
		channel:      nopChannel{},
		thresholds:   DefaultThresholds(),
		now:          time.Now,
		checkTimeout: defaultCheckTimeout,
		cooldown:     newCooldownTracker(DefaultCooldown),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sink == nil {
		m.sink = logsink.Nop{}
	}
	if m.channel == nil {
		m.channel = nopChannel{}
	}
	return m
}

// Start runs a check immediately and then again interval after each check
// finishes. Calling Start on a running monitor replaces the existing loop.
func (m *AlertMonitor) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.stopLocked()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running = true

	go m.run(loopCtx, interval, done)

	m.logger.Info("Alert monitor started", zap.Duration("interval", interval))
	return nil
}

// Stop cancels future checks. A check already in progress runs to completion.
func (m *AlertMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.stopLocked()
	m.logger.Info("Alert monitor stopped")
}

func (m *AlertMonitor) stopLocked() {
	m.cancel()
	m.running = false
}

// Running reports whether a loop is scheduled
func (m *AlertMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Done returns a channel closed when the current loop exits, or nil if the monitor never started
func (m *AlertMonitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// run executes checks on a fixed-delay timer until ctx is cancelled
func (m *AlertMonitor) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		// a restart may already own the run state
		if m.done == done {
			m.running = false
		}
		m.mu.Unlock()
		close(done)
	}()

	m.scheduledCheck(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if ctx.Err() != nil {
				return
			}
			m.scheduledCheck(ctx)
			timer.Reset(interval)
		}
	}
}

// scheduledCheck detaches the check from loop cancellation so Stop lets it finish
func (m *AlertMonitor) scheduledCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.checkTimeout)
	defer cancel()
	m.Check(checkCtx)
}

// Check runs one evaluation pass. Failures are logged per metric family and
// per alert; they never abort the remaining evaluations.
func (m *AlertMonitor) Check(ctx context.Context) CheckResult {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	m.metrics.ObserveTick()

	var result CheckResult
	now := m.now()

	for _, f := range families {
		records, err := m.store.QueryRecords(ctx, storage.RecordFilter{
			Since: now.Add(-f.window),
			Types: f.types,
		})
		if err != nil {
			result.Errors++
			m.metrics.ObserveError("fetch")
			m.logger.Error("Failed to fetch metric records",
				zap.String("family", f.name),
				zap.Error(err))
			m.sink.Log(ctx, logsink.Entry{
				Level:  logsink.LevelError,
				Source: logSource,
				Action: "fetch_failed",
				Details: map[string]interface{}{
					"family": f.name,
					"error":  err.Error(),
				},
				Timestamp: now,
			})
			continue
		}

		samples := collectSamples(records, f.metrics)
		for _, metric := range f.metrics {
			b := evaluate(metric, samples[metric], m.thresholds, f.window)
			if b == nil {
				continue
			}
			b.context["family"] = f.name
			m.emit(ctx, b, now, &result)
		}
	}

	m.logger.Debug("Alert check finished",
		zap.Int("emitted", len(result.Emitted)),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("errors", result.Errors))

	return result
}

// emit applies the cooldown and persists the breach as an alert
func (m *AlertMonitor) emit(ctx context.Context, b *breach, now time.Time, result *CheckResult) {
	if !m.cooldown.allow(b.key(), now) {
		result.Suppressed++
		m.metrics.ObserveSuppressed(b.metric, string(b.severity))
		m.logger.Debug("Alert suppressed by cooldown",
			zap.String("metric", b.metric),
			zap.String("severity", string(b.severity)))
		return
	}

	alert, err := m.store.InsertAlert(ctx, &model.AlertInput{
		Type:         b.alertType,
		Severity:     b.severity,
		Metric:       b.metric,
		CurrentValue: b.value,
		Threshold:    b.threshold,
		Message:      b.message,
		Context:      b.context,
	})
	if err != nil {
		result.Errors++
		m.metrics.ObserveError("insert")
		m.logger.Error("Failed to persist alert",
			zap.String("metric", b.metric),
			zap.String("severity", string(b.severity)),
			zap.Error(err))
		m.sink.Log(ctx, logsink.Entry{
			Level:  logsink.LevelError,
			Source: logSource,
			Action: "alert_persist_failed",
			Details: map[string]interface{}{
				"metric":   b.metric,
				"severity": string(b.severity),
				"error":    err.Error(),
			},
			Timestamp: now,
		})
		return
	}

	result.Emitted = append(result.Emitted, alert)
	m.metrics.ObserveAlert(alert.Metric, string(alert.Severity))

	level := logsink.LevelWarn
	if alert.Severity == model.AlertSeverityCritical {
		level = logsink.LevelError
	}
	m.sink.Log(ctx, logsink.Entry{
		Level:  level,
		Source: logSource,
		Action: "alert_emitted",
		Details: map[string]interface{}{
			"alert_id":  alert.ID,
			"type":      string(alert.Type),
			"severity":  string(alert.Severity),
			"metric":    alert.Metric,
			"value":     alert.CurrentValue,
			"threshold": alert.Threshold,
		},
		Timestamp: now,
	})

	m.logger.Warn("Performance alert emitted",
		zap.String("id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("metric", alert.Metric),
		zap.Float64("value", alert.CurrentValue),
		zap.Float64("threshold", alert.Threshold))

	if err := m.channel.Send(ctx, alert); err != nil {
		m.logger.Warn("Failed to send alert notification",
			zap.String("id", alert.ID),
			zap.Error(err))
	}
}
