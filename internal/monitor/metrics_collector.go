package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/observability"
	"github.com/pagepulse/pagepulse/internal/storage"
)

// SampleFunc takes one host measurement, returned as a metric record context
type SampleFunc func(ctx context.Context) (map[string]interface{}, error)

// MetricsCollector samples host resource usage and stores it as system metric records
type MetricsCollector struct {
	logger   *zap.Logger
	store    storage.MetricStore
	metrics  *observability.Metrics
	interval time.Duration
	sample   SampleFunc
	mu       sync.RWMutex
	last     map[string]interface{}
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(store storage.MetricStore, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *MetricsCollector {
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		store:    store,
		metrics:  metrics,
		interval: interval,
		sample:   SampleHost,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithSampler replaces the host sampler, mainly for tests
func (c *MetricsCollector) WithSampler(fn SampleFunc) *MetricsCollector {
	c.sample = fn
	return c
}

// Start starts the metrics collector
func (c *MetricsCollector) Start(ctx context.Context) error {
	if c.interval <= 0 {
		return fmt.Errorf("metrics collector interval must be positive, got %s", c.interval)
	}
	c.logger.Info("Starting metrics collector", zap.Duration("interval", c.interval))

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("metrics collector already started")
	}
	c.started = true
	c.mu.Unlock()

	go c.collectLoop(ctx)

	return nil
}

// Stop stops the metrics collector and waits for an in-flight sample to finish
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping metrics collector")
		close(c.stop)
	})

	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		<-c.done
	}
}

// collectLoop runs the metrics collection loop
func (c *MetricsCollector) collectLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Collect(ctx); err != nil {
				c.logger.Error("Failed to collect host metrics", zap.Error(err))
			}
		}
	}
}

// Collect takes one sample and stores it
func (c *MetricsCollector) Collect(ctx context.Context) error {
	values, err := c.sample(ctx)
	if err != nil {
		return fmt.Errorf("failed to sample host: %w", err)
	}

	record := &model.MetricRecord{
		Type:    model.RecordTypeSystem,
		Context: values,
	}
	if err := c.store.InsertRecord(ctx, record); err != nil {
		return err
	}
	c.metrics.ObserveIngested("host")

	c.mu.Lock()
	c.last = values
	c.mu.Unlock()

	c.logger.Debug("Metrics collected",
		zap.Any("memory_usage", values[MetricMemoryUsage]),
		zap.Any("cpu_usage", values["cpu_usage"]))

	return nil
}

// GetMetrics returns a copy of the latest sample
func (c *MetricsCollector) GetMetrics() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metrics := make(map[string]interface{}, len(c.last))
	for k, v := range c.last {
		metrics[k] = v
	}
	return metrics
}

// SampleHost measures memory and CPU utilisation in percent
func SampleHost(ctx context.Context) (map[string]interface{}, error) {
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory usage: %w", err)
	}

	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}

	values := map[string]interface{}{
		MetricMemoryUsage: memInfo.UsedPercent,
	}
	if len(cpuPercent) > 0 {
		values["cpu_usage"] = cpuPercent[0]
	}
	return values, nil
}
