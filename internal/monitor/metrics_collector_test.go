package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/storage"
)

func fixedSample(memory float64) SampleFunc {
	return func(context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{
			MetricMemoryUsage: memory,
			"cpu_usage":       12.5,
		}, nil
	}
}

func TestMetricsCollector_Collect(t *testing.T) {
	store := newMemoryStore()
	collector := NewMetricsCollector(store, time.Second, zaptest.NewLogger(t), nil).
		WithSampler(fixedSample(91))

	require.NoError(t, collector.Collect(context.Background()))

	records, err := store.QueryRecords(context.Background(), storage.RecordFilter{
		Types: []string{model.RecordTypeSystem},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 91.0, records[0].Context[MetricMemoryUsage])

	metrics := collector.GetMetrics()
	assert.Equal(t, 91.0, metrics[MetricMemoryUsage])
	assert.Equal(t, 12.5, metrics["cpu_usage"])

	// the returned map is a copy
	metrics[MetricMemoryUsage] = 0.0
	assert.Equal(t, 91.0, collector.GetMetrics()[MetricMemoryUsage])
}

func TestMetricsCollector_SampleError(t *testing.T) {
	store := newMemoryStore()
	collector := NewMetricsCollector(store, time.Second, zaptest.NewLogger(t), nil).
		WithSampler(func(context.Context) (map[string]interface{}, error) {
			return nil, errors.New("no /proc")
		})

	assert.ErrorContains(t, collector.Collect(context.Background()), "no /proc")
	assert.Empty(t, collector.GetMetrics())
}

func TestMetricsCollector_FeedsMonitor(t *testing.T) {
	store := newMemoryStore()
	collector := NewMetricsCollector(store, time.Second, zaptest.NewLogger(t), nil).
		WithSampler(fixedSample(95))
	require.NoError(t, collector.Collect(context.Background()))

	m := NewAlertMonitor(store, zaptest.NewLogger(t))
	result := m.Check(context.Background())
	require.Len(t, result.Emitted, 1)
	assert.Equal(t, MetricMemoryUsage, result.Emitted[0].Metric)
	assert.Equal(t, model.AlertSeverityWarning, result.Emitted[0].Severity)
}

func TestMetricsCollector_StartStop(t *testing.T) {
	store := newMemoryStore()
	collector := NewMetricsCollector(store, 10*time.Millisecond, zaptest.NewLogger(t), nil).
		WithSampler(fixedSample(40))

	require.NoError(t, collector.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(collector.GetMetrics()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	collector.Stop()
	collector.Stop()
}

func TestMetricsCollector_InvalidInterval(t *testing.T) {
	collector := NewMetricsCollector(newMemoryStore(), 0, zaptest.NewLogger(t), nil)
	assert.Error(t, collector.Start(context.Background()))
}
