package monitor

import (
	"fmt"
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
)

// Metric names as they appear in metric record contexts
const (
	MetricPageLoadTime           = "page_load_time"
	MetricFirstContentfulPaint   = "first_contentful_paint"
	MetricLargestContentfulPaint = "largest_contentful_paint"
	MetricCumulativeLayoutShift  = "cumulative_layout_shift"
	MetricFirstInputDelay        = "first_input_delay"
	MetricAPIResponseTime        = "api_response_time"
	MetricQueryTime              = "query_time"
	MetricCacheHitRate           = "cache_hit_rate"
	MetricMemoryUsage            = "memory_usage"
)

const (
	// cacheCriticalFactor is the fraction of the hit-rate threshold below which a cache alert is critical
	cacheCriticalFactor = 0.5
	// queryCriticalFactor is the multiple of the query threshold the slow-subset mean must exceed to be critical
	queryCriticalFactor = 2.0
)

// Thresholds holds the per-metric alert thresholds. All metrics except
// CacheHitRate are higher-is-worse.
type Thresholds struct {
	PageLoadTime           float64 `mapstructure:"page_load_time"`
	FirstContentfulPaint   float64 `mapstructure:"first_contentful_paint"`
	LargestContentfulPaint float64 `mapstructure:"largest_contentful_paint"`
	CumulativeLayoutShift  float64 `mapstructure:"cumulative_layout_shift"`
	FirstInputDelay        float64 `mapstructure:"first_input_delay"`
	APIResponseTime        float64 `mapstructure:"api_response_time"`
	QueryTime              float64 `mapstructure:"query_time"`
	CacheHitRate           float64 `mapstructure:"cache_hit_rate"`
	MemoryUsage            float64 `mapstructure:"memory_usage"`

	WarningMultiplier  float64 `mapstructure:"warning_multiplier"`
	CriticalMultiplier float64 `mapstructure:"critical_multiplier"`
}

// DefaultThresholds returns the stock thresholds. Timings are in milliseconds,
// cache hit rate and memory usage in percent.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PageLoadTime:           2500,
		FirstContentfulPaint:   1800,
		LargestContentfulPaint: 2500,
		CumulativeLayoutShift:  0.1,
		FirstInputDelay:        100,
		APIResponseTime:        1000,
		QueryTime:              500,
		CacheHitRate:           80,
		MemoryUsage:            85,
		WarningMultiplier:      1.0,
		CriticalMultiplier:     1.5,
	}
}

// Lookup returns the threshold configured for metric
func (t Thresholds) Lookup(metric string) (float64, bool) {
	switch metric {
	case MetricPageLoadTime:
		return t.PageLoadTime, true
	case MetricFirstContentfulPaint:
		return t.FirstContentfulPaint, true
	case MetricLargestContentfulPaint:
		return t.LargestContentfulPaint, true
	case MetricCumulativeLayoutShift:
		return t.CumulativeLayoutShift, true
	case MetricFirstInputDelay:
		return t.FirstInputDelay, true
	case MetricAPIResponseTime:
		return t.APIResponseTime, true
	case MetricQueryTime:
		return t.QueryTime, true
	case MetricCacheHitRate:
		return t.CacheHitRate, true
	case MetricMemoryUsage:
		return t.MemoryUsage, true
	}
	return 0, false
}

// Validate checks every threshold and multiplier is positive and that the
// critical multiplier is not below the warning multiplier
func (t Thresholds) Validate() error {
	for _, f := range families {
		for _, metric := range f.metrics {
			if v, _ := t.Lookup(metric); v <= 0 {
				return fmt.Errorf("threshold for %s must be positive, got %v", metric, v)
			}
		}
	}
	if t.WarningMultiplier <= 0 {
		return fmt.Errorf("warning multiplier must be positive, got %v", t.WarningMultiplier)
	}
	if t.CriticalMultiplier < t.WarningMultiplier {
		return fmt.Errorf("critical multiplier %v is below warning multiplier %v", t.CriticalMultiplier, t.WarningMultiplier)
	}
	return nil
}

// family groups metrics that are fetched together over the same lookback window
type family struct {
	name    string
	types   []string
	window  time.Duration
	metrics []string
}

var families = []family{
	{
		name:   "web_vitals",
		types:  []string{model.RecordTypePageLoad, model.RecordTypeWebVitals},
		window: time.Hour,
		metrics: []string{
			MetricPageLoadTime,
			MetricFirstContentfulPaint,
			MetricLargestContentfulPaint,
			MetricCumulativeLayoutShift,
			MetricFirstInputDelay,
		},
	},
	{
		name:    "api",
		types:   []string{model.RecordTypeAPIRequest},
		window:  time.Hour,
		metrics: []string{MetricAPIResponseTime},
	},
	{
		name:    "system",
		types:   []string{model.RecordTypeSystem},
		window:  time.Hour,
		metrics: []string{MetricMemoryUsage},
	},
	{
		name:    "query",
		types:   []string{model.RecordTypeQuery},
		window:  time.Hour,
		metrics: []string{MetricQueryTime},
	},
	{
		name:    "cache",
		types:   []string{model.RecordTypeCache},
		window:  6 * time.Hour,
		metrics: []string{MetricCacheHitRate},
	},
}
