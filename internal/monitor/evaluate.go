package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"

	"github.com/pagepulse/pagepulse/internal/model"
)

// breach is a threshold crossing that may become an alert
type breach struct {
	alertType model.AlertType
	severity  model.AlertSeverity
	metric    string
	value     float64
	threshold float64
	message   string
	context   map[string]interface{}
}

func (b *breach) key() string {
	return cooldownKey(b.metric, b.severity)
}

// numericValue coerces a context value to a finite float. Booleans, nil and
// non-numeric strings are rejected.
func numericValue(v interface{}) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// collectSamples gathers the numeric values of each metric across records.
// Records missing a metric contribute nothing to it.
func collectSamples(records []*model.MetricRecord, metrics []string) map[string][]float64 {
	samples := make(map[string][]float64, len(metrics))
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, metric := range metrics {
			raw, ok := r.Context[metric]
			if !ok {
				continue
			}
			if v, ok := numericValue(raw); ok {
				samples[metric] = append(samples[metric], v)
			}
		}
	}
	return samples
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// evaluate dispatches to the comparison rule for metric. A nil result means no alert.
func evaluate(metric string, values []float64, t Thresholds, window time.Duration) *breach {
	threshold, ok := t.Lookup(metric)
	if !ok || threshold <= 0 || len(values) == 0 {
		return nil
	}

	switch metric {
	case MetricCacheHitRate:
		return evaluateCacheHitRate(values, threshold, window)
	case MetricQueryTime:
		return evaluateQueryTime(values, threshold, window)
	default:
		return evaluateThreshold(metric, values, threshold, t, window)
	}
}

// ratioEpsilon absorbs float rounding so that a mean of exactly mult*threshold
// counts as reaching mult, e.g. 0.15/0.1 == 1.4999999999999998
const ratioEpsilon = 1e-9

// evaluateThreshold applies the higher-is-worse rule to the mean of all samples
func evaluateThreshold(metric string, values []float64, threshold float64, t Thresholds, window time.Duration) *breach {
	avg := mean(values)
	ratio := avg / threshold

	var severity model.AlertSeverity
	switch {
	case ratio >= t.CriticalMultiplier-ratioEpsilon:
		severity = model.AlertSeverityCritical
	case ratio >= t.WarningMultiplier-ratioEpsilon:
		severity = model.AlertSeverityWarning
	default:
		return nil
	}

	return &breach{
		alertType: model.AlertTypeThresholdExceeded,
		severity:  severity,
		metric:    metric,
		value:     avg,
		threshold: threshold,
		message: fmt.Sprintf("%s averaged %.2f over the last %s, %.0f%% of the %.2f threshold",
			metric, avg, window, ratio*100, threshold),
		context: map[string]interface{}{
			"samples": len(values),
			"ratio":   ratio,
			"window":  window.String(),
		},
	}
}

// evaluateCacheHitRate alerts when the mean hit rate falls below the threshold
func evaluateCacheHitRate(values []float64, threshold float64, window time.Duration) *breach {
	rate := mean(values)
	if rate >= threshold {
		return nil
	}

	severity := model.AlertSeverityWarning
	if rate < threshold*cacheCriticalFactor {
		severity = model.AlertSeverityCritical
	}

	return &breach{
		alertType: model.AlertTypeCacheMissSpike,
		severity:  severity,
		metric:    MetricCacheHitRate,
		value:     rate,
		threshold: threshold,
		message: fmt.Sprintf("Cache hit rate dropped to %.2f%% over the last %s, below the %.2f%% threshold",
			rate, window, threshold),
		context: map[string]interface{}{
			"samples":   len(values),
			"miss_rate": 100 - rate,
			"window":    window.String(),
		},
	}
}

// evaluateQueryTime alerts on the subset of samples slower than the threshold.
// Severity is derived from the mean of that subset only.
func evaluateQueryTime(values []float64, threshold float64, window time.Duration) *breach {
	slow := make([]float64, 0, len(values))
	for _, v := range values {
		if v > threshold {
			slow = append(slow, v)
		}
	}
	if len(slow) == 0 {
		return nil
	}

	slowAvg := mean(slow)
	severity := model.AlertSeverityWarning
	if slowAvg > threshold*queryCriticalFactor {
		severity = model.AlertSeverityCritical
	}

	return &breach{
		alertType: model.AlertTypeQuerySlowdown,
		severity:  severity,
		metric:    MetricQueryTime,
		value:     slowAvg,
		threshold: threshold,
		message: fmt.Sprintf("%d of %d queries exceeded %.0fms over the last %s, averaging %.2fms",
			len(slow), len(values), threshold, window, slowAvg),
		context: map[string]interface{}{
			"slow_count":  len(slow),
			"total_count": len(values),
			"window":      window.String(),
		},
	}
}
