package monitor

import (
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
)

// DefaultCooldown is the minimum gap between two alerts for the same metric and severity
const DefaultCooldown = 15 * time.Minute

func cooldownKey(metric string, severity model.AlertSeverity) string {
	return metric + "_" + string(severity)
}

// cooldownTracker remembers when each key last fired. It is not safe for
// concurrent use; AlertMonitor serializes access through its check lock.
type cooldownTracker struct {
	window time.Duration
	last   map[string]time.Time
}

func newCooldownTracker(window time.Duration) *cooldownTracker {
	return &cooldownTracker{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// allow reports whether key may fire at now and, if so, records now as its last firing
func (c *cooldownTracker) allow(key string, now time.Time) bool {
	if last, ok := c.last[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[key] = now
	return true
}
