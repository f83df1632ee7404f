package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypeThresholdExceeded AlertType = "threshold_exceeded"
	AlertTypeCacheMissSpike    AlertType = "cache_miss_spike"
	AlertTypeQuerySlowdown     AlertType = "query_slowdown"
)

// AlertInput carries the fields needed to persist a new alert
type AlertInput struct {
	Type         AlertType              `json:"type"`
	Severity     AlertSeverity          `json:"severity"`
	Metric       string                 `json:"metric"`
	CurrentValue float64                `json:"current_value"`
	Threshold    float64                `json:"threshold"`
	Message      string                 `json:"message"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// Alert represents a persisted performance alert
type Alert struct {
	ID             string                 `json:"id"`
	Type           AlertType              `json:"type"`
	Severity       AlertSeverity          `json:"severity"`
	Metric         string                 `json:"metric"`
	CurrentValue   float64                `json:"current_value"`
	Threshold      float64                `json:"threshold"`
	Message        string                 `json:"message"`
	Context        map[string]interface{} `json:"context,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	CreatedAt      time.Time              `json:"created_at"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
}
