package model

import "time"

// Metric record types written by the browser beacon, the API layer and the host sampler
const (
	RecordTypePageLoad   = "page_load"
	RecordTypeWebVitals  = "web_vitals"
	RecordTypeAPIRequest = "api_request"
	RecordTypeQuery      = "query"
	RecordTypeCache      = "cache"
	RecordTypeSystem     = "system"
)

// MetricRecord represents one metric-log entry. Numeric measurements live in Context
// keyed by metric name; a record may carry any subset of them.
type MetricRecord struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Context   map[string]interface{} `json:"context"`
	CreatedAt time.Time              `json:"created_at"`
}
