package model

import "time"

// PageMetadata represents the SEO metadata of a single page
type PageMetadata struct {
	ID             string                 `json:"id"`
	Path           string                 `json:"path"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Keywords       []string               `json:"keywords"`
	OGImage        string                 `json:"og_image,omitempty"`
	CanonicalURL   string                 `json:"canonical_url,omitempty"`
	StructuredData map[string]interface{} `json:"structured_data,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ScoreStatus represents the band a score falls into
type ScoreStatus string

const (
	ScoreStatusExcellent        ScoreStatus = "excellent"
	ScoreStatusGood             ScoreStatus = "good"
	ScoreStatusNeedsImprovement ScoreStatus = "needs-improvement"
	ScoreStatusPoor             ScoreStatus = "poor"
)

// ScoreResult is the outcome of scoring one page. Issues and Suggestions are
// positionally paired.
type ScoreResult struct {
	Score       int         `json:"score"`
	Status      ScoreStatus `json:"status"`
	Issues      []string    `json:"issues"`
	Suggestions []string    `json:"suggestions"`
}
