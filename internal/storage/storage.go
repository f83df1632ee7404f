package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidRecord is returned when a record is missing required fields
	ErrInvalidRecord = errors.New("invalid record")
)

// defaultAlertLimit caps ListAlerts when no limit is given
const defaultAlertLimit = 50

// RecordFilter selects metric records
type RecordFilter struct {
	Since time.Time
	Types []string
}

// AlertFilter selects alerts. A nil Acknowledged matches both states.
type AlertFilter struct {
	Acknowledged *bool
	Limit        int
}

// MetricStore defines the interface the alert monitor reads from and writes to
type MetricStore interface {
	// QueryRecords returns metric records created at or after Since whose type is in Types
	QueryRecords(ctx context.Context, filter RecordFilter) ([]*model.MetricRecord, error)

	// InsertRecord stores a metric record
	InsertRecord(ctx context.Context, record *model.MetricRecord) error

	// DeleteRecordsBefore deletes metric records older than the specified time
	DeleteRecordsBefore(ctx context.Context, before time.Time) (int64, error)

	// InsertAlert persists a new alert
	InsertAlert(ctx context.Context, input *model.AlertInput) (*model.Alert, error)

	// ListAlerts retrieves alerts, newest first
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error)

	// AcknowledgeAlert marks an alert acknowledged. It reports false when the alert does not exist.
	AcknowledgeAlert(ctx context.Context, id string) (bool, error)
}

// PageStore defines the interface for page metadata storage
type PageStore interface {
	// UpsertPage creates or replaces a page's metadata
	UpsertPage(ctx context.Context, page *model.PageMetadata) error

	// GetPage retrieves a page by ID
	GetPage(ctx context.Context, id string) (*model.PageMetadata, error)

	// ListPages retrieves every page ordered by path
	ListPages(ctx context.Context) ([]*model.PageMetadata, error)
}
