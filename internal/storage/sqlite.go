package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/model"
)

// SQLiteStore implements MetricStore and PageStore using SQLite.
// Timestamps are stored as UTC unix nanoseconds.
type SQLiteStore struct {
	logger *zap.Logger
	db     *sql.DB
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers from the sampler, monitor and API.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		logger: logger.Named("sqlite-store"),
		db:     db,
		now:    time.Now,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS metric_records (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			context TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_metric_records_type_created ON metric_records(type, created_at);
		CREATE INDEX IF NOT EXISTS idx_metric_records_created ON metric_records(created_at);

		CREATE TABLE IF NOT EXISTS performance_alerts (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			metric TEXT NOT NULL,
			current_value REAL NOT NULL,
			threshold REAL NOT NULL,
			message TEXT NOT NULL,
			context TEXT,
			acknowledged INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			acknowledged_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_performance_alerts_ack_created ON performance_alerts(acknowledged, created_at);

		CREATE TABLE IF NOT EXISTS page_metadata (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			title TEXT,
			description TEXT,
			keywords TEXT,
			og_image TEXT,
			canonical_url TEXT,
			structured_data TEXT,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_page_metadata_path ON page_metadata(path);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// QueryRecords implements MetricStore.QueryRecords
func (s *SQLiteStore) QueryRecords(ctx context.Context, filter RecordFilter) ([]*model.MetricRecord, error) {
	query := "SELECT id, type, context, created_at FROM metric_records WHERE created_at >= ?"
	args := []interface{}{toNanos(filter.Since)}

	if len(filter.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Types)), ",")
		query += fmt.Sprintf(" AND type IN (%s)", placeholders)
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric records: %w", err)
	}
	defer rows.Close()

	var records []*model.MetricRecord
	for rows.Next() {
		record := &model.MetricRecord{}
		var contextStr string
		var createdAt int64

		if err := rows.Scan(&record.ID, &record.Type, &contextStr, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric record: %w", err)
		}
		if err := json.Unmarshal([]byte(contextStr), &record.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context of metric record %s: %w", record.ID, err)
		}
		record.CreatedAt = fromNanos(createdAt)

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// InsertRecord implements MetricStore.InsertRecord
func (s *SQLiteStore) InsertRecord(ctx context.Context, record *model.MetricRecord) error {
	if record == nil || strings.TrimSpace(record.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidRecord)
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	if record.Context == nil {
		record.Context = map[string]interface{}{}
	}

	contextJSON, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal record context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metric_records (id, type, context, created_at)
		VALUES (?, ?, ?, ?)`,
		record.ID,
		record.Type,
		string(contextJSON),
		toNanos(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store metric record: %w", err)
	}
	return nil
}

// DeleteRecordsBefore implements MetricStore.DeleteRecordsBefore
func (s *SQLiteStore) DeleteRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM metric_records WHERE created_at < ?", toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete metric records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old metric records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// InsertAlert implements MetricStore.InsertAlert
func (s *SQLiteStore) InsertAlert(ctx context.Context, input *model.AlertInput) (*model.Alert, error) {
	if input == nil || input.Metric == "" {
		return nil, fmt.Errorf("%w: metric is required", ErrInvalidRecord)
	}

	alert := &model.Alert{
		ID:           uuid.New().String(),
		Type:         input.Type,
		Severity:     input.Severity,
		Metric:       input.Metric,
		CurrentValue: input.CurrentValue,
		Threshold:    input.Threshold,
		Message:      input.Message,
		Context:      input.Context,
		CreatedAt:    s.now().UTC(),
	}

	var contextStr sql.NullString
	if len(alert.Context) > 0 {
		data, err := json.Marshal(alert.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert context: %w", err)
		}
		contextStr = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_alerts (
			id, type, severity, metric, current_value, threshold, message, context, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Type,
		alert.Severity,
		alert.Metric,
		alert.CurrentValue,
		alert.Threshold,
		alert.Message,
		contextStr,
		alert.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store alert: %w", err)
	}

	return alert, nil
}

// ListAlerts implements MetricStore.ListAlerts
func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error) {
	query := `SELECT id, type, severity, metric, current_value, threshold, message, context,
		acknowledged, created_at, acknowledged_at FROM performance_alerts`
	args := make([]interface{}, 0, 2)

	if filter.Acknowledged != nil {
		query += " WHERE acknowledged = ?"
		args = append(args, *filter.Acknowledged)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*model.Alert, 0)
	for rows.Next() {
		alert := &model.Alert{}
		var contextStr sql.NullString
		var createdAt int64
		var acknowledgedAt sql.NullInt64

		err := rows.Scan(
			&alert.ID,
			&alert.Type,
			&alert.Severity,
			&alert.Metric,
			&alert.CurrentValue,
			&alert.Threshold,
			&alert.Message,
			&contextStr,
			&alert.Acknowledged,
			&createdAt,
			&acknowledgedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		if contextStr.Valid && contextStr.String != "" {
			if err := json.Unmarshal([]byte(contextStr.String), &alert.Context); err != nil {
				return nil, fmt.Errorf("failed to decode context of alert %s: %w", alert.ID, err)
			}
		}
		alert.CreatedAt = fromNanos(createdAt)
		if acknowledgedAt.Valid {
			t := fromNanos(acknowledgedAt.Int64)
			alert.AcknowledgedAt = &t
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert implements MetricStore.AcknowledgeAlert
func (s *SQLiteStore) AcknowledgeAlert(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE performance_alerts SET
			acknowledged = 1,
			acknowledged_at = COALESCE(acknowledged_at, ?)
		WHERE id = ?`,
		s.now().UTC().UnixNano(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// UpsertPage implements PageStore.UpsertPage
func (s *SQLiteStore) UpsertPage(ctx context.Context, page *model.PageMetadata) error {
	if page == nil || strings.TrimSpace(page.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidRecord)
	}
	if page.ID == "" {
		page.ID = uuid.New().String()
	}
	page.UpdatedAt = s.now().UTC()

	keywords, err := json.Marshal(page.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	var structured sql.NullString
	if len(page.StructuredData) > 0 {
		data, err := json.Marshal(page.StructuredData)
		if err != nil {
			return fmt.Errorf("failed to marshal structured data: %w", err)
		}
		structured = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO page_metadata (
			id, path, title, description, keywords, og_image, canonical_url, structured_data, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			description = excluded.description,
			keywords = excluded.keywords,
			og_image = excluded.og_image,
			canonical_url = excluded.canonical_url,
			structured_data = excluded.structured_data,
			updated_at = excluded.updated_at`,
		page.ID,
		page.Path,
		page.Title,
		page.Description,
		string(keywords),
		page.OGImage,
		page.CanonicalURL,
		structured,
		page.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store page metadata: %w", err)
	}
	return nil
}

const pageColumns = `id, path, title, description, keywords, og_image, canonical_url, structured_data, updated_at`

// GetPage implements PageStore.GetPage
func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*model.PageMetadata, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM page_metadata WHERE id = ?", id)
	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return page, nil
}

// ListPages implements PageStore.ListPages
func (s *SQLiteStore) ListPages(ctx context.Context) ([]*model.PageMetadata, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+pageColumns+" FROM page_metadata ORDER BY path ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := make([]*model.PageMetadata, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return pages, nil
}

// Ping checks the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*model.PageMetadata, error) {
	page := &model.PageMetadata{}
	var title, description, keywords, ogImage, canonical, structured sql.NullString
	var updatedAt int64

	err := row.Scan(
		&page.ID,
		&page.Path,
		&title,
		&description,
		&keywords,
		&ogImage,
		&canonical,
		&structured,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan page metadata: %w", err)
	}

	page.Title = title.String
	page.Description = description.String
	page.OGImage = ogImage.String
	page.CanonicalURL = canonical.String
	page.UpdatedAt = fromNanos(updatedAt)

	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &page.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords of page %s: %w", page.ID, err)
		}
	}
	if structured.Valid && structured.String != "" {
		if err := json.Unmarshal([]byte(structured.String), &page.StructuredData); err != nil {
			return nil, fmt.Errorf("failed to decode structured data of page %s: %w", page.ID, err)
		}
	}

	return page, nil
}

// toNanos clamps times outside the int64 nanosecond range, including the zero time
func toNanos(t time.Time) int64 {
	switch {
	case t.Before(minStoredTime):
		return math.MinInt64
	case t.After(maxStoredTime):
		return math.MaxInt64
	}
	return t.UnixNano()
}

var (
	minStoredTime = time.Unix(0, math.MinInt64)
	maxStoredTime = time.Unix(0, math.MaxInt64)
)

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
