package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pagepulse/pagepulse/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "pagepulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Records(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []*model.MetricRecord{
		{Type: model.RecordTypePageLoad, Context: map[string]interface{}{"page_load_time": 2100.0}, CreatedAt: now.Add(-2 * time.Hour)},
		{Type: model.RecordTypePageLoad, Context: map[string]interface{}{"page_load_time": 3100.0}, CreatedAt: now.Add(-10 * time.Minute)},
		{Type: model.RecordTypeCache, Context: map[string]interface{}{"cache_hit_rate": 72.5}, CreatedAt: now.Add(-5 * time.Minute)},
		{Type: model.RecordTypeQuery, Context: map[string]interface{}{"query_time": 40.0}},
	}
	for _, r := range records {
		require.NoError(t, store.InsertRecord(ctx, r))
		assert.NotEmpty(t, r.ID)
	}

	t.Run("filters by time and type", func(t *testing.T) {
		got, err := store.QueryRecords(ctx, RecordFilter{
			Since: now.Add(-time.Hour),
			Types: []string{model.RecordTypePageLoad, model.RecordTypeCache},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, model.RecordTypePageLoad, got[0].Type)
		assert.Equal(t, 3100.0, got[0].Context["page_load_time"])
		assert.Equal(t, model.RecordTypeCache, got[1].Type)
	})

	t.Run("no type filter", func(t *testing.T) {
		got, err := store.QueryRecords(ctx, RecordFilter{Since: now.Add(-3 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("delete before", func(t *testing.T) {
		deleted, err := store.DeleteRecordsBefore(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		got, err := store.QueryRecords(ctx, RecordFilter{Since: now.Add(-3 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestSQLiteStore_InsertRecordRequiresType(t *testing.T) {
	store := newTestStore(t)

	err := store.InsertRecord(context.Background(), &model.MetricRecord{Type: " "})
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSQLiteStore_Alerts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	store.now = func() time.Time { return tick }

	first, err := store.InsertAlert(ctx, &model.AlertInput{
		Type:         model.AlertTypeThresholdExceeded,
		Severity:     model.AlertSeverityWarning,
		Metric:       "page_load_time",
		CurrentValue: 3000,
		Threshold:    2500,
		Message:      "page_load_time is high",
		Context:      map[string]interface{}{"samples": 4.0},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Acknowledged)

	tick = base.Add(time.Minute)
	second, err := store.InsertAlert(ctx, &model.AlertInput{
		Type:         model.AlertTypeCacheMissSpike,
		Severity:     model.AlertSeverityCritical,
		Metric:       "cache_hit_rate",
		CurrentValue: 30,
		Threshold:    80,
		Message:      "cache hit rate is low",
	})
	require.NoError(t, err)

	all, err := store.ListAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, 4.0, all[1].Context["samples"])
	assert.Nil(t, all[0].Context)
	assert.True(t, all[1].CreatedAt.Equal(base))

	tick = base.Add(2 * time.Minute)
	ok, err := store.AcknowledgeAlert(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	tick = base.Add(3 * time.Minute)
	ok, err = store.AcknowledgeAlert(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcknowledgeAlert(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	unacked := false
	open, err := store.ListAlerts(ctx, AlertFilter{Acknowledged: &unacked})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	acked := true
	closed, err := store.ListAlerts(ctx, AlertFilter{Acknowledged: &acked, Limit: 10})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.True(t, closed[0].Acknowledged)
	require.NotNil(t, closed[0].AcknowledgedAt)
	assert.True(t, closed[0].AcknowledgedAt.Equal(base.Add(2*time.Minute)))

	limited, err := store.ListAlerts(ctx, AlertFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_Pages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	page := &model.PageMetadata{
		Path:           "/blog/hello",
		Title:          "Hello",
		Description:    "A post",
		Keywords:       []string{"hello", "world"},
		OGImage:        "https://example.com/og.png",
		StructuredData: map[string]interface{}{"@type": "BlogPosting"},
	}
	require.NoError(t, store.UpsertPage(ctx, page))
	require.NotEmpty(t, page.ID)

	require.NoError(t, store.UpsertPage(ctx, &model.PageMetadata{Path: "/about", Title: "About"}))

	got, err := store.GetPage(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, page.Title, got.Title)
	assert.Equal(t, page.Keywords, got.Keywords)
	assert.Equal(t, "BlogPosting", got.StructuredData["@type"])
	assert.Empty(t, got.CanonicalURL)

	page.Title = "Hello again"
	require.NoError(t, store.UpsertPage(ctx, page))

	pages, err := store.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "/about", pages[0].Path)
	assert.Equal(t, "Hello again", pages[1].Title)

	_, err = store.GetPage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.UpsertPage(ctx, &model.PageMetadata{}), ErrInvalidRecord)
}

func TestSQLiteStore_ZeroSinceMatchesEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertRecord(ctx, &model.MetricRecord{Type: model.RecordTypeSystem, CreatedAt: old}))
	require.NoError(t, store.InsertRecord(ctx, &model.MetricRecord{Type: model.RecordTypeCache}))

	records, err := store.QueryRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, old.Equal(records[0].CreatedAt))

	deleted, err := store.DeleteRecordsBefore(ctx, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
