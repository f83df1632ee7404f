package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pagepulse/pagepulse/internal/logsink"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/storage"
)

var errStoreDown = errors.New("store unreachable")

// memoryStore is an in-memory storage.MetricStore for tests
type memoryStore struct {
	mu         sync.Mutex
	records    []*model.MetricRecord
	alerts     []*model.Alert
	queries    int
	failTypes  map[string]bool
	failInsert bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{failTypes: make(map[string]bool)}
}

func (s *memoryStore) add(recordType string, at time.Time, ctx map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &model.MetricRecord{
		ID:        fmt.Sprintf("r-%d", len(s.records)+1),
		Type:      recordType,
		Context:   ctx,
		CreatedAt: at,
	})
}

func (s *memoryStore) QueryRecords(_ context.Context, filter storage.RecordFilter) ([]*model.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	types := make(map[string]bool, len(filter.Types))
	for _, t := range filter.Types {
		if s.failTypes[t] {
			return nil, errStoreDown
		}
		types[t] = true
	}

	var out []*model.MetricRecord
	for _, r := range s.records {
		if r.CreatedAt.Before(filter.Since) {
			continue
		}
		if len(types) > 0 && !types[r.Type] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *memoryStore) InsertRecord(_ context.Context, record *model.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.records = append(s.records, record)
	return nil
}

func (s *memoryStore) DeleteRecordsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *memoryStore) InsertAlert(_ context.Context, input *model.AlertInput) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return nil, errStoreDown
	}
	alert := &model.Alert{
		ID:           fmt.Sprintf("a-%d", len(s.alerts)+1),
		Type:         input.Type,
		Severity:     input.Severity,
		Metric:       input.Metric,
		CurrentValue: input.CurrentValue,
		Threshold:    input.Threshold,
		Message:      input.Message,
		Context:      input.Context,
		CreatedAt:    time.Now(),
	}
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

func (s *memoryStore) ListAlerts(context.Context, storage.AlertFilter) ([]*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Alert(nil), s.alerts...), nil
}

func (s *memoryStore) AcknowledgeAlert(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			a.Acknowledged = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func (s *memoryStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// recordingSink captures log entries
type recordingSink struct {
	mu      sync.Mutex
	entries []logsink.Entry
}

func (r *recordingSink) Log(_ context.Context, entry logsink.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingSink) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// recordingChannel captures notifications
type recordingChannel struct {
	mu     sync.Mutex
	alerts []*model.Alert
	ctxs   []context.Context
	err    error
}

func (c *recordingChannel) Send(ctx context.Context, alert *model.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	c.ctxs = append(c.ctxs, ctx)
	return c.err
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
