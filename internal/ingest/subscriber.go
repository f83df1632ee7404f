// Package ingest stores metric records published on NATS JetStream.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/observability"
	"github.com/pagepulse/pagepulse/internal/storage"
)

const (
	streamName    = "METRICS"
	subjectPrefix = "metrics.record."
	durableName   = "pagepulse-ingest"
	streamMaxAge  = 24 * time.Hour
	ackWait       = 30 * time.Second
	maxDeliver    = 5
)

// Message is the payload published on metrics.record.<type>
type Message struct {
	Context   map[string]interface{} `json:"context"`
	CreatedAt *time.Time             `json:"created_at,omitempty"`
}

// Subject returns the subject records of recordType are published on
func Subject(recordType string) string {
	return subjectPrefix + recordType
}

// Subscriber consumes metric records from the METRICS stream
type Subscriber struct {
	logger  *zap.Logger
	js      nats.JetStreamContext
	store   storage.MetricStore
	metrics *observability.Metrics

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewSubscriber creates the METRICS stream if needed
func NewSubscriber(js nats.JetStreamContext, store storage.MetricStore, logger *zap.Logger, metrics *observability.Metrics) (*Subscriber, error) {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + "*"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Subscriber{
		logger:  logger.Named("ingest"),
		js:      js,
		store:   store,
		metrics: metrics,
	}, nil
}

// Start begins consuming with a durable consumer
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return errors.New("subscriber already started")
	}

	sub, err := s.js.Subscribe(subjectPrefix+"*", func(msg *nats.Msg) {
		s.handle(ctx, msg)
	},
		nats.Durable(durableName),
		nats.ManualAck(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(maxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	s.sub = sub

	s.logger.Info("Metric ingestion started", zap.String("subject", subjectPrefix+"*"))
	return nil
}

// Stop drains the subscription. The durable consumer keeps its position.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	s.logger.Info("Metric ingestion stopped")
	return err
}

func (s *Subscriber) handle(ctx context.Context, msg *nats.Msg) {
	recordType := strings.TrimPrefix(msg.Subject, subjectPrefix)

	var payload Message
	if err := json.Unmarshal(msg.Data, &payload); err != nil || recordType == "" {
		s.logger.Warn("Dropping malformed metric message",
			zap.String("subject", msg.Subject),
			zap.Error(err))
		_ = msg.Term()
		return
	}

	record := &model.MetricRecord{
		Type:    recordType,
		Context: payload.Context,
	}
	if payload.CreatedAt != nil {
		record.CreatedAt = *payload.CreatedAt
	}

	if err := s.store.InsertRecord(ctx, record); err != nil {
		s.logger.Error("Failed to store metric record",
			zap.String("type", recordType),
			zap.Error(err))
		if errors.Is(err, storage.ErrInvalidRecord) {
			_ = msg.Term()
			return
		}
		_ = msg.Nak()
		return
	}

	s.metrics.ObserveIngested("nats")
	_ = msg.Ack()
}

// Publish sends one metric record to the METRICS stream
func Publish(js nats.JetStreamContext, recordType string, msg Message) error {
	if strings.TrimSpace(recordType) == "" || strings.ContainsAny(recordType, ".*> ") {
		return fmt.Errorf("invalid record type %q", recordType)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal metric message: %w", err)
	}
	if _, err := js.Publish(Subject(recordType), data); err != nil {
		return fmt.Errorf("failed to publish metric message: %w", err)
	}
	return nil
}
