package logsink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	logStreamName    = "LOGS"
	logSubjectPrefix = "log."
	logStreamMaxAge  = 7 * 24 * time.Hour
)

// NATSSink publishes entries as JSON on log.<source> subjects of the LOGS stream.
// Publish failures are reported to the local logger only.
type NATSSink struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewNATSSink creates the LOGS stream if needed and returns a sink publishing to it
func NewNATSSink(js nats.JetStreamContext, logger *zap.Logger) (*NATSSink, error) {
	_, err := js.StreamInfo(logStreamName)
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}

		_, err = js.AddStream(&nats.StreamConfig{
			Name:     logStreamName,
			Subjects: []string{logSubjectPrefix + ">"},
			Storage:  nats.FileStorage,
			MaxAge:   logStreamMaxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
	}

	return &NATSSink{
		logger: logger.Named("nats-sink"),
		js:     js,
	}, nil
}

// Log implements Sink
func (s *NATSSink) Log(_ context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("Failed to marshal log entry",
			zap.String("action", entry.Action),
			zap.Error(err))
		return
	}

	if _, err := s.js.Publish(Subject(entry.Source), data); err != nil {
		s.logger.Warn("Failed to publish log entry",
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// Subject returns the subject entries from source are published on
func Subject(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		source = "app"
	}
	return logSubjectPrefix + strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(source)
}
