package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/model"
)

const (
	alertStreamName    = "ALERTS"
	alertSubjectPrefix = "alert."
)

// NotificationChannel represents a channel for sending alert notifications.
// Send must return once ctx is done.
type NotificationChannel interface {
	Send(ctx context.Context, alert *model.Alert) error
}

// nopChannel drops every notification
type nopChannel struct{}

func (nopChannel) Send(context.Context, *model.Alert) error { return nil }

// JetStreamChannel publishes alerts on alert.<type> subjects of the ALERTS stream
type JetStreamChannel struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewJetStreamChannel creates the ALERTS stream if needed
func NewJetStreamChannel(js nats.JetStreamContext, logger *zap.Logger) (*JetStreamChannel, error) {
	stream, err := js.StreamInfo(alertStreamName)
	if err != nil && err != nats.ErrStreamNotFound {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	if stream == nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     alertStreamName,
			Subjects: []string{alertSubjectPrefix + "*"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
	}

	return &JetStreamChannel{
		logger: logger.Named("alert-channel"),
		js:     js,
	}, nil
}

// Send implements NotificationChannel
func (c *JetStreamChannel) Send(ctx context.Context, alert *model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := c.js.Publish(alertSubjectPrefix+string(alert.Type), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	c.logger.Debug("Alert published",
		zap.String("id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)))

	return nil
}
