package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/model"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig describes an HTTP endpoint that receives alerts as JSON
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// WebhookChannel posts each alert to a configured URL
type WebhookChannel struct {
	logger     *zap.Logger
	httpClient *http.Client
	url        string
	headers    map[string]string
}

// NewWebhookChannel creates a new webhook channel
func NewWebhookChannel(cfg WebhookConfig, logger *zap.Logger) (*WebhookChannel, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &WebhookChannel{
		logger: logger.Named("alert-webhook"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:     cfg.URL,
		headers: cfg.Headers,
	}, nil
}

// Send implements NotificationChannel
func (c *WebhookChannel) Send(ctx context.Context, alert *model.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("Alert delivered",
		zap.String("id", alert.ID),
		zap.Int("status", resp.StatusCode))
	return nil
}

// Channels fans a notification out to every channel and joins their errors
type Channels []NotificationChannel

// Send implements NotificationChannel
func (cs Channels) Send(ctx context.Context, alert *model.Alert) error {
	var errs []error
	for _, c := range cs {
		if c == nil {
			continue
		}
		if err := c.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
