// Package logsink forwards structured application log entries to external sinks.
// Logging is fire-and-forget: sinks never report failures to the caller.
package logsink

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Level names accepted by sinks
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Entry is one structured log record
type Entry struct {
	Level     string                 `json:"level"`
	Source    string                 `json:"source"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink accepts log entries
type Sink interface {
	Log(ctx context.Context, entry Entry)
}

// Nop discards every entry
type Nop struct{}

// Log is a no-op
func (Nop) Log(context.Context, Entry) {}

// ZapSink writes entries through a zap logger
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink backed by logger
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("sink")}
}

// Log implements Sink
func (s *ZapSink) Log(_ context.Context, entry Entry) {
	fields := make([]zap.Field, 0, len(entry.Details)+1)
	fields = append(fields, zap.String("source", entry.Source))
	for k, v := range entry.Details {
		fields = append(fields, zap.Any(k, v))
	}

	switch entry.Level {
	case LevelDebug:
		s.logger.Debug(entry.Action, fields...)
	case LevelWarn:
		s.logger.Warn(entry.Action, fields...)
	case LevelError:
		s.logger.Error(entry.Action, fields...)
	default:
		s.logger.Info(entry.Action, fields...)
	}
}

// Multi fans an entry out to several sinks
type Multi []Sink

// Log implements Sink
func (m Multi) Log(ctx context.Context, entry Entry) {
	for _, s := range m {
		if s != nil {
			s.Log(ctx, entry)
		}
	}
}
