// Package direct provides an event publisher that writes lifecycle events
// straight to the structured log.
package direct

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// Publisher implements ports.EventPublisher on a slog.Logger.
// This is the default implementation when no broker is configured.
type Publisher struct {
	logger *slog.Logger
	level  slog.Level
}

// NewPublisher creates a new log publisher. Events are logged at info level.
func NewPublisher(logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	return &Publisher{
		logger: logger,
		level:  slog.LevelInfo,
	}, nil
}

// Publish logs a lifecycle event.
func (p *Publisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	attrs := []slog.Attr{
		slog.String("event", string(event.Type)),
		slog.String("record_id", event.RecordID),
		slog.String("role", event.Role),
		slog.Time("event_time", event.Timestamp),
	}
	if event.ErrorCode != 0 {
		attrs = append(attrs, slog.Int("error_code", event.ErrorCode))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	p.logger.LogAttrs(ctx, p.level, "job lifecycle", attrs...)
	return nil
}

// Close is a no-op for the log publisher.
func (p *Publisher) Close() error {
	return nil
}
