package ports

import (
	"context"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based with hot reload.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// EventPublisher publishes job lifecycle events.
// Implementations: structured log (default), Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LifecycleEvent) error
	Close() error
}

// RetrievalTrigger asks the client-side automation to open a record so that
// its traffic passes through the capture process.
type RetrievalTrigger interface {
	Trigger(ctx context.Context, recordID string) error
}

// ReviewArchive keeps a durable copy of published reviews.
type ReviewArchive interface {
	Put(ctx context.Context, recordID string, review *domain.Review) error
	Close() error
}
