package runtime

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/record-review-gateway/internal/adapters/events/direct"
	"github.com/tjfontaine/record-review-gateway/internal/adapters/events/kafka"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

// eventsFromConfig builds the publisher named by cfg.Events.Type.
func eventsFromConfig(cfg *config.Config, logger *slog.Logger) (ports.EventPublisher, error) {
	if cfg.Events.Type == "kafka" {
		return kafka.NewPublisher(cfg.Events.Kafka)
	}
	return direct.NewPublisher(logger)
}

// staticProvider serves a fixed config.
type staticProvider struct {
	cfg *config.Config
}

func (p *staticProvider) Load(ctx context.Context) (*config.Config, error) {
	return p.cfg, nil
}

func (p *staticProvider) Watch(ctx context.Context, onChange func(*config.Config)) error {
	return nil
}

func (p *staticProvider) Close() error {
	return nil
}
