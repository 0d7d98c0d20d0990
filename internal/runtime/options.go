package runtime

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/tjfontaine/record-review-gateway/internal/adapters/config/file"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
	"github.com/tjfontaine/record-review-gateway/internal/storage/memory"
)

// Option is a functional option for configuring a Runtime.
type Option func(*Runtime) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// A missing file is not an error: defaults and environment overrides apply.
func WithFileConfig(path string) Option {
	return func(r *Runtime) error {
		provider, err := file.NewProvider(path, r.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		r.config = provider
		return nil
	}
}

// WithConfig uses a fixed configuration that never reloads.
func WithConfig(cfg *config.Config) Option {
	return func(r *Runtime) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		r.config = &staticProvider{cfg: cfg}
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(r *Runtime) error {
		r.config = provider
		return nil
	}
}

// WithMemoryStore keeps coordination state in process. Every role must run
// in the same process for this to be useful.
func WithMemoryStore() Option {
	return func(r *Runtime) error {
		r.store = memory.New()
		return nil
	}
}

// WithRedisAddr uses the Redis server at addr whatever the config file's
// store type and address say. The rest of the redis section still applies.
func WithRedisAddr(addr string) Option {
	return func(r *Runtime) error {
		r.overrides = append(r.overrides, func(cfg *config.Config) {
			cfg.Store.Type = "redis"
			cfg.Redis.Addr = addr
		})
		return nil
	}
}

// WithStore sets a custom coordination store.
func WithStore(store ports.CoordinationStore) Option {
	return func(r *Runtime) error {
		r.store = store
		return nil
	}
}

// WithKafkaEvents publishes lifecycle events to brokers. An empty topic
// keeps the configured one.
func WithKafkaEvents(brokers []string, topic string) Option {
	return func(r *Runtime) error {
		if len(brokers) == 0 {
			return fmt.Errorf("kafka events need at least one broker")
		}
		r.overrides = append(r.overrides, func(cfg *config.Config) {
			cfg.Events.Type = "kafka"
			cfg.Events.Kafka.Brokers = brokers
			if topic != "" {
				cfg.Events.Kafka.Topic = topic
			}
		})
		return nil
	}
}

// WithEventPublisher sets a custom event publisher.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(r *Runtime) error {
		r.events = publisher
		return nil
	}
}

// WithLogger sets the logger used until the role logger is configured.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) error {
		r.logger = logger
		return nil
	}
}

// WithOutput redirects stdout logging and trace export.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) error {
		r.stdout = w
		return nil
	}
}
