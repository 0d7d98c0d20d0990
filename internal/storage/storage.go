// Package storage selects the coordination store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
	"github.com/tjfontaine/record-review-gateway/internal/storage/memory"
	"github.com/tjfontaine/record-review-gateway/internal/storage/redis"
)

// Re-export the store port so callers wiring backends need one import.
type CoordinationStore = ports.CoordinationStore

// Open returns the backend named by cfg.Store.Type. A Redis store is pinged
// so a bad address fails at startup rather than on the first pop.
func Open(ctx context.Context, cfg *config.Config) (CoordinationStore, error) {
	switch cfg.Store.Type {
	case "memory":
		return memory.New(), nil
	case "redis", "":
		s := redis.New(cfg.Redis)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}
