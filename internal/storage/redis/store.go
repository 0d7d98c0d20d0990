// Package redis implements the coordination store on Redis lists, hashes
// and counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

const defaultPopWindow = 5 * time.Second

// Store implements ports.CoordinationStore.
type Store struct {
	client    *goredis.Client
	popWindow time.Duration
}

var _ ports.CoordinationStore = (*Store)(nil)

// New connects to the configured server. The connection is lazy; call Ping
// to fail fast.
func New(cfg config.RedisConfig) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return NewFromClient(client, cfg.PopWindow)
}

// NewFromClient wraps an existing client. popWindow bounds each BLPOP so a
// cancelled context is noticed between round trips.
func NewFromClient(client *goredis.Client, popWindow time.Duration) *Store {
	if popWindow <= 0 {
		popWindow = defaultPopWindow
	}
	return &Store{client: client, popWindow: popWindow}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.wrap(ctx, s.client.Ping(ctx).Err())
}

// wrap maps client errors onto the port's error contract.
func (s *Store) wrap(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, goredis.Nil):
		return ports.ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ports.ErrStoreUnavailable, err)
	}
}

func (s *Store) Push(ctx context.Context, queue string, value []byte) (int64, error) {
	n, err := s.client.RPush(ctx, queue, value).Result()
	return n, s.wrap(ctx, err)
}

func (s *Store) BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		window := s.popWindow
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, ports.ErrQueueEmpty
			}
			if remaining < window {
				window = remaining
			}
		}

		res, err := s.client.BLPop(ctx, window, queue).Result()
		switch {
		case err == nil:
			// BLPOP replies with [key, value].
			return []byte(res[1]), nil
		case errors.Is(err, goredis.Nil):
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		default:
			return nil, s.wrap(ctx, err)
		}
	}
}

func (s *Store) Len(ctx context.Context, queue string) (int64, error) {
	n, err := s.client.LLen(ctx, queue).Result()
	return n, s.wrap(ctx, err)
}

func (s *Store) Trim(ctx context.Context, queue string, maxLen int64) error {
	if maxLen <= 0 {
		return s.wrap(ctx, s.client.Del(ctx, queue).Err())
	}
	return s.wrap(ctx, s.client.LTrim(ctx, queue, -maxLen, -1).Err())
}

func (s *Store) HashGet(ctx context.Context, hash, field string) ([]byte, error) {
	b, err := s.client.HGet(ctx, hash, field).Bytes()
	if err != nil {
		return nil, s.wrap(ctx, err)
	}
	return b, nil
}

func (s *Store) HashSet(ctx context.Context, hash, field string, value []byte) error {
	return s.wrap(ctx, s.client.HSet(ctx, hash, field, value).Err())
}

func (s *Store) HashSetIfAbsent(ctx context.Context, hash, field string, value []byte) (bool, error) {
	ok, err := s.client.HSetNX(ctx, hash, field, value).Result()
	return ok, s.wrap(ctx, err)
}

func (s *Store) Increment(ctx context.Context, counter string) (int64, error) {
	n, err := s.client.Incr(ctx, counter).Result()
	return n, s.wrap(ctx, err)
}

func (s *Store) Close() error {
	return s.client.Close()
}
