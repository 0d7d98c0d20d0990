// Package memory provides an in-process coordination store for development
// and tests. It honours the same contract as the Redis store but is shared
// only by workers in one process.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
)

var errClosed = errors.New("memory store closed")

// Store is an in-memory implementation of ports.CoordinationStore.
type Store struct {
	mu       sync.Mutex
	lists    map[string][][]byte
	hashes   map[string]map[string][]byte
	counters map[string]int64
	// pushed is closed and replaced on every push to wake blocked pops.
	pushed chan struct{}
	closed bool
}

var _ ports.CoordinationStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		lists:    make(map[string][][]byte),
		hashes:   make(map[string]map[string][]byte),
		counters: make(map[string]int64),
		pushed:   make(chan struct{}),
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (s *Store) unavailable() error {
	if s.closed {
		return errors.Join(ports.ErrStoreUnavailable, errClosed)
	}
	return nil
}

func (s *Store) Push(ctx context.Context, queue string, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return 0, err
	}
	s.lists[queue] = append(s.lists[queue], clone(value))

	close(s.pushed)
	s.pushed = make(chan struct{})

	return int64(len(s.lists[queue])), nil
}

// BlockingPop waits on push notifications until an item arrives, the
// timeout elapses, or ctx is done.
func (s *Store) BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		s.mu.Lock()
		if err := s.unavailable(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if items := s.lists[queue]; len(items) > 0 {
			head := items[0]
			s.lists[queue] = items[1:]
			s.mu.Unlock()
			return head, nil
		}
		wake := s.pushed
		s.mu.Unlock()

		select {
		case <-wake:
		case <-expired:
			return nil, ports.ErrQueueEmpty
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Store) Len(ctx context.Context, queue string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return 0, err
	}
	return int64(len(s.lists[queue])), nil
}

func (s *Store) Trim(ctx context.Context, queue string, maxLen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return err
	}
	items := s.lists[queue]
	if maxLen >= 0 && int64(len(items)) > maxLen {
		s.lists[queue] = append([][]byte(nil), items[int64(len(items))-maxLen:]...)
	}
	return nil
}

func (s *Store) HashGet(ctx context.Context, hash, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return nil, err
	}
	v, ok := s.hashes[hash][field]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return clone(v), nil
}

func (s *Store) HashSet(ctx context.Context, hash, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return err
	}
	s.hashFor(hash)[field] = clone(value)
	return nil
}

func (s *Store) HashSetIfAbsent(ctx context.Context, hash, field string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return false, err
	}
	h := s.hashFor(hash)
	if _, exists := h[field]; exists {
		return false, nil
	}
	h[field] = clone(value)
	return true, nil
}

func (s *Store) hashFor(hash string) map[string][]byte {
	h, ok := s.hashes[hash]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[hash] = h
	}
	return h
}

func (s *Store) Increment(ctx context.Context, counter string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return 0, err
	}
	s.counters[counter]++
	return s.counters[counter], nil
}

// Close makes every subsequent call fail with ports.ErrStoreUnavailable and
// wakes blocked pops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.pushed)
	}
	return nil
}
