// Package ports declares the interfaces the worker roles depend on. Concrete
// adapters live under internal/storage and internal/adapters.
package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by HashGet when the field does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQueueEmpty is returned by BlockingPop when the timeout elapses
	// without an item becoming available.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrStoreUnavailable wraps connection and I/O failures talking to the
	// shared store. Workers treat it as fatal to the current iteration.
	ErrStoreUnavailable = errors.New("coordination store unavailable")
)

// CoordinationStore is the shared queue/hash/counter service every role
// coordinates through. Each method is a single atomic store operation;
// there are no multi-step transactions.
type CoordinationStore interface {
	// Push appends value to the tail of queue and returns the new length.
	Push(ctx context.Context, queue string, value []byte) (int64, error)

	// BlockingPop removes and returns the head of queue, waiting up to
	// timeout for an item. A zero timeout waits until ctx is done.
	// Returns ErrQueueEmpty when the timeout elapses.
	BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)

	// Len returns the number of items in queue.
	Len(ctx context.Context, queue string) (int64, error)

	// Trim keeps only the newest maxLen items of queue.
	Trim(ctx context.Context, queue string, maxLen int64) error

	// HashGet returns the value of field in hash, or ErrNotFound.
	HashGet(ctx context.Context, hash, field string) ([]byte, error)

	// HashSet writes field in hash unconditionally.
	HashSet(ctx context.Context, hash, field string, value []byte) error

	// HashSetIfAbsent writes field only when it does not exist yet and
	// reports whether the write happened.
	HashSetIfAbsent(ctx context.Context, hash, field string, value []byte) (bool, error)

	// Increment atomically adds one to counter and returns the new value.
	Increment(ctx context.Context, counter string) (int64, error)

	// Close releases the connection.
	Close() error
}

// IsUnavailable reports whether err is a store connectivity failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
