package testutil

import (
	"context"
	"sync"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// EventRecorder is an in-memory ports.EventPublisher.
type EventRecorder struct {
	mu     sync.Mutex
	events []*domain.LifecycleEvent
	// Err is returned from every Publish when set.
	Err error
}

func (r *EventRecorder) Publish(ctx context.Context, e *domain.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

func (r *EventRecorder) Close() error { return nil }

// Events returns a copy of everything published.
func (r *EventRecorder) Events() []*domain.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.LifecycleEvent(nil), r.events...)
}

// Types returns the published event types in order.
func (r *EventRecorder) Types() []domain.LifecycleEventType {
	events := r.Events()
	out := make([]domain.LifecycleEventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events of type t were published.
func (r *EventRecorder) Count(t domain.LifecycleEventType) int {
	n := 0
	for _, ty := range r.Types() {
		if ty == t {
			n++
		}
	}
	return n
}
