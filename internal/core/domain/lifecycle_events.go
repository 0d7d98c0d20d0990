package domain

import (
	"time"
)

// LifecycleEvent is published whenever a job moves through the coordination
// protocol. Consumers are decoupled from the store (analytics, alerting).
type LifecycleEvent struct {
	Type      LifecycleEventType `json:"type"`
	RecordID  string             `json:"record_id"`
	Role      string             `json:"role"`
	Timestamp time.Time          `json:"timestamp"`
	ErrorCode int                `json:"error_code,omitempty"`
	Detail    string             `json:"detail,omitempty"`
}

// LifecycleEventType identifies the type of lifecycle event.
type LifecycleEventType string

const (
	LifecycleRequested          LifecycleEventType = "job.requested"
	LifecycleRetrievalTriggered LifecycleEventType = "job.retrieval_triggered"
	LifecycleRetrievalSkipped   LifecycleEventType = "job.retrieval_skipped"
	LifecycleOpened             LifecycleEventType = "job.opened"
	LifecycleFetched            LifecycleEventType = "job.fetched"
	LifecycleFailed             LifecycleEventType = "job.failed"
	LifecycleReviewed           LifecycleEventType = "job.reviewed"
	LifecycleDuplicateDiscarded LifecycleEventType = "job.duplicate_discarded"
	LifecycleDeadLettered       LifecycleEventType = "job.dead_lettered"
	LifecycleTimedOut           LifecycleEventType = "job.timed_out"
)

// NewLifecycleEvent stamps an event with the current time.
func NewLifecycleEvent(t LifecycleEventType, role, recordID string) *LifecycleEvent {
	return &LifecycleEvent{
		Type:      t,
		RecordID:  recordID,
		Role:      role,
		Timestamp: time.Now().UTC(),
	}
}
