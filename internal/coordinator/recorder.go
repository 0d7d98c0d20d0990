package coordinator

import (
	"context"
	"fmt"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// Recorder applies extracted record events to the store. It is the capture
// side of the protocol.
type Recorder struct {
	jobs *Jobs
}

// NewRecorder creates a recorder writing through jobs.
func NewRecorder(jobs *Jobs) *Recorder {
	return &Recorder{jobs: jobs}
}

// Apply performs the store writes for one event.
func (r *Recorder) Apply(ctx context.Context, ev domain.Event) error {
	switch ev := ev.(type) {
	case domain.RecordOpened:
		return r.jobs.MarkOpened(ctx, ev.RecordID)

	case domain.FetchSucceeded:
		return r.jobs.EnqueueRaw(ctx, ev.RecordID, ev.Raw)

	case domain.FetchFailed:
		review := &domain.Review{
			ErrorCode: int(ev.ErrorCode),
			Timestamp: r.jobs.Now().Unix(),
		}
		// A failure never enters the raw queue; a review written earlier wins.
		_, err := r.jobs.PublishReview(ctx, ev.RecordID, review)
		return err

	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}
