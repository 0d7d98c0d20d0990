// Package fetcher is the retrieval worker: it takes requested identifiers,
// asks the client automation to open each one, and waits for the capture
// process to acknowledge it.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/telemetry"
)

// Outcome is the result of handling one request.
type Outcome int

const (
	// OutcomeIdle means no request arrived within the pop timeout.
	OutcomeIdle Outcome = iota
	OutcomeSkippedResolved
	OutcomeSkippedInProgress
	OutcomeOpened
	OutcomePollExhausted
	OutcomeTriggerFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeSkippedResolved:
		return "skipped_resolved"
	case OutcomeSkippedInProgress:
		return "skipped_in_progress"
	case OutcomeOpened:
		return "opened"
	case OutcomePollExhausted:
		return "poll_exhausted"
	case OutcomeTriggerFailed:
		return "trigger_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config bounds the poll loop.
type Config struct {
	PollInterval time.Duration
	PollAttempts int
	// PopTimeout bounds each wait for a request. Zero waits indefinitely.
	PopTimeout time.Duration
}

// Worker handles one request at a time.
type Worker struct {
	jobs    *coordinator.Jobs
	trigger ports.RetrievalTrigger
	cfg     Config
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a retrieval worker.
func New(jobs *coordinator.Jobs, trigger ports.RetrievalTrigger, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:    jobs,
		trigger: trigger,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run handles requests until ctx is done or the store fails.
func (w *Worker) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// RunOnce waits for one request and handles it.
func (w *Worker) RunOnce(ctx context.Context) (Outcome, error) {
	id, err := w.jobs.NextRequest(ctx, w.cfg.PopTimeout)
	if errors.Is(err, ports.ErrQueueEmpty) {
		return OutcomeIdle, nil
	}
	if err != nil {
		return OutcomeIdle, err
	}
	return w.Process(ctx, id)
}

// Process applies the retrieval decision to id. Trigger failures are
// logged and reported as an outcome; only store errors are returned.
func (w *Worker) Process(ctx context.Context, id string) (outcome Outcome, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "fetcher.process")
	defer func() {
		span.SetAttributes(attribute.String("fetcher.outcome", outcome.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("record.id", id))

	logger := w.logger.With(slog.String("record_id", id))

	evidence, err := w.jobs.Evidence(ctx, id)
	if err != nil {
		return OutcomeIdle, err
	}

	switch coordinator.DecideRetrieval(evidence) {
	case coordinator.RetrievalSkipResolved:
		logger.Info("record already reviewed, skipping")
		w.jobs.Emit(ctx, domain.LifecycleRetrievalSkipped, id, "resolved")
		return OutcomeSkippedResolved, nil
	case coordinator.RetrievalSkipInProgress:
		logger.Info("record retrieval already triggered, skipping",
			slog.Time("fetched_at", evidence.OpenedAt))
		w.jobs.Emit(ctx, domain.LifecycleRetrievalSkipped, id, "in_progress")
		return OutcomeSkippedInProgress, nil
	}

	if err := w.trigger.Trigger(ctx, id); err != nil {
		if ctx.Err() != nil {
			return OutcomeIdle, ctx.Err()
		}
		logger.Error("failed to trigger retrieval", slog.String("error", err.Error()))
		return OutcomeTriggerFailed, nil
	}
	w.jobs.Emit(ctx, domain.LifecycleRetrievalTriggered, id, "")
	logger.Info("retrieval triggered")

	for attempt := 1; ; attempt++ {
		if err := w.sleep(ctx, w.cfg.PollInterval); err != nil {
			return OutcomeIdle, err
		}
		_, found, err := w.jobs.FetchedAt(ctx, id)
		if err != nil {
			return OutcomeIdle, err
		}

		switch coordinator.DecidePoll(found, attempt, w.cfg.PollAttempts) {
		case coordinator.PollDone:
			logger.Info("record opened", slog.Int("attempts", attempt))
			return OutcomeOpened, nil
		case coordinator.PollExhausted:
			// The marker is still absent, so a later request starts over.
			logger.Warn("record was not opened in time", slog.Int("attempts", attempt))
			return OutcomePollExhausted, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
