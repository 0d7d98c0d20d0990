package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/telemetry"
)

// Outcome is the result of handling one raw record.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomePublished
	OutcomeDuplicate
	OutcomeDeadLettered
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomePublished:
		return "published"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDeadLettered:
		return "dead_lettered"
	case OutcomeDropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config controls failure handling and queue waits.
type Config struct {
	// DeadLetter parks unreviewable records instead of dropping them.
	DeadLetter bool
	PopTimeout time.Duration
}

// Worker consumes raw records and publishes reviews.
type Worker struct {
	jobs     *coordinator.Jobs
	producer *Producer
	archive  ports.ReviewArchive
	cfg      Config
	logger   *slog.Logger
}

// NewWorker creates a review worker. archive may be nil.
func NewWorker(jobs *coordinator.Jobs, producer *Producer, archive ports.ReviewArchive, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:     jobs,
		producer: producer,
		archive:  archive,
		cfg:      cfg,
		logger:   logger,
	}
}

// ClaimRank takes this process's rank from the shared counter.
func ClaimRank(ctx context.Context, jobs *coordinator.Jobs) (int, error) {
	return jobs.NextAnalyzerRank(ctx)
}

// Run handles raw records until ctx is done or the store fails.
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

// RunOnce waits for one raw record and handles it.
func (w *Worker) RunOnce(ctx context.Context) (Outcome, error) {
	raw, err := w.jobs.NextRaw(ctx, w.cfg.PopTimeout)
	if errors.Is(err, ports.ErrQueueEmpty) {
		return OutcomeIdle, nil
	}
	if err != nil {
		return OutcomeIdle, err
	}
	return w.Process(ctx, raw)
}

// Process reviews one raw record.
func (w *Worker) Process(ctx context.Context, raw []byte) (outcome Outcome, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "analyzer.process")
	defer func() {
		span.SetAttributes(attribute.String("analyzer.outcome", outcome.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	id, review, err := w.producer.Produce(raw)
	if err != nil {
		logger := w.logger.With(slog.String("record_id", id), slog.String("error", err.Error()))
		if !w.cfg.DeadLetter {
			logger.Error("dropping unreviewable record")
			return OutcomeDropped, nil
		}
		if dlErr := w.jobs.DeadLetter(ctx, id, raw, err); dlErr != nil {
			return OutcomeIdle, dlErr
		}
		logger.Warn("parked unreviewable record")
		return OutcomeDeadLettered, nil
	}
	span.SetAttributes(attribute.String("record.id", id))

	inserted, err := w.jobs.PublishReview(ctx, id, review)
	if err != nil {
		return OutcomeIdle, err
	}
	if !inserted {
		w.logger.Info("review already published, discarding duplicate", slog.String("record_id", id))
		return OutcomeDuplicate, nil
	}

	w.logger.Info("review published",
		slog.String("record_id", id),
		slog.Int("error_code", review.ErrorCode))

	if w.archive != nil {
		if err := w.archive.Put(ctx, id, review); err != nil {
			w.logger.Warn("failed to archive review",
				slog.String("record_id", id),
				slog.String("error", err.Error()))
		}
	}
	return OutcomePublished, nil
}
