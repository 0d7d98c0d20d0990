// Package lookup answers review lookups by requesting a record and waiting
// for the review workers to publish it.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/telemetry"
)

// ErrInvalidID is returned by ValidateID.
var ErrInvalidID = errors.New("invalid record id")

var idPattern = regexp.MustCompile(`^\d{6}-[0-9A-Fa-f]{8}(-[0-9A-Fa-f]{4}){3}-[0-9A-Fa-f]{12}$`)

// ValidateID checks the six-digit prefix and dashed UUID suffix of a record id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Outcome is what a caller learns from a lookup.
type Outcome int

const (
	OutcomeReviewed Outcome = iota
	OutcomeNotFound
	OutcomeClientError
	OutcomeInvalidID
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReviewed:
		return "reviewed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeClientError:
		return "client_error"
	case OutcomeInvalidID:
		return "invalid_id"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result carries the review when one arrived.
type Result struct {
	Outcome Outcome
	Review  *domain.Review
}

// Config sets the poll cadence and the default wait.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Bridge turns a lookup into a request plus a bounded poll of the reviews.
type Bridge struct {
	jobs     *coordinator.Jobs
	interval time.Duration
	timeout  atomic.Int64
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBridge creates a lookup bridge.
func NewBridge(jobs *coordinator.Jobs, cfg Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	b := &Bridge{
		jobs:     jobs,
		interval: cfg.PollInterval,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
	b.SetTimeout(cfg.Timeout)
	return b
}

// Timeout is the wait used by HTTP lookups.
func (b *Bridge) Timeout() time.Duration {
	return time.Duration(b.timeout.Load())
}

// SetTimeout changes the wait for subsequent lookups.
func (b *Bridge) SetTimeout(d time.Duration) {
	b.timeout.Store(int64(d))
}

// Lookup requests id and waits up to timeout for its review. Store errors
// while waiting are logged and the poll continues, so they surface to the
// caller as a timeout.
func (b *Bridge) Lookup(ctx context.Context, id string, timeout time.Duration) Result {
	if err := ValidateID(id); err != nil {
		return Result{Outcome: OutcomeInvalidID}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "lookup.poll")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", id))

	logger := b.logger.With(slog.String("record_id", id))

	if err := b.jobs.Request(ctx, id); err != nil {
		logger.Warn("failed to enqueue request", slog.String("error", err.Error()))
	}

	deadline := b.now().Add(timeout)
	for {
		review, err := b.jobs.Review(ctx, id)
		switch {
		case err == nil:
			res := Result{Outcome: classify(review), Review: review}
			span.SetAttributes(attribute.String("lookup.outcome", res.Outcome.String()))
			return res
		case errors.Is(err, ports.ErrNotFound):
		case ctx.Err() != nil:
		default:
			logger.Warn("failed to read review", slog.String("error", err.Error()))
		}

		remaining := deadline.Sub(b.now())
		if remaining <= 0 {
			break
		}
		if err := b.sleep(ctx, min(b.interval, remaining)); err != nil {
			break
		}
	}

	logger.Info("lookup timed out", slog.Duration("timeout", timeout))
	span.SetAttributes(attribute.String("lookup.outcome", OutcomeTimeout.String()))
	b.jobs.Emit(context.WithoutCancel(ctx), domain.LifecycleTimedOut, id, "")
	return Result{Outcome: OutcomeTimeout}
}

func classify(r *domain.Review) Outcome {
	switch coordinator.Classify(r) {
	case coordinator.OutcomeReviewed:
		return OutcomeReviewed
	case coordinator.OutcomeNotFound:
		return OutcomeNotFound
	default:
		return OutcomeClientError
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
