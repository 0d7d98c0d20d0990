package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
)

// Initializer bootstraps one retrieval worker with its rank and account.
type Initializer struct {
	ProcessRank  int    `json:"process_rank"`
	EmailAddress string `json:"email_address"`
}

// Jobs performs the protocol's store operations on behalf of one role.
// Every method is a single store operation, or a fixed sequence of them
// that tolerates interleaving with other workers.
type Jobs struct {
	store     ports.CoordinationStore
	publisher ports.EventPublisher
	role      string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures Jobs.
type Option func(*Jobs)

// WithPublisher publishes a lifecycle event for every transition.
func WithPublisher(p ports.EventPublisher) Option {
	return func(j *Jobs) { j.publisher = p }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(j *Jobs) { j.logger = l }
}

// WithClock overrides the time source for markers and reviews.
func WithClock(now func() time.Time) Option {
	return func(j *Jobs) { j.now = now }
}

// NewJobs creates the protocol handle for role.
func NewJobs(store ports.CoordinationStore, role string, opts ...Option) *Jobs {
	j := &Jobs{
		store:  store,
		role:   role,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Now returns the current time from the configured clock.
func (j *Jobs) Now() time.Time {
	return j.now()
}

// Request enqueues id for retrieval. Duplicate requests are tolerated.
func (j *Jobs) Request(ctx context.Context, id string) error {
	if _, err := j.store.Push(ctx, QueueRequests, []byte(id)); err != nil {
		return fmt.Errorf("enqueue request %s: %w", id, err)
	}
	j.emit(ctx, domain.LifecycleRequested, id, nil)
	return nil
}

// NextRequest blocks for the next requested id.
func (j *Jobs) NextRequest(ctx context.Context, timeout time.Duration) (string, error) {
	b, err := j.store.BlockingPop(ctx, QueueRequests, timeout)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Evidence reads the review and, if there is none, the fetched marker.
func (j *Jobs) Evidence(ctx context.Context, id string) (Evidence, error) {
	var e Evidence

	review, err := j.Review(ctx, id)
	switch {
	case err == nil:
		e.Review = review
		return e, nil
	case !errors.Is(err, ports.ErrNotFound):
		return e, err
	}

	at, ok, err := j.FetchedAt(ctx, id)
	if err != nil {
		return e, err
	}
	e.Opened = ok
	e.OpenedAt = at
	return e, nil
}

// FetchedAt returns the time retrieval of id was acknowledged, if any.
func (j *Jobs) FetchedAt(ctx context.Context, id string) (time.Time, bool, error) {
	b, err := j.store.HashGet(ctx, HashFetchedMarkers, id)
	if errors.Is(err, ports.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read fetched marker %s: %w", id, err)
	}
	secs, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		// A marker is present even if its value is unreadable.
		return time.Time{}, true, nil
	}
	return time.Unix(secs, 0), true, nil
}

// MarkOpened records that the client began reading id.
func (j *Jobs) MarkOpened(ctx context.Context, id string) error {
	v := strconv.FormatInt(j.now().Unix(), 10)
	if err := j.store.HashSet(ctx, HashFetchedMarkers, id, []byte(v)); err != nil {
		return fmt.Errorf("write fetched marker %s: %w", id, err)
	}
	j.emit(ctx, domain.LifecycleOpened, id, nil)
	return nil
}

// EnqueueRaw hands a fetched record to the review workers.
func (j *Jobs) EnqueueRaw(ctx context.Context, id string, raw []byte) error {
	if _, err := j.store.Push(ctx, QueueRawRecords, raw); err != nil {
		return fmt.Errorf("enqueue raw record %s: %w", id, err)
	}
	j.emit(ctx, domain.LifecycleFetched, id, nil)
	return nil
}

// NextRaw blocks for the next raw record.
func (j *Jobs) NextRaw(ctx context.Context, timeout time.Duration) ([]byte, error) {
	return j.store.BlockingPop(ctx, QueueRawRecords, timeout)
}

// DeadLetter parks a raw record that could not be reviewed.
func (j *Jobs) DeadLetter(ctx context.Context, id string, raw []byte, reason error) error {
	if _, err := j.store.Push(ctx, QueueDeadLetter, raw); err != nil {
		return fmt.Errorf("dead-letter raw record: %w", err)
	}
	j.emit(ctx, domain.LifecycleDeadLettered, id, func(e *domain.LifecycleEvent) {
		if reason != nil {
			e.Detail = reason.Error()
		}
	})
	return nil
}

// Review returns the stored review for id, or ports.ErrNotFound.
func (j *Jobs) Review(ctx context.Context, id string) (*domain.Review, error) {
	b, err := j.store.HashGet(ctx, HashReviews, id)
	if err != nil {
		return nil, err
	}
	return domain.UnmarshalReview(b)
}

// PublishReview writes review for id unless one exists. It reports whether
// this call's review is the one that stands.
func (j *Jobs) PublishReview(ctx context.Context, id string, review *domain.Review) (bool, error) {
	b, err := review.Marshal()
	if err != nil {
		return false, err
	}
	inserted, err := j.store.HashSetIfAbsent(ctx, HashReviews, id, b)
	if err != nil {
		return false, fmt.Errorf("write review %s: %w", id, err)
	}

	switch DecidePublish(inserted) {
	case Published:
		t := domain.LifecycleReviewed
		if !review.Succeeded() {
			t = domain.LifecycleFailed
		}
		j.emit(ctx, t, id, func(e *domain.LifecycleEvent) { e.ErrorCode = review.ErrorCode })
		return true, nil
	default:
		j.emit(ctx, domain.LifecycleDuplicateDiscarded, id, nil)
		return false, nil
	}
}

// State reports the furthest state the store witnesses for id. A requested
// or fetched job still waiting in a queue reports Idle or Opened.
func (j *Jobs) State(ctx context.Context, id string) (State, error) {
	e, err := j.Evidence(ctx, id)
	if err != nil {
		return StateIdle, err
	}
	return StateOf(e), nil
}

// PushInitializer queues a retrieval worker bootstrap.
func (j *Jobs) PushInitializer(ctx context.Context, init Initializer) error {
	b, err := json.Marshal(init)
	if err != nil {
		return err
	}
	if _, err := j.store.Push(ctx, QueueFetcherInitializers, b); err != nil {
		return fmt.Errorf("enqueue initializer: %w", err)
	}
	return nil
}

// NextInitializer blocks for a retrieval worker bootstrap.
func (j *Jobs) NextInitializer(ctx context.Context, timeout time.Duration) (*Initializer, error) {
	b, err := j.store.BlockingPop(ctx, QueueFetcherInitializers, timeout)
	if err != nil {
		return nil, err
	}
	var init Initializer
	if err := json.Unmarshal(b, &init); err != nil {
		return nil, fmt.Errorf("decode initializer: %w", err)
	}
	return &init, nil
}

// NextAnalyzerRank claims a review worker rank. The first caller gets 0.
func (j *Jobs) NextAnalyzerRank(ctx context.Context) (int, error) {
	n, err := j.store.Increment(ctx, CounterAnalyzerRank)
	if err != nil {
		return 0, fmt.Errorf("claim analyzer rank: %w", err)
	}
	return int(n - 1), nil
}

// Emit publishes a lifecycle event that does not accompany a store write,
// such as a skipped retrieval or a lookup timeout.
func (j *Jobs) Emit(ctx context.Context, t domain.LifecycleEventType, id, detail string) {
	j.emit(ctx, t, id, func(e *domain.LifecycleEvent) { e.Detail = detail })
}

func (j *Jobs) emit(ctx context.Context, t domain.LifecycleEventType, id string, mutate func(*domain.LifecycleEvent)) {
	if j.publisher == nil {
		return
	}
	e := domain.NewLifecycleEvent(t, j.role, id)
	if mutate != nil {
		mutate(e)
	}
	if err := j.publisher.Publish(ctx, e); err != nil {
		j.logger.Warn("failed to publish lifecycle event",
			slog.String("event", string(t)),
			slog.String("record_id", id),
			slog.String("error", err.Error()))
	}
}
