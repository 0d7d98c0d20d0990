package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/storage/archive"
	"github.com/tjfontaine/record-review-gateway/internal/storage/memory"
	"github.com/tjfontaine/record-review-gateway/internal/testutil"
)

const testID = "123456-ab3dff12-89ab-4cde-8f01-1234567890ab"

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func rawRecord(id string) []byte {
	rec := &codec.GameRecord{UUID: id, Data: []byte{0x08, 0x01}}
	return rec.Marshal()
}

type harness struct {
	store   *memory.Store
	jobs    *coordinator.Jobs
	events  *testutil.EventRecorder
	archive *archive.Archive
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	events := &testutil.EventRecorder{}
	arc, err := archive.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { arc.Close() })
	return &harness{
		store:   store,
		jobs:    coordinator.NewJobs(store, "analyzer", coordinator.WithPublisher(events), coordinator.WithClock(fixedClock)),
		events:  events,
		archive: arc,
	}
}

func (h *harness) worker(analysis Analysis, deadLetter bool) *Worker {
	return NewWorker(h.jobs, NewProducer(analysis, fixedClock), h.archive,
		Config{DeadLetter: deadLetter, PopTimeout: 10 * time.Millisecond}, nil)
}

func TestProducer_DefaultAnalysis(t *testing.T) {
	id, review, err := NewProducer(nil, fixedClock).Produce(rawRecord(testID))
	require.NoError(t, err)
	assert.Equal(t, testID, id)

	b, err := review.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error_code":0,"review":{},"timestamp":1700000000}`, string(b))
}

func TestProducer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		analysis Analysis
		want     error
	}{
		{
			name: "truncated bytes",
			raw:  []byte{0x1a, 0x05, 0x0a},
			want: ErrUndecodable,
		},
		{
			name: "missing uuid",
			raw:  (&codec.GameRecord{Data: []byte{0x01}}).Marshal(),
			want: ErrUndecodable,
		},
		{
			name: "analysis error",
			raw:  rawRecord(testID),
			analysis: AnalysisFunc(func(*codec.GameRecord) (json.RawMessage, error) {
				return nil, errors.New("model unavailable")
			}),
			want: ErrAnalysisFailed,
		},
		{
			name: "invalid payload",
			raw:  rawRecord(testID),
			analysis: AnalysisFunc(func(*codec.GameRecord) (json.RawMessage, error) {
				return json.RawMessage("{"), nil
			}),
			want: ErrAnalysisFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewProducer(tt.analysis, fixedClock).Produce(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWorker_PublishesAndArchives(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.jobs.EnqueueRaw(ctx, testID, rawRecord(testID)))

	outcome, err := h.worker(nil, true).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)

	stored, err := h.store.HashGet(ctx, coordinator.HashReviews, testID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error_code":0,"review":{},"timestamp":1700000000}`, string(stored))

	rec, err := h.archive.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ErrorCode)
	assert.Equal(t, 1, h.events.Count(domain.LifecycleReviewed))
}

func TestWorker_DuplicateKeepsFirstReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := &domain.Review{ErrorCode: domain.ErrorCodeNoSuchGame, Timestamp: 1}
	_, err := h.jobs.PublishReview(ctx, testID, first)
	require.NoError(t, err)

	outcome, err := h.worker(nil, true).Process(ctx, rawRecord(testID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	got, err := h.jobs.Review(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeNoSuchGame, got.ErrorCode)

	_, err = h.archive.Get(ctx, testID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestWorker_DeadLettersUndecodable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	raw := []byte{0x1a, 0x05, 0x0a}

	outcome, err := h.worker(nil, true).Process(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeadLettered, outcome)

	parked, err := h.store.BlockingPop(ctx, coordinator.QueueDeadLetter, time.Second)
	require.NoError(t, err)
	assert.Equal(t, raw, parked)
	assert.Equal(t, 1, h.events.Count(domain.LifecycleDeadLettered))
}

func TestWorker_DropsWhenDeadLetterDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	analysis := AnalysisFunc(func(*codec.GameRecord) (json.RawMessage, error) {
		return nil, errors.New("model unavailable")
	})
	outcome, err := h.worker(analysis, false).Process(ctx, rawRecord(testID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)

	n, err := h.store.Len(ctx, coordinator.QueueDeadLetter)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = h.jobs.Review(ctx, testID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestWorker_RunOnceIdle(t *testing.T) {
	h := newHarness(t)
	outcome, err := h.worker(nil, true).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
}

func TestWorker_StoreFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Close())

	_, err := h.worker(nil, true).RunOnce(context.Background())
	assert.True(t, ports.IsUnavailable(err))
}

func TestClaimRank_StartsAtZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for want := 0; want < 3; want++ {
		got, err := ClaimRank(ctx, h.jobs)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
