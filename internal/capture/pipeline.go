// Package capture feeds observed frames through correlation and extraction
// and records the resulting events in the coordination store.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/correlator"
	"github.com/tjfontaine/record-review-gateway/internal/extractor"
	"github.com/tjfontaine/record-review-gateway/internal/telemetry"
)

// Stats counts pipeline activity since start.
type Stats struct {
	Frames         uint64 `json:"frames"`
	Exchanges      uint64 `json:"exchanges"`
	Events         uint64 `json:"events"`
	ProtocolErrors uint64 `json:"protocol_errors"`
	DecodeErrors   uint64 `json:"decode_errors"`
	StaleRequests  uint64 `json:"stale_requests"`
	Pending        int    `json:"pending"`
}

// Pipeline is the single ordered consumer of one traffic session.
type Pipeline struct {
	mu         sync.Mutex
	correlator *correlator.Correlator
	recorder   *coordinator.Recorder
	logger     *slog.Logger

	frames, exchanges, events atomic.Uint64
	protocolErrs, decodeErrs  atomic.Uint64
	stale                     atomic.Uint64
}

// NewPipeline creates a pipeline writing events through recorder.
func NewPipeline(recorder *coordinator.Recorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		correlator: correlator.New(logger),
		recorder:   recorder,
		logger:     logger,
	}
}

// Handle processes one frame. Protocol and decode failures are logged and
// the frame is dropped; only store errors are returned. After a store error
// the matched request stays pending, so the same response can be handled
// again.
func (p *Pipeline) Handle(ctx context.Context, f domain.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames.Add(1)

	res, err := p.correlator.Observe(f)
	if err != nil {
		p.protocolErrs.Add(1)
		p.logProtocolError(ctx, "dropping frame", err)
		return nil
	}
	if res.Overwritten != nil {
		p.stale.Add(1)
	}
	if res.Exchange == nil {
		return nil
	}
	p.exchanges.Add(1)

	ev, err := extractor.Extract(res.Exchange)
	if err != nil {
		p.decodeErrs.Add(1)
		p.logProtocolError(ctx, "skipping exchange", err)
		return nil
	}
	if ev == nil {
		return nil
	}
	p.events.Add(1)

	ctx, span := telemetry.Tracer().Start(ctx, "capture.record_event")
	defer span.End()
	span.SetAttributes(
		attribute.String("record.id", ev.ID()),
		attribute.String("record.event", eventName(ev)),
	)

	if err := p.recorder.Apply(ctx, ev); err != nil {
		// The source may resend the response once the store recovers.
		p.correlator.Restore(res.Exchange.Request)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.logger.Debug("recorded event",
		slog.String("event", eventName(ev)),
		slog.String("record_id", ev.ID()))
	return nil
}

func (p *Pipeline) logProtocolError(ctx context.Context, msg string, err error) {
	attrs := []slog.Attr{slog.String("error", err.Error())}
	var pe *domain.ProtocolError
	if errors.As(err, &pe) {
		attrs = append(attrs,
			slog.String("kind", string(pe.Kind)),
			slog.String("direction", pe.Direction.String()),
			slog.String("content", base64.StdEncoding.EncodeToString(pe.Content)))
	}
	p.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	pending := p.correlator.Pending()
	p.mu.Unlock()

	return Stats{
		Frames:         p.frames.Load(),
		Exchanges:      p.exchanges.Load(),
		Events:         p.events.Load(),
		ProtocolErrors: p.protocolErrs.Load(),
		DecodeErrors:   p.decodeErrs.Load(),
		StaleRequests:  p.stale.Load(),
		Pending:        pending,
	}
}

func eventName(ev domain.Event) string {
	switch ev.(type) {
	case domain.FetchSucceeded:
		return "fetch_succeeded"
	case domain.FetchFailed:
		return "fetch_failed"
	case domain.RecordOpened:
		return "record_opened"
	default:
		return "unknown"
	}
}
