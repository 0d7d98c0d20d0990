// Package correlator pairs request frames with their responses by sequence
// number. A Correlator owns its pending table and expects a single ordered
// stream of Observe calls.
package correlator

import (
	"log/slog"

	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// Result is the outcome of observing one frame. Both fields are optional.
type Result struct {
	// Exchange is set when a response matched a pending request.
	Exchange *domain.Exchange
	// Overwritten is the stale entry replaced by a request that reused its
	// sequence number, meaning the earlier response was dropped.
	Overwritten *domain.PendingRequest
}

// Correlator reconstructs request/response pairs from a frame stream.
type Correlator struct {
	pending map[uint16]domain.PendingRequest
	logger  *slog.Logger
}

// New creates a correlator with an empty pending table.
func New(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		pending: make(map[uint16]domain.PendingRequest),
		logger:  logger,
	}
}

// Pending returns the number of requests still waiting for a response.
func (c *Correlator) Pending() int {
	return len(c.pending)
}

// Restore puts back a request consumed by a response whose exchange could
// not be recorded, so a redelivered response matches again. A request that
// has since reused the sequence number wins.
func (c *Correlator) Restore(req domain.PendingRequest) {
	if _, ok := c.pending[req.Sequence]; ok {
		return
	}
	c.pending[req.Sequence] = req
}

// Observe decodes one frame and updates the pending table. Every error is a
// *domain.ProtocolError; the frame is dropped and the correlator remains
// usable.
func (c *Correlator) Observe(f domain.Frame) (Result, error) {
	if f.Opcode != domain.OpcodeBinary {
		return Result{}, domain.NewProtocolError(domain.KindMalformedFrame,
			"unsupported opcode", f.Direction, f.Content)
	}

	env, err := codec.DecodeEnvelope(f.Content)
	if err != nil {
		return Result{}, domain.NewProtocolError(domain.KindMalformedFrame,
			"undecodable envelope", f.Direction, f.Content).WithCause(err)
	}

	switch env.Kind {
	case domain.KindRequestNoReply:
		return Result{}, nil

	case domain.KindRequestWithReply:
		entry := domain.PendingRequest{
			Sequence:  env.Sequence,
			Direction: f.Direction,
			Method:    env.Method,
			Content:   f.Content,
		}
		var res Result
		if stale, ok := c.pending[env.Sequence]; ok {
			c.logger.Warn("stale request overwritten",
				slog.Int("sequence", int(stale.Sequence)),
				slog.String("stale_method", stale.Method),
				slog.String("stale_direction", stale.Direction.String()),
				slog.String("method", env.Method))
			res.Overwritten = &stale
		}
		c.pending[env.Sequence] = entry
		return res, nil

	default:
		req, ok := c.pending[env.Sequence]
		if !ok {
			return Result{}, domain.NewProtocolError(domain.KindUnmatchedResponse,
				"no pending request for sequence", f.Direction, f.Content)
		}
		delete(c.pending, env.Sequence)

		if req.Direction == f.Direction {
			return Result{}, domain.NewProtocolError(domain.KindDirectionalityViolation,
				"response travels in the same direction as "+req.Method, f.Direction, f.Content)
		}
		return Result{Exchange: &domain.Exchange{Request: req, Response: f}}, nil
	}
}
