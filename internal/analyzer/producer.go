// Package analyzer turns raw fetched records into reviews.
package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

var (
	// ErrUndecodable marks a raw record whose bytes are not a fetch result.
	ErrUndecodable = errors.New("raw record undecodable")
	// ErrAnalysisFailed marks a record the analysis rejected.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// Analysis computes the review payload for a decoded record.
type Analysis interface {
	Analyze(rec *codec.GameRecord) (json.RawMessage, error)
}

// AnalysisFunc adapts a function to Analysis.
type AnalysisFunc func(rec *codec.GameRecord) (json.RawMessage, error)

func (f AnalysisFunc) Analyze(rec *codec.GameRecord) (json.RawMessage, error) {
	return f(rec)
}

// EmptyAnalysis produces an empty object for every record.
var EmptyAnalysis = AnalysisFunc(func(*codec.GameRecord) (json.RawMessage, error) {
	return json.RawMessage("{}"), nil
})

// Producer builds reviews from raw records.
type Producer struct {
	analysis Analysis
	now      func() time.Time
}

// NewProducer creates a producer. A nil analysis uses EmptyAnalysis and a
// nil clock uses time.Now.
func NewProducer(analysis Analysis, now func() time.Time) *Producer {
	if analysis == nil {
		analysis = EmptyAnalysis
	}
	if now == nil {
		now = time.Now
	}
	return &Producer{analysis: analysis, now: now}
}

// Produce decodes raw and returns the record identifier and its review.
func (p *Producer) Produce(raw []byte) (string, *domain.Review, error) {
	rec, err := codec.DecodeGameRecord(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if rec.UUID == "" {
		return "", nil, fmt.Errorf("%w: record head has no uuid", ErrUndecodable)
	}

	review := &domain.Review{
		ErrorCode: int(rec.ErrorCode),
		Timestamp: p.now().Unix(),
	}
	if rec.ErrorCode != 0 {
		return rec.UUID, review, nil
	}

	payload, err := p.analysis.Analyze(rec)
	if err != nil {
		return rec.UUID, nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if !json.Valid(payload) {
		return rec.UUID, nil, fmt.Errorf("%w: payload is not valid JSON", ErrAnalysisFailed)
	}
	review.Review = payload
	return rec.UUID, review, nil
}
