package domain

import (
	"encoding/json"
	"fmt"
)

// ErrorCodeNoSuchGame is the server's error code for an unknown record.
const ErrorCodeNoSuchGame = 1203

// Review is the value stored under a record identifier in the reviews hash.
// Field order matches the wire contract.
type Review struct {
	ErrorCode int             `json:"error_code"`
	Review    json.RawMessage `json:"review"`
	Timestamp int64           `json:"timestamp"`
}

// Succeeded reports whether the review carries an analysis payload.
func (r *Review) Succeeded() bool {
	return r.ErrorCode == 0
}

// Marshal encodes the review for the store. A missing payload encodes as null.
func (r *Review) Marshal() ([]byte, error) {
	out := *r
	if len(out.Review) == 0 {
		out.Review = json.RawMessage("null")
	}
	return json.Marshal(&out)
}

// UnmarshalReview decodes a stored review.
func UnmarshalReview(data []byte) (*Review, error) {
	var r Review
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode review: %w", err)
	}
	if string(r.Review) == "null" {
		r.Review = nil
	}
	return &r, nil
}
