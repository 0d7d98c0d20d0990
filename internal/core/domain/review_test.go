package domain

import (
	"encoding/json"
	"testing"
)

func TestReview_MarshalFieldOrder(t *testing.T) {
	tests := []struct {
		name   string
		review Review
		want   string
	}{
		{
			name:   "reviewed",
			review: Review{Review: json.RawMessage(`{}`), Timestamp: 1700000000},
			want:   `{"error_code":0,"review":{},"timestamp":1700000000}`,
		},
		{
			name:   "failed",
			review: Review{ErrorCode: ErrorCodeNoSuchGame, Timestamp: 1700000000},
			want:   `{"error_code":1203,"review":null,"timestamp":1700000000}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.review.Marshal()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal() = %s, want %s", b, tt.want)
			}
		})
	}
}

func TestUnmarshalReview(t *testing.T) {
	r, err := UnmarshalReview([]byte(`{"error_code":1203,"review":null,"timestamp":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Review != nil {
		t.Errorf("Review = %s, want nil", r.Review)
	}
	if r.Succeeded() {
		t.Error("Succeeded() = true for error code 1203")
	}

	r, err = UnmarshalReview([]byte(`{"error_code":0,"review":{"a":1},"timestamp":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(r.Review) != `{"a":1}` || !r.Succeeded() {
		t.Errorf("review = %+v", r)
	}

	if _, err := UnmarshalReview([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
