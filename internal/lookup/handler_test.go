package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

func newTestRouter(t *testing.T) (http.Handler, *Bridge) {
	t.Helper()
	b, jobs, _, _, _ := newTestBridge(t)
	b.SetTimeout(2 * time.Second)

	ctx := context.Background()
	reviews := map[string]*domain.Review{
		"100000-ab3dff12-89ab-4cde-8f01-1234567890ab": {ErrorCode: 0, Review: []byte(`{"score":1}`), Timestamp: 1},
		"200000-ab3dff12-89ab-4cde-8f01-1234567890ab": {ErrorCode: domain.ErrorCodeNoSuchGame, Timestamp: 1},
		"300000-ab3dff12-89ab-4cde-8f01-1234567890ab": {ErrorCode: 1001, Timestamp: 1},
	}
	for id, r := range reviews {
		if _, err := jobs.PublishReview(ctx, id, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	r := chi.NewRouter()
	NewHandler(b).Register(r)
	return r, b
}

func TestHandler_StatusMapping(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"index", "/", http.StatusOK, ""},
		{"reviewed", "/100000-ab3dff12-89ab-4cde-8f01-1234567890ab", http.StatusOK, `{"score":1}`},
		{"not found", "/200000-ab3dff12-89ab-4cde-8f01-1234567890ab", http.StatusNotFound, ""},
		{"client error", "/300000-ab3dff12-89ab-4cde-8f01-1234567890ab", http.StatusBadRequest, ""},
		{"invalid id", "/abc", http.StatusBadRequest, ""},
		{"timeout", "/" + testID, http.StatusRequestTimeout, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" || tt.wantCode == http.StatusOK {
				if got := rec.Body.String(); got != tt.wantBody {
					t.Errorf("body = %q, want %q", got, tt.wantBody)
				}
			}
		})
	}
}

func TestHandler_ReviewedSetsJSONContentType(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/100000-ab3dff12-89ab-4cde-8f01-1234567890ab", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
