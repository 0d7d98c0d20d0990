package driver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/record-review-gateway/internal/testutil"
)

func TestHTTPTrigger_Recorded(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "trigger_open")
	defer cleanup()

	trigger, err := NewHTTPTrigger("http://driver.local:9000/", "bot@example.com", testutil.VCRHTTPClient(recorder), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := trigger.Trigger(context.Background(), "123456-ab3dff12-89ab-4cde-8f01-1234567890ab"); err != nil {
		t.Errorf("Trigger() error = %v", err)
	}

	err = trigger.Trigger(context.Background(), "654321-00000000-0000-4000-8000-000000000000")
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "browser session expired") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestHTTPTrigger_Request(t *testing.T) {
	var gotPath, gotType string
	var gotBody openRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	trigger, err := NewHTTPTrigger(srv.URL, "a@example.com", srv.Client(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := trigger.Trigger(context.Background(), "rec/1"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if gotPath != "/v1/records/rec/1/open" && gotPath != "/v1/records/rec%2F1/open" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody.RecordID != "rec/1" || gotBody.Account != "a@example.com" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestNewHTTPTrigger_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "::"} {
		if _, err := NewHTTPTrigger(u, "", nil, 0); err == nil {
			t.Errorf("NewHTTPTrigger(%q) expected error", u)
		}
	}
}

func TestLogTrigger(t *testing.T) {
	if err := (&LogTrigger{}).Trigger(context.Background(), "x"); err != nil {
		t.Errorf("Trigger() error = %v", err)
	}
}
