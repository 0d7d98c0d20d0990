// Package driver asks the client-side automation to open a record so that
// its traffic passes through the capture process. The automation itself is
// an external sidecar.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
)

// HTTPTrigger calls POST {base}/v1/records/{id}/open on the sidecar.
type HTTPTrigger struct {
	baseURL *url.URL
	account string
	client  *http.Client
}

var (
	_ ports.RetrievalTrigger = (*HTTPTrigger)(nil)
	_ ports.RetrievalTrigger = (*LogTrigger)(nil)
)

type openRequest struct {
	RecordID string `json:"record_id"`
	Account  string `json:"account"`
}

// NewHTTPTrigger creates a trigger acting for account. A nil client gets a
// default client with timeout.
func NewHTTPTrigger(baseURL, account string, client *http.Client, timeout time.Duration) (*HTTPTrigger, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse driver base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("driver base url %q must be http or https", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTrigger{baseURL: u, account: account, client: client}, nil
}

// Trigger returns nil on any 2xx response.
func (t *HTTPTrigger) Trigger(ctx context.Context, recordID string) error {
	body, err := json.Marshal(openRequest{RecordID: recordID, Account: t.account})
	if err != nil {
		return err
	}

	endpoint := t.baseURL.JoinPath("v1", "records", recordID, "open")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger %s: %w", recordID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trigger %s: driver returned %d: %s", recordID, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// LogTrigger only logs. It is used when no driver is configured and an
// operator opens records by hand.
type LogTrigger struct {
	Logger *slog.Logger
}

func (t *LogTrigger) Trigger(ctx context.Context, recordID string) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "open record in the client to continue", slog.String("record_id", recordID))
	return nil
}
