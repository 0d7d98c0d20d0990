package extractor

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

const recordID = "123456-ab3dff12-89ab-4cde-8f01-1234567890ab"

func exchange(method string, dir domain.Direction, reqPayload, respPayload []byte) *domain.Exchange {
	return &domain.Exchange{
		Request: domain.PendingRequest{
			Sequence:  1,
			Direction: dir,
			Method:    method,
			Content:   codec.Request(1, method, reqPayload),
		},
		Response: domain.Frame{
			Direction: dir.Opposite(),
			Opcode:    domain.OpcodeBinary,
			Content:   codec.Response(1, respPayload),
		},
	}
}

func recordRequest() []byte {
	return (&codec.GameRecordRequest{GameUUID: recordID, ClientVersion: "v1"}).Marshal()
}

func TestExtractFetchSucceeded(t *testing.T) {
	raw := (&codec.GameRecord{UUID: recordID, Data: []byte("body")}).Marshal()

	ev, err := Extract(exchange(codec.MethodFetchGameRecord, domain.Outbound, recordRequest(), raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := ev.(domain.FetchSucceeded)
	if !ok {
		t.Fatalf("event = %T, want FetchSucceeded", ev)
	}
	if got.RecordID != recordID {
		t.Errorf("RecordID = %q, want %q", got.RecordID, recordID)
	}
	if !bytes.Equal(got.Raw, raw) {
		t.Errorf("Raw = %x, want %x", got.Raw, raw)
	}
}

func TestExtractFetchSucceededUsesHeadUUID(t *testing.T) {
	raw := (&codec.GameRecord{UUID: "from-head"}).Marshal()

	ev, err := Extract(exchange(codec.MethodFetchGameRecord, domain.Outbound, recordRequest(), raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID() != "from-head" {
		t.Errorf("ID() = %q, want from-head", ev.ID())
	}
}

func TestExtractFetchFailed(t *testing.T) {
	raw := (&codec.GameRecord{ErrorCode: domain.ErrorCodeNoSuchGame}).Marshal()

	ev, err := Extract(exchange(codec.MethodFetchGameRecord, domain.Outbound, recordRequest(), raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := ev.(domain.FetchFailed)
	if !ok {
		t.Fatalf("event = %T, want FetchFailed", ev)
	}
	if got.RecordID != recordID || got.ErrorCode != domain.ErrorCodeNoSuchGame {
		t.Errorf("FetchFailed = %+v", got)
	}
}

func TestExtractRecordOpened(t *testing.T) {
	ev, err := Extract(exchange(codec.MethodReadGameRecord, domain.Outbound, recordRequest(), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := ev.(domain.RecordOpened); !ok || got.RecordID != recordID {
		t.Errorf("event = %#v, want RecordOpened{%s}", ev, recordID)
	}
}

func TestExtractIgnored(t *testing.T) {
	tests := []struct {
		name string
		ex   *domain.Exchange
	}{
		{"nil", nil},
		{"other method", exchange(".lq.Lobby.heartbeat", domain.Outbound, nil, nil)},
		{"inbound request", exchange(codec.MethodFetchGameRecord, domain.Inbound, recordRequest(), nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Extract(tt.ex)
			if err != nil || ev != nil {
				t.Errorf("Extract() = %v, %v; want nil, nil", ev, err)
			}
		})
	}
}

func TestExtractDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		ex   *domain.Exchange
	}{
		{"garbage result", exchange(codec.MethodFetchGameRecord, domain.Outbound, recordRequest(), []byte{0xff, 0xff})},
		{"success without uuid", exchange(codec.MethodFetchGameRecord, domain.Outbound, recordRequest(), (&codec.GameRecord{Data: []byte("x")}).Marshal())},
		{"failure with garbage request", exchange(codec.MethodFetchGameRecord, domain.Outbound, []byte{0xff, 0xff}, (&codec.GameRecord{ErrorCode: 5}).Marshal())},
		{"read without uuid", exchange(codec.MethodReadGameRecord, domain.Outbound, nil, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.ex)
			if !errors.Is(err, domain.ErrDecode) {
				t.Errorf("Extract() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestExtractMethodMismatch(t *testing.T) {
	ex := exchange(codec.MethodFetchGameRecord, domain.Outbound, recordRequest(), (&codec.GameRecord{ErrorCode: 5}).Marshal())
	ex.Request.Content = codec.Request(1, codec.MethodReadGameRecord, recordRequest())

	if _, err := Extract(ex); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("Extract() error = %v, want ErrDecode", err)
	}
}
