package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestProtocolError_IsMatchesKind(t *testing.T) {
	tests := []struct {
		kind ProtocolErrorKind
		want error
	}{
		{KindMalformedFrame, ErrMalformedFrame},
		{KindUnmatchedResponse, ErrUnmatchedResponse},
		{KindDirectionalityViolation, ErrDirectionalityViolation},
		{KindDecodeError, ErrDecode},
	}
	sentinels := []error{ErrMalformedFrame, ErrUnmatchedResponse, ErrDirectionalityViolation, ErrDecode}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("frame 3: %w", NewProtocolError(tt.kind, "bad", Inbound, []byte{0x03}))
			for _, s := range sentinels {
				if got := errors.Is(err, s); got != (s == tt.want) {
					t.Errorf("errors.Is(%v) = %v", s, got)
				}
			}
			if !IsProtocolError(err) {
				t.Error("IsProtocolError() = false")
			}
		})
	}
}

func TestProtocolError_CauseAndMessage(t *testing.T) {
	cause := errors.New("short frame")
	err := NewProtocolError(KindMalformedFrame, "undecodable envelope", Outbound, nil).WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	want := "malformed_frame: undecodable envelope: short frame"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDecodeError(t *testing.T) {
	err := DecodeError("record result", nil)
	if !errors.Is(err, ErrDecode) {
		t.Error("DecodeError is not ErrDecode")
	}
	if err.Error() != "decode_error: record result" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsProtocolError(errors.New("plain")) {
		t.Error("plain error reported as protocol error")
	}
}

func TestDirection(t *testing.T) {
	for _, d := range []Direction{Inbound, Outbound} {
		got, err := ParseDirection(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDirection(%q) = %v, %v", d.String(), got, err)
		}
		if d.Opposite() == d {
			t.Errorf("%v.Opposite() = %v", d, d.Opposite())
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}
