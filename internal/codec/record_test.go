package codec

import (
	"bytes"
	"testing"
)

func TestGameRecordRequest(t *testing.T) {
	req := &GameRecordRequest{GameUUID: "123456-ab3dff12-89ab-4cde-8f01-1234567890ab", ClientVersion: "0.10.1.w"}

	got, err := DecodeGameRecordRequest(req.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != *req {
		t.Errorf("DecodeGameRecordRequest() = %+v, want %+v", got, req)
	}
}

func TestDecodeGameRecord(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		in := &GameRecord{UUID: "rec-1", Data: []byte{1, 2, 3}, DataURL: "https://example.com/r"}
		got, err := DecodeGameRecord(in.Marshal())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ErrorCode != 0 || got.UUID != "rec-1" || got.DataURL != in.DataURL {
			t.Errorf("DecodeGameRecord() = %+v", got)
		}
		if !bytes.Equal(got.Data, in.Data) {
			t.Errorf("Data = %x, want %x", got.Data, in.Data)
		}
	})

	t.Run("error", func(t *testing.T) {
		got, err := DecodeGameRecord((&GameRecord{ErrorCode: 1203}).Marshal())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ErrorCode != 1203 {
			t.Errorf("ErrorCode = %d, want 1203", got.ErrorCode)
		}
	})

	t.Run("skips unknown fields", func(t *testing.T) {
		b := []byte{0x30, 0x05} // field 6, varint 5
		b = append(b, (&GameRecord{UUID: "x"}).Marshal()...)
		got, err := DecodeGameRecord(b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.UUID != "x" {
			t.Errorf("UUID = %q, want x", got.UUID)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := DecodeGameRecord([]byte{0xff, 0xff, 0xff}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid utf8 uuid", func(t *testing.T) {
		// head{uuid: "\xff"}
		b := []byte{0x1a, 0x03, 0x0a, 0x01, 0xff}
		if _, err := DecodeGameRecord(b); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestWrapperRoundTripKeepsEmptyName(t *testing.T) {
	b := (&Wrapper{Data: []byte("x")}).Marshal()
	if !bytes.HasPrefix(b, []byte{0x0a, 0x00, 0x12}) {
		t.Fatalf("Marshal() = %x, want response marker prefix", b)
	}
}
