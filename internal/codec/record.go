// Package codec decodes the framed envelope carried on the captured
// transport and the record messages embedded in it. Messages are read with
// protobuf wire primitives; unknown fields are skipped.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Method names of the operations the extractor interprets.
const (
	MethodFetchGameRecord = ".lq.Lobby.fetchGameRecord"
	MethodReadGameRecord  = ".lq.Lobby.readGameRecord"
)

// Wrapper is the outer message of every envelope: a method name (empty on
// responses) and the encoded operation message.
type Wrapper struct {
	Name    string
	Data    []byte
	HasData bool
}

// GameRecordRequest is the request message of both record operations.
type GameRecordRequest struct {
	GameUUID      string
	ClientVersion string
}

// GameRecord is the result of a fetch: an error code, or the record head
// and its encoded body.
type GameRecord struct {
	ErrorCode uint32
	UUID      string
	Data      []byte
	DataURL   string
}

var errInvalidUTF8 = errors.New("string field is not valid UTF-8")

// fields walks the top-level fields of a message. fn returns the number of
// bytes it consumed from b, or zero to skip the field.
func fields(msg []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return protowire.ParseError(n)
		}
		msg = msg[n:]

		n, err := fn(num, typ, msg)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, msg)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		msg = msg[n:]
	}
	return nil
}

func consumeString(b []byte) (string, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", n, protowire.ParseError(n)
	}
	if !utf8.Valid(v) {
		return "", n, errInvalidUTF8
	}
	return string(v), n, nil
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n, protowire.ParseError(n)
	}
	return v, n, nil
}

// DecodeWrapper parses the outer envelope message.
func DecodeWrapper(b []byte) (*Wrapper, error) {
	var w Wrapper
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case 1:
			s, n, err := consumeString(b)
			w.Name = s
			return n, err
		case 2:
			v, n, err := consumeBytes(b)
			w.Data = v
			w.HasData = true
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode wrapper: %w", err)
	}
	return &w, nil
}

// Marshal encodes the wrapper. The name field is always written, even when
// empty, because the response marker depends on it.
func (w *Wrapper) Marshal() []byte {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendString(b, w.Name)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	return protowire.AppendBytes(b, w.Data)
}

// DecodeGameRecordRequest parses a fetch or read request message.
func DecodeGameRecordRequest(b []byte) (*GameRecordRequest, error) {
	var r GameRecordRequest
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case 1:
			s, n, err := consumeString(b)
			r.GameUUID = s
			return n, err
		case 2:
			s, n, err := consumeString(b)
			r.ClientVersion = s
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode record request: %w", err)
	}
	return &r, nil
}

func (r *GameRecordRequest) Marshal() []byte {
	var b []byte
	if r.GameUUID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.GameUUID)
	}
	if r.ClientVersion != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, r.ClientVersion)
	}
	return b
}

// DecodeGameRecord parses a fetch result message.
func DecodeGameRecord(b []byte) (*GameRecord, error) {
	var r GameRecord
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case 1:
			sub, n, err := consumeBytes(b)
			if err != nil {
				return n, err
			}
			code, err := decodeErrorCode(sub)
			r.ErrorCode = code
			return n, err
		case 3:
			sub, n, err := consumeBytes(b)
			if err != nil {
				return n, err
			}
			uuid, err := decodeHeadUUID(sub)
			r.UUID = uuid
			return n, err
		case 4:
			v, n, err := consumeBytes(b)
			r.Data = v
			return n, err
		case 5:
			s, n, err := consumeString(b)
			r.DataURL = s
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}

func decodeErrorCode(b []byte) (uint32, error) {
	var code uint32
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.VarintType {
			return 0, nil
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return n, protowire.ParseError(n)
		}
		code = uint32(v)
		return n, nil
	})
	return code, err
}

func decodeHeadUUID(b []byte) (string, error) {
	var uuid string
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return 0, nil
		}
		s, n, err := consumeString(b)
		uuid = s
		return n, err
	})
	return uuid, err
}

func (r *GameRecord) Marshal() []byte {
	var b []byte
	if r.ErrorCode != 0 {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(r.ErrorCode))
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	if r.UUID != "" {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.BytesType)
		sub = protowire.AppendString(sub, r.UUID)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	if len(r.Data) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Data)
	}
	if r.DataURL != "" {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, r.DataURL)
	}
	return b
}
