package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// wrapperMarker is the tag byte of Wrapper.name; every envelope body starts with it.
const wrapperMarker = 0x0a

var (
	ErrShortFrame     = errors.New("frame too short")
	ErrUnknownKind    = errors.New("unknown envelope kind")
	ErrMissingMarker  = errors.New("missing envelope marker")
	ErrMissingMethod  = errors.New("request without method name")
	ErrUnexpectedName = errors.New("response carries a method name")
	ErrMissingData    = errors.New("envelope without data field")
)

// DecodeEnvelope parses frame content into its kind, sequence number,
// method name and payload.
func DecodeEnvelope(content []byte) (*domain.Envelope, error) {
	if len(content) == 0 {
		return nil, ErrShortFrame
	}

	env := &domain.Envelope{Kind: domain.EnvelopeKind(content[0])}
	header := 1
	switch env.Kind {
	case domain.KindRequestNoReply:
	case domain.KindRequestWithReply, domain.KindResponse:
		if len(content) < 3 {
			return nil, ErrShortFrame
		}
		env.Sequence = binary.LittleEndian.Uint16(content[1:3])
		header = 3
	default:
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownKind, content[0])
	}

	body := content[header:]
	if len(body) == 0 || body[0] != wrapperMarker {
		return nil, ErrMissingMarker
	}
	w, err := DecodeWrapper(body)
	if err != nil {
		return nil, err
	}
	if !w.HasData {
		return nil, ErrMissingData
	}

	if env.Kind == domain.KindResponse {
		if w.Name != "" {
			return nil, ErrUnexpectedName
		}
	} else if w.Name == "" {
		return nil, ErrMissingMethod
	}

	env.Method = w.Name
	env.Payload = w.Data
	return env, nil
}

// EncodeEnvelope builds frame content for env. It is the inverse of
// DecodeEnvelope and is used by replay tooling and tests.
func EncodeEnvelope(env *domain.Envelope) []byte {
	var b []byte
	switch env.Kind {
	case domain.KindRequestNoReply:
		b = []byte{byte(env.Kind)}
	default:
		b = []byte{byte(env.Kind), 0, 0}
		binary.LittleEndian.PutUint16(b[1:], env.Sequence)
	}
	w := Wrapper{Name: env.Method, Data: env.Payload}
	if env.Kind == domain.KindResponse {
		w.Name = ""
	}
	return append(b, w.Marshal()...)
}

// Request returns the content of a request-with-reply.
func Request(seq uint16, method string, payload []byte) []byte {
	return EncodeEnvelope(&domain.Envelope{Kind: domain.KindRequestWithReply, Sequence: seq, Method: method, Payload: payload})
}

// Notify returns the content of a request-without-reply.
func Notify(method string, payload []byte) []byte {
	return EncodeEnvelope(&domain.Envelope{Kind: domain.KindRequestNoReply, Method: method, Payload: payload})
}

// Response returns the content of a response.
func Response(seq uint16, payload []byte) []byte {
	return EncodeEnvelope(&domain.Envelope{Kind: domain.KindResponse, Sequence: seq, Payload: payload})
}
