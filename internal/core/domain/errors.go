package domain

import (
	"errors"
	"fmt"
)

// ProtocolErrorKind categorizes failures in frame correlation and decoding.
type ProtocolErrorKind string

const (
	KindMalformedFrame          ProtocolErrorKind = "malformed_frame"
	KindUnmatchedResponse       ProtocolErrorKind = "unmatched_response"
	KindDirectionalityViolation ProtocolErrorKind = "directionality_violation"
	KindDecodeError             ProtocolErrorKind = "decode_error"
)

// Sentinels matched by errors.Is against a *ProtocolError of the same kind.
var (
	ErrMalformedFrame          = errors.New("malformed frame")
	ErrUnmatchedResponse       = errors.New("unmatched response")
	ErrDirectionalityViolation = errors.New("directionality violation")
	ErrDecode                  = errors.New("decode error")
)

// ProtocolError describes a frame that could not be correlated or decoded.
// It is never fatal to the capture process: the frame is dropped and
// processing continues with the next one.
type ProtocolError struct {
	Kind      ProtocolErrorKind
	Message   string
	Direction Direction
	Content   []byte
	Err       error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrMalformedFrame:
		return e.Kind == KindMalformedFrame
	case ErrUnmatchedResponse:
		return e.Kind == KindUnmatchedResponse
	case ErrDirectionalityViolation:
		return e.Kind == KindDirectionalityViolation
	case ErrDecode:
		return e.Kind == KindDecodeError
	}
	return false
}

// NewProtocolError creates a protocol error for a frame.
func NewProtocolError(kind ProtocolErrorKind, message string, dir Direction, content []byte) *ProtocolError {
	return &ProtocolError{
		Kind:      kind,
		Message:   message,
		Direction: dir,
		Content:   content,
	}
}

// WithCause attaches an underlying error.
func (e *ProtocolError) WithCause(err error) *ProtocolError {
	e.Err = err
	return e
}

// DecodeError builds a KindDecodeError error wrapping err.
func DecodeError(message string, err error) *ProtocolError {
	return &ProtocolError{Kind: KindDecodeError, Message: message, Err: err}
}

// IsProtocolError reports whether err is a per-frame protocol failure.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
