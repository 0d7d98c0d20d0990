// Package domain holds the canonical types shared by every worker role:
// observed frames, decoded envelopes, correlated exchanges, record events,
// and the review record written to the coordination store.
package domain

import "fmt"

// Direction identifies which side of the intercepted transport sent a frame.
type Direction int

const (
	// Inbound frames travel from the server to the capturing client.
	Inbound Direction = iota + 1
	// Outbound frames travel from the capturing client to the server.
	Outbound
)

// String returns the lowercase wire name of the direction.
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the direction a reply to d must travel in.
func (d Direction) Opposite() Direction {
	switch d {
	case Inbound:
		return Outbound
	case Outbound:
		return Inbound
	default:
		return d
	}
}

// ParseDirection parses "inbound" or "outbound".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "inbound":
		return Inbound, nil
	case "outbound":
		return Outbound, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// Opcode is the transport message type, numbered like WebSocket opcodes.
type Opcode int

const (
	OpcodeContinuation Opcode = 0
	OpcodeText         Opcode = 1
	OpcodeBinary       Opcode = 2
	OpcodeClose        Opcode = 8
	OpcodePing         Opcode = 9
	OpcodePong         Opcode = 10
)

// Frame is one directional message observed on the transport.
type Frame struct {
	Direction Direction
	Opcode    Opcode
	Content   []byte
}

// EnvelopeKind is the first byte of a frame's content.
type EnvelopeKind byte

const (
	KindRequestNoReply   EnvelopeKind = 0x01
	KindRequestWithReply EnvelopeKind = 0x02
	KindResponse         EnvelopeKind = 0x03
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindRequestNoReply:
		return "request-without-reply"
	case KindRequestWithReply:
		return "request-with-reply"
	case KindResponse:
		return "response"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// Envelope is the decoded logical structure of a frame's content.
// Method is empty for responses; Sequence is zero for requests without reply.
type Envelope struct {
	Kind     EnvelopeKind
	Sequence uint16
	Method   string
	Payload  []byte
}

// PendingRequest is a request-with-reply waiting for its response.
type PendingRequest struct {
	Sequence  uint16
	Direction Direction
	Method    string
	Content   []byte
}

// Exchange is a request matched to its response by sequence number.
type Exchange struct {
	Request  PendingRequest
	Response Frame
}
