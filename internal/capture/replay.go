package capture

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// replayLineOverhead covers the JSON keys and direction around the content.
const replayLineOverhead = 4 << 10

// maxReplayLine bounds one JSON line so that any frame POST /v1/frames
// accepts also fits, base64-encoded, in a replay line or stream message.
var maxReplayLine = base64.StdEncoding.EncodedLen(maxFrameBytes) + replayLineOverhead

// ReplayFrame is one line of a replay file. Content is base64 in JSON.
type ReplayFrame struct {
	Direction string `json:"direction"`
	Opcode    *int   `json:"opcode,omitempty"`
	Content   []byte `json:"content"`
}

// Frame converts the line; a missing opcode means binary.
func (rf *ReplayFrame) Frame() (domain.Frame, error) {
	dir, err := domain.ParseDirection(rf.Direction)
	if err != nil {
		return domain.Frame{}, err
	}
	op := domain.OpcodeBinary
	if rf.Opcode != nil {
		op = domain.Opcode(*rf.Opcode)
	}
	return domain.Frame{Direction: dir, Opcode: op, Content: rf.Content}, nil
}

// Replay feeds newline-delimited frames from r through the pipeline in
// order. Blank lines are skipped. It stops at the first unreadable line or
// store error and reports the number of frames handled.
func Replay(ctx context.Context, p *Pipeline, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxReplayLine)

	n, line := 0, 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		var rf ReplayFrame
		if err := json.Unmarshal(sc.Bytes(), &rf); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		f, err := rf.Frame()
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := p.Handle(ctx, f); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, err
	}
	return n, nil
}
