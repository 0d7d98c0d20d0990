package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/record-review-gateway/internal/server"
)

const closeWriteWait = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 4 << 10,
}

// streamError carries the close code a failed stream ends with.
type streamError struct {
	code int
	err  error
}

func (e *streamError) Error() string { return e.err.Error() }
func (e *streamError) Unwrap() error { return e.err }

// stream upgrades to a websocket and feeds each text message, a JSON
// ReplayFrame, through the pipeline in arrival order.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		server.AddError(r.Context(), err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(maxReplayLine))

	n, err := Stream(r.Context(), h.pipeline, conn)
	server.AddLogField(r.Context(), "frames", fmt.Sprint(n))
	if err == nil {
		return
	}

	var se *streamError
	if !errors.As(err, &se) {
		return
	}
	server.AddError(r.Context(), se.err)
	msg := websocket.FormatCloseMessage(se.code, se.err.Error())
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
}

// Stream reads messages from conn until the peer closes or a message cannot
// be handled. A normal close returns nil.
func Stream(ctx context.Context, p *Pipeline, conn *websocket.Conn) (int, error) {
	n := 0
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return n, nil
			}
			return n, err
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if kind != websocket.TextMessage {
			return n, &streamError{code: websocket.CloseUnsupportedData, err: fmt.Errorf("message %d: frames must be text", n+1)}
		}

		var rf ReplayFrame
		if err := json.Unmarshal(data, &rf); err != nil {
			return n, &streamError{code: websocket.CloseInvalidFramePayloadData, err: fmt.Errorf("message %d: %w", n+1, err)}
		}
		f, err := rf.Frame()
		if err != nil {
			return n, &streamError{code: websocket.CloseInvalidFramePayloadData, err: fmt.Errorf("message %d: %w", n+1, err)}
		}
		if err := p.Handle(ctx, f); err != nil {
			return n, &streamError{code: websocket.CloseInternalServerErr, err: fmt.Errorf("message %d: %w", n+1, err)}
		}
		n++
	}
}
