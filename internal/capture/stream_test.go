package capture

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
)

func dialStream(t *testing.T, p *Pipeline) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(p))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, dir string, content []byte) {
	t.Helper()
	data, err := json.Marshal(ReplayFrame{Direction: dir, Content: content})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// readClose waits for the server's close frame and returns its code.
func readClose(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	return ce.Code
}

func TestStream_HandlesFramesInOrder(t *testing.T) {
	p, store := newTestPipeline(t)
	conn := dialStream(t, p)

	sendFrame(t, conn, "outbound", codec.Request(5, codec.MethodReadGameRecord, recordReq()))
	sendFrame(t, conn, "inbound", codec.Response(5, nil))

	// The server handles messages before seeing the close, so the marker
	// is in place once the close handshake completes.
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Equal(t, websocket.CloseNormalClosure, readClose(t, conn))

	_, err := store.HashGet(context.Background(), coordinator.HashFetchedMarkers, recordID)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), p.Stats().Frames)
}

func TestStream_BadMessageClosesConnection(t *testing.T) {
	p, _ := newTestPipeline(t)
	conn := dialStream(t, p)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, websocket.CloseInvalidFramePayloadData, readClose(t, conn))
}

func TestStream_BinaryMessageIsRejected(t *testing.T) {
	p, _ := newTestPipeline(t)
	conn := dialStream(t, p)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	assert.Equal(t, websocket.CloseUnsupportedData, readClose(t, conn))
}

func TestStream_UnknownDirectionClosesConnection(t *testing.T) {
	p, _ := newTestPipeline(t)
	conn := dialStream(t, p)

	sendFrame(t, conn, "sideways", []byte("x"))
	assert.Equal(t, websocket.CloseInvalidFramePayloadData, readClose(t, conn))
}
