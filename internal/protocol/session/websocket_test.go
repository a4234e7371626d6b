package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/netframe/internal/protocol/frame"
	"github.com/danmuck/netframe/internal/testutil/testlog"
)

// wsEchoServer upgrades every request and echoes frames back until the
// client closes.
func wsEchoServer(t *testing.T) (*httptest.Server, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			done <- err
			return
		}
		defer ws.Close()
		p := NewPump(frame.NewFramed(NewWebSocket(ws, time.Second)), testConfig(), zerolog.Nop())
		ctx := r.Context()
		for {
			payload, err := p.Recv(ctx)
			if err == io.EOF {
				done <- p.Close(ctx)
				return
			}
			if err != nil {
				done <- err
				return
			}
			if err := p.Send(ctx, payload); err != nil {
				done <- err
				return
			}
		}
	}))
	return srv, done
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketPumpRoundTrip(t *testing.T) {
	testlog.Start(t)
	srv, done := wsEchoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := DialWebSocket(ctx, wsURL(srv), testConfig())
	require.NoError(t, err)
	defer ws.Close()

	p := NewPump(frame.NewFramed(ws), testConfig(), zerolog.Nop())
	for _, msg := range []string{"over", "a", "websocket"} {
		require.NoError(t, p.Send(ctx, []byte(msg)))
		got, err := p.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, msg, string(got))
	}
	require.NoError(t, p.Close(ctx))
	_, err = p.Recv(ctx)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, <-done)
}

func TestWebSocketMessagesFormOneStream(t *testing.T) {
	testlog.Start(t)
	srv, done := wsEchoServer(t)
	defer srv.Close()

	raw, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	if resp.Body != nil {
		resp.Body.Close()
	}
	defer raw.Close()

	// one frame split across two messages, then two frames in one message
	require.NoError(t, raw.WriteMessage(websocket.BinaryMessage, []byte("3:ab")))
	require.NoError(t, raw.WriteMessage(websocket.BinaryMessage, []byte("c,")))
	require.NoError(t, raw.WriteMessage(websocket.BinaryMessage, []byte("1:x,1:y,")))

	var echoed strings.Builder
	for echoed.Len() < len("3:abc,1:x,1:y,") {
		_, msg, err := raw.ReadMessage()
		require.NoError(t, err)
		echoed.Write(msg)
	}
	require.Equal(t, "3:abc,1:x,1:y,", echoed.String())

	require.NoError(t, raw.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second)))
	require.NoError(t, <-done)
}
