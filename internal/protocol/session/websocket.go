package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket adapts a gorilla connection to frame.Transport. Incoming
// message bodies are read as one continuous byte stream; buffered writes go
// out as one binary message per Flush.
//
// Reads block. gorilla treats an expired read deadline as fatal for the
// connection, so there is no would-block polling on this transport.
type WebSocket struct {
	ws           *websocket.Conn
	r            io.Reader
	wbuf         bytes.Buffer
	writeTimeout time.Duration
}

func NewWebSocket(ws *websocket.Conn, writeTimeout time.Duration) *WebSocket {
	return &WebSocket{ws: ws, writeTimeout: writeTimeout}
}

// DialWebSocket opens a client connection to url (ws:// or wss://).
func DialWebSocket(ctx context.Context, url string, cfg Config) (*WebSocket, error) {
	cfg = cfg.WithDefaults()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.DialTimeout,
	}
	var header http.Header
	if cfg.AuthToken != "" {
		header = http.Header{"Authorization": []string{"Bearer " + cfg.AuthToken}}
	}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return NewWebSocket(ws, cfg.WriteTimeout), nil
}

func (w *WebSocket) Read(p []byte) (int, error) {
	for {
		if w.r == nil {
			_, r, err := w.ws.NextReader()
			if err != nil {
				return 0, closeToEOF(err)
			}
			w.r = r
		}
		n, err := w.r.Read(p)
		if errors.Is(err, io.EOF) {
			w.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, closeToEOF(err)
	}
}

func (w *WebSocket) Write(p []byte) (int, error) {
	return w.wbuf.Write(p)
}

// Flush sends everything written since the last Flush as one binary
// message.
func (w *WebSocket) Flush() error {
	if w.wbuf.Len() == 0 {
		return nil
	}
	if w.writeTimeout > 0 {
		if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	if err := w.ws.WriteMessage(websocket.BinaryMessage, w.wbuf.Bytes()); err != nil {
		return err
	}
	w.wbuf.Reset()
	return nil
}

// CloseWrite flushes and sends a normal-closure control frame. The peer's
// reads end with io.EOF.
func (w *WebSocket) CloseWrite() error {
	if err := w.Flush(); err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := w.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.controlTimeout()))
	if errors.Is(err, websocket.ErrCloseSent) {
		// the peer closed first and gorilla already answered
		return nil
	}
	return err
}

func (w *WebSocket) Close() error {
	return w.ws.Close()
}

func (w *WebSocket) Conn() *websocket.Conn {
	return w.ws
}

func (w *WebSocket) RemoteAddr() string {
	if addr := w.ws.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (w *WebSocket) controlTimeout() time.Duration {
	if w.writeTimeout > 0 {
		return w.writeTimeout
	}
	return time.Second
}

func closeToEOF(err error) error {
	if err == nil {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
