package session

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"time"

	"github.com/danmuck/netframe/internal/protocol/frame"
)

// Conn adapts a net.Conn to frame.Transport. With a poll interval every
// read and write carries a deadline, and an expired deadline is reported as
// frame.ErrWouldBlock with whatever bytes made it through.
//
// Writes go straight to the socket; Flush has nothing to do. A timed out
// TLS write leaves the record layer broken, so writes on *tls.Conn never
// carry a poll deadline.
type Conn struct {
	conn       net.Conn
	poll       time.Duration
	pollWrites bool
}

func NewConn(conn net.Conn, poll time.Duration) *Conn {
	_, isTLS := conn.(*tls.Conn)
	return &Conn{conn: conn, poll: poll, pollWrites: !isTLS}
}

// Dial connects to addr and wraps the connection with cfg.PollInterval. The
// TLS handshake, when configured, completes before Dial returns.
func Dial(ctx context.Context, network, addr string, cfg Config) (*Conn, error) {
	cfg = cfg.WithDefaults()
	tlsCfg, err := cfg.TLS.ClientConfig()
	if err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	if tlsCfg == nil {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return NewConn(conn, cfg.PollInterval), nil
	}
	td := tls.Dialer{NetDialer: &d, Config: tlsCfg}
	conn, err := td.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return NewConn(conn, cfg.PollInterval), nil
}

// Handshake completes the TLS handshake on accepted connections so it never
// runs under a poll deadline. It is a no-op for plain connections.
func (c *Conn) Handshake(ctx context.Context) error {
	if tc, ok := c.conn.(*tls.Conn); ok {
		return tc.HandshakeContext(ctx)
	}
	return nil
}

func (c *Conn) Read(p []byte) (int, error) {
	if c.poll > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.poll)); err != nil {
			return 0, err
		}
	}
	n, err := c.conn.Read(p)
	return n, translateTimeout(err)
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.poll > 0 && c.pollWrites {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.poll)); err != nil {
			return 0, err
		}
	}
	n, err := c.conn.Write(p)
	return n, translateTimeout(err)
}

func (c *Conn) Flush() error {
	return nil
}

// CloseWrite half-closes TCP and unix sockets. Other connections are closed
// outright.
func (c *Conn) CloseWrite() error {
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.conn.Close()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) NetConn() net.Conn {
	return c.conn
}

func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func translateTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return frame.ErrWouldBlock
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return frame.ErrWouldBlock
	}
	return err
}
