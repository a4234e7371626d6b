package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/netframe/internal/protocol/frame"
	"github.com/danmuck/netframe/internal/protocol/session"
	"github.com/danmuck/netframe/internal/testutil/testlog"
	"github.com/danmuck/netframe/internal/testutil/tlstest"
)

func testConfig(name string) Config {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Session.PollInterval = 5 * time.Millisecond
	cfg.Session.WriteTimeout = 2 * time.Second
	return cfg
}

// startServer runs Serve in the background and stops it when the test ends.
func startServer(t *testing.T, cfg Config, h Handler) *Server {
	t.Helper()
	s, err := New(cfg, h)
	require.NoError(t, err)
	ln, err := s.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	return s
}

func dialPump(t *testing.T, s *Server, cfg session.Config) *session.Pump {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := session.Dial(ctx, "tcp", s.Addr().String(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return session.NewPump(frame.NewFramed(conn), cfg, zerolog.Nop())
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Name = " "
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ListenAddr = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Framing.MaxFrameLength = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CorsOrigins = []string{"localhost:3000"}
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Session.TLS = session.TLSConfig{Enabled: true}
	require.ErrorIs(t, cfg.Validate(), session.ErrTLSCertFileRequired)
}

func TestHandlerByName(t *testing.T) {
	testlog.Start(t)
	for _, name := range []string{"", "echo", "LOG"} {
		h, err := HandlerByName(name, zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, h)
	}
	_, err := HandlerByName("shout", zerolog.Nop())
	require.Error(t, err)

	reply, err := LogHandler(zerolog.Nop()).HandleFrame(context.Background(), Peer{}, []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Nil(t, reply)
}

func TestServerEchoOverTCP(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("echo-tcp")
	s := startServer(t, cfg, EchoHandler())
	p := dialPump(t, s, cfg.Session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, msg := range []string{"hello", "", "11:nested,"} {
		require.NoError(t, p.Send(ctx, []byte(msg)))
		got, err := p.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, msg, string(got))
	}
	require.NoError(t, p.Close(ctx))
	_, err := p.Recv(ctx)
	require.ErrorIs(t, err, io.EOF)

	st := s.Stats()
	require.Equal(t, uint64(3), st.FramesIn)
	require.Equal(t, uint64(3), st.FramesOut)
	require.Equal(t, uint64(1), st.TotalConnections)
	require.Equal(t, "32 MiB", st.MaxFrameLength)
	require.Eventually(t, func() bool { return s.Stats().ActiveConnections == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServerHandlerSeesPeerAndPayload(t *testing.T) {
	testlog.Start(t)
	type seen struct {
		peer    Peer
		payload string
	}
	got := make(chan seen, 4)
	h := HandlerFunc(func(_ context.Context, peer Peer, payload []byte) ([]byte, error) {
		got <- seen{peer: peer, payload: string(payload)}
		return nil, nil
	})
	cfg := testConfig("capture")
	s := startServer(t, cfg, h)
	p := dialPump(t, s, cfg.Session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.SendJSON(ctx, map[string]any{"hello": "world"}))

	select {
	case v := <-got:
		require.JSONEq(t, `{"hello":"world"}`, v.payload)
		require.Equal(t, "tcp", v.peer.Transport)
		require.NotZero(t, v.peer.ID)
		require.NotEmpty(t, v.peer.RemoteAddr)
	case <-ctx.Done():
		t.Fatalf("handler never saw the frame")
	}
}

func TestServerDropsMalformedStream(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("malformed")
	cfg.Framing.MaxFrameLength = 1024
	s := startServer(t, cfg, EchoHandler())

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("ab:xy,"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 16))
	require.Error(t, err, "server should drop the connection")
	require.Eventually(t, func() bool { return s.Stats().DroppedOnError == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestServerRejectsOversizedFrameBeforePayload(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("oversized")
	cfg.Framing.MaxFrameLength = 16
	s := startServer(t, cfg, EchoHandler())

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	// only the head; the payload never arrives
	_, err = conn.Write([]byte("17:"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 16))
	require.Error(t, err)
	require.Eventually(t, func() bool { return s.Stats().DroppedOnError == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestServeClosesConnectionsOnShutdown(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("shutdown")
	s, err := New(cfg, EchoHandler())
	require.NoError(t, err)
	ln, err := s.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Stats().ActiveConnections == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestServerReusePort(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("reuseport")
	cfg.ReusePort = true
	s := startServer(t, cfg, EchoHandler())
	p := dialPump(t, s, cfg.Session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Send(ctx, []byte("shared")))
	got, err := p.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, "shared", string(got))
}

func TestServerTLS(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t, "netframe-ca")
	srvFiles := ca.Server(t, "netframe")
	cliFiles := ca.Client(t, "netframe-cli")

	cfg := testConfig("tls")
	cfg.Session.TLS = session.TLSConfig{
		Enabled: true, Mutual: true,
		CertFile: srvFiles.Cert, KeyFile: srvFiles.Key, CAFile: ca.CAFile(),
	}
	s := startServer(t, cfg, EchoHandler())

	clientCfg := cfg.Session
	clientCfg.TLS = session.TLSConfig{
		Enabled: true, Mutual: true,
		CertFile: cliFiles.Cert, KeyFile: cliFiles.Key, CAFile: ca.CAFile(),
		ServerName: "localhost",
	}
	p := dialPump(t, s, clientCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Send(ctx, []byte("over tls")))
	got, err := p.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, "over tls", string(got))
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("run")
	cfg.AdminListenAddr = "127.0.0.1:0"
	s, err := New(cfg, EchoHandler())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	p := dialPump(t, s, cfg.Session)
	sendCtx, sendCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sendCancel()
	require.NoError(t, p.Send(sendCtx, []byte("ping")))
	got, err := p.Recv(sendCtx)
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
