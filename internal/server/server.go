package server

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/libp2p/go-reuseport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/netframe/internal/observability"
	"github.com/danmuck/netframe/internal/protocol/frame"
	"github.com/danmuck/netframe/internal/protocol/session"
)

const (
	transportTCP       = "tcp"
	transportWebSocket = "websocket"
)

// Server accepts framed connections and feeds every frame to a Handler.
type Server struct {
	cfg     Config
	handler Handler
	builder *frame.Builder
	log     zerolog.Logger
	started time.Time

	connsMu  sync.Mutex
	conns    map[io.Closer]struct{}
	closed   bool
	handlers sync.WaitGroup
	workers  errgroup.Group
	stopped  chan struct{}
	stopOnce sync.Once

	addrMu sync.Mutex
	addr   net.Addr

	nextPeer  atomic.Uint64
	active    atomic.Int64
	total     atomic.Uint64
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
	failures  atomic.Uint64
}

func New(cfg Config, h Handler) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if h == nil {
		h = EchoHandler()
	}
	cfg.Session = cfg.Session.WithDefaults()
	observability.RegisterMetrics()
	return &Server{
		cfg:     cfg,
		handler: h,
		builder: frame.NewBuilderFrom(cfg.Framing),
		log:     observability.NewLogger("server").With().Str("node", cfg.Name).Logger(),
		started: time.Now(),
		conns:   make(map[io.Closer]struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Run listens on the framed and admin addresses and blocks until ctx ends
// or either listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	var adminLn net.Listener
	if s.cfg.AdminListenAddr != "" {
		adminLn, err = net.Listen("tcp", s.cfg.AdminListenAddr)
		if err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(ctx, ln)
	})
	if adminLn != nil {
		srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		s.log.Info().Str("addr", adminLn.Addr().String()).Msg("admin listening")
		g.Go(func() error {
			if err := srv.Serve(adminLn); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	err = g.Wait()
	// hijacked WebSocket connections are not covered by Shutdown
	s.handlers.Wait()
	return err
}

// Listen opens the framed listener, with SO_REUSEPORT and TLS when
// configured.
func (s *Server) Listen() (net.Listener, error) {
	tlsCfg, err := s.cfg.Session.TLS.ServerConfig()
	if err != nil {
		return nil, err
	}
	var ln net.Listener
	if s.cfg.ReusePort {
		ln, err = reuseport.Listen("tcp", s.cfg.ListenAddr)
	} else {
		ln, err = net.Listen("tcp", s.cfg.ListenAddr)
	}
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	return ln, nil
}

// Serve runs the accept loop on ln until ctx ends. Open connections are
// closed on the way out and their goroutines are waited for.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.addrMu.Lock()
	s.addr = ln.Addr()
	s.addrMu.Unlock()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("max_frame", humanize.IBytes(uint64(s.cfg.Framing.MaxFrameLength))).
		Int("length_field_offset", s.cfg.Framing.LengthFieldOffset).
		Bool("strip_frame", s.cfg.Framing.StripFrame).
		Bool("tls", s.cfg.Session.TLS.Enabled).
		Msg("listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		if err := s.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close connections")
		}
	}()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = err
			}
			break
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.workers.Go(func() error {
			defer s.untrack(conn)
			defer conn.Close()
			c := session.NewConn(conn, s.cfg.Session.PollInterval)
			hsCtx, cancel := context.WithTimeout(ctx, s.cfg.Session.DialTimeout)
			err := c.Handshake(hsCtx)
			cancel()
			if err != nil {
				s.log.Warn().Str("remote", c.RemoteAddr()).Err(err).Msg("tls handshake failed")
				return nil
			}
			s.serveTransport(ctx, c, c.RemoteAddr(), transportTCP)
			return nil
		})
	}
	_ = ln.Close()
	if err := s.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close connections")
	}
	_ = s.workers.Wait()
	return acceptErr
}

// serveTransport reads frames until the peer finishes, the handler fails
// or ctx ends.
func (s *Server) serveTransport(ctx context.Context, t frame.Transport, remote, kind string) {
	peer := Peer{ID: s.nextPeer.Add(1), RemoteAddr: remote, Transport: kind}
	logger := s.log.With().Uint64("peer", peer.ID).Str("remote", remote).Str("transport", kind).Logger()

	s.total.Add(1)
	s.active.Add(1)
	observability.ConnectionOpened(s.cfg.Name, kind)
	logger.Debug().Int64("active", s.active.Load()).Msg("connected")

	var frames uint64
	defer func() {
		s.active.Add(-1)
		observability.ConnectionClosed(s.cfg.Name, kind)
		logger.Debug().Uint64("frames", frames).Msg("disconnected")
	}()

	pump := session.NewPump(s.builder.NewFramed(t), s.cfg.Session, logger)
	for {
		payload, err := pump.Recv(ctx)
		if err != nil {
			s.finish(ctx, pump, logger, err)
			return
		}
		frames++
		s.framesIn.Add(1)
		s.bytesIn.Add(uint64(len(payload)))
		observability.RecordFrame(s.cfg.Name, observability.DirectionIn, len(payload))

		reply, err := s.handler.HandleFrame(ctx, peer, payload)
		if err != nil {
			logger.Warn().Err(err).Msg("handler failed")
			return
		}
		if reply == nil {
			continue
		}
		if err := pump.Send(ctx, reply); err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Msg("send failed")
			}
			return
		}
		s.framesOut.Add(1)
		s.bytesOut.Add(uint64(len(reply)))
		observability.RecordFrame(s.cfg.Name, observability.DirectionOut, len(reply))
	}
}

func (s *Server) finish(ctx context.Context, pump *session.Pump, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, io.EOF):
		// clean end; finish our half too
		if err := pump.Close(ctx); err != nil && ctx.Err() == nil {
			logger.Debug().Err(err).Msg("close write")
		}
	case ctx.Err() != nil:
	case errors.Is(err, context.DeadlineExceeded):
		logger.Info().Dur("read_timeout", s.cfg.Session.ReadTimeout).Msg("idle timeout")
	default:
		kind := frame.ErrorKind(err)
		s.failures.Add(1)
		observability.RecordDecodeError(s.cfg.Name, kind)
		logger.Warn().Str("kind", kind).Err(err).Msg("connection dropped")
	}
}

// Addr is the framed listener address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addr
}

// Close closes every tracked connection and refuses new ones. The listener
// is owned by Serve.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closed = true
	var result *multierror.Error
	for c := range s.conns {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
		delete(s.conns, c)
	}
	return result.ErrorOrNil()
}

// track registers c for shutdown. It reports false once Close has run;
// every true result must be paired with untrack.
func (s *Server) track(c io.Closer) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(c io.Closer) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
	s.handlers.Done()
}

// serveContext returns a child of parent that ends once the server closes.
func (s *Server) serveContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type Stats struct {
	Name              string `json:"name"`
	Addr              string `json:"addr"`
	Started           string `json:"started"`
	MaxFrameLength    string `json:"max_frame_length"`
	ActiveConnections int64  `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
	FramesIn          uint64 `json:"frames_in"`
	FramesOut         uint64 `json:"frames_out"`
	BytesIn           string `json:"bytes_in"`
	BytesOut          string `json:"bytes_out"`
	DroppedOnError    uint64 `json:"dropped_on_error"`
}

func (s *Server) Stats() Stats {
	addr := ""
	if a := s.Addr(); a != nil {
		addr = a.String()
	}
	return Stats{
		Name:              s.cfg.Name,
		Addr:              addr,
		Started:           humanize.Time(s.started),
		MaxFrameLength:    humanize.IBytes(uint64(s.cfg.Framing.MaxFrameLength)),
		ActiveConnections: s.active.Load(),
		TotalConnections:  s.total.Load(),
		FramesIn:          s.framesIn.Load(),
		FramesOut:         s.framesOut.Load(),
		BytesIn:           humanize.IBytes(s.bytesIn.Load()),
		BytesOut:          humanize.IBytes(s.bytesOut.Load()),
		DroppedOnError:    s.failures.Load(),
	}
}
