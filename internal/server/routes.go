package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/netframe/internal/auth"
	"github.com/danmuck/netframe/internal/observability"
	"github.com/danmuck/netframe/internal/protocol/session"
)

// Handler returns the admin router: health, stats, metrics and the
// WebSocket entry point for framed traffic.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	if len(s.cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": s.cfg.Name,
			"uptime":  time.Since(s.started).Round(time.Second).String(),
		})
	})

	var v auth.Validator
	if s.cfg.AdminToken != "" {
		v = auth.StaticToken{Token: s.cfg.AdminToken}
	}
	guarded := r.Group("/", auth.Middleware(v))
	guarded.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Stats())
	})
	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))
	guarded.GET("/ws", s.serveWebSocket)
	return r
}

func (s *Server) upgrader() websocket.Upgrader {
	u := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	if len(s.cfg.CorsOrigins) > 0 {
		allowed := make(map[string]struct{}, len(s.cfg.CorsOrigins))
		for _, o := range s.cfg.CorsOrigins {
			allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
		}
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
	return u
}

func (s *Server) serveWebSocket(c *gin.Context) {
	u := s.upgrader()
	ws, err := u.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	t := session.NewWebSocket(ws, s.cfg.Session.WriteTimeout)
	if !s.track(t) {
		_ = t.Close()
		return
	}
	defer s.untrack(t)
	defer t.Close()
	ctx, cancel := s.serveContext(c.Request.Context())
	defer cancel()
	s.serveTransport(ctx, t, t.RemoteAddr(), transportWebSocket)
}
