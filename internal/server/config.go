package server

import (
	"fmt"
	"strings"

	"github.com/danmuck/netframe/internal/config"
	"github.com/danmuck/netframe/internal/protocol/frame"
	"github.com/danmuck/netframe/internal/protocol/session"
)

const DefaultListenAddr = ":17653"

// Config is everything one netframe server needs.
type Config struct {
	Name            string
	ListenAddr      string
	AdminListenAddr string
	ReusePort       bool
	CorsOrigins     []string
	// AdminToken, when set, is required as a bearer token on every admin
	// route except /health.
	AdminToken string
	Framing    frame.Config
	Session    session.Config
}

func DefaultConfig() Config {
	return Config{
		Name:            "netframe",
		ListenAddr:      DefaultListenAddr,
		AdminListenAddr: "",
		Framing:         frame.DefaultConfig(),
		Session:         session.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if err := config.ValidateFramingConfig(c.Framing); err != nil {
		return err
	}
	if err := c.Session.TLS.ValidateServer(); err != nil {
		return err
	}
	for i, origin := range c.CorsOrigins {
		o := strings.TrimSpace(origin)
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("cors_origins[%d] %q must start with http:// or https://", i, origin)
		}
	}
	return nil
}
