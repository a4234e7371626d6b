package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/netframe/internal/config"
	"github.com/danmuck/netframe/internal/server"
)

// netframe service file key mapping to server settings.
type fileConfig struct {
	Name              string        `toml:"name"`
	Addr              string        `toml:"addr"`
	AdminAddr         string        `toml:"admin_addr"`
	AdminToken        string        `toml:"admin_token"`
	ReusePort         bool          `toml:"reuse_port"`
	CorsOrigins       []string      `toml:"cors_origins"`
	Handler           string        `toml:"handler"`
	FramingProfile    string        `toml:"framing_profile"`
	MaxFrameLength    string        `toml:"max_frame_length"`
	LengthFieldOffset int           `toml:"length_field_offset"`
	StripFrame        bool          `toml:"strip_frame"`
	ReadTimeout       string        `toml:"read_timeout"`
	WriteTimeout      string        `toml:"write_timeout"`
	PollInterval      string        `toml:"poll_interval"`
	TLS               tlsFileConfig `toml:"tls"`
}

type tlsFileConfig struct {
	Enabled  bool   `toml:"enabled"`
	Mutual   bool   `toml:"mutual"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
	CAFile   string `toml:"ca_file"`
}

type serviceConfig struct {
	Server  server.Config
	Handler string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{Server: server.DefaultConfig(), Handler: "echo"}
}

// loadServiceConfig overlays the keys present in path onto the defaults.
// A framing profile is applied first so inline framing keys win over it.
func loadServiceConfig(path string) (serviceConfig, error) {
	out := defaultServiceConfig()
	cfg := &out.Server

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load service config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return serviceConfig{}, fmt.Errorf("load service config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("reuse_port") {
		cfg.ReusePort = raw.ReusePort
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("handler") {
		out.Handler = strings.TrimSpace(raw.Handler)
	}

	if p := strings.TrimSpace(raw.FramingProfile); p != "" {
		framing, err := config.LoadFramingProfile(resolvePath(path, p))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("load service config: framing_profile: %w", err)
		}
		cfg.Framing = framing
	}
	if meta.IsDefined("max_frame_length") {
		n, err := config.ParseSize(raw.MaxFrameLength)
		if err != nil {
			return serviceConfig{}, fmt.Errorf("load service config: %w", err)
		}
		cfg.Framing.MaxFrameLength = n
	}
	if meta.IsDefined("length_field_offset") {
		cfg.Framing.LengthFieldOffset = raw.LengthFieldOffset
	}
	if meta.IsDefined("strip_frame") {
		cfg.Framing.StripFrame = raw.StripFrame
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.Session.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
		{"poll_interval", raw.PollInterval, &cfg.Session.PollInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil || v < 0 {
			return serviceConfig{}, fmt.Errorf("load service config: %s %q is not a duration", d.key, d.raw)
		}
		*d.dst = v
	}

	if meta.IsDefined("tls", "enabled") {
		cfg.Session.TLS.Enabled = raw.TLS.Enabled
	}
	if meta.IsDefined("tls", "mutual") {
		cfg.Session.TLS.Mutual = raw.TLS.Mutual
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.Session.TLS.CertFile = resolvePath(path, raw.TLS.CertFile)
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.Session.TLS.KeyFile = resolvePath(path, raw.TLS.KeyFile)
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.Session.TLS.CAFile = resolvePath(path, raw.TLS.CAFile)
	}

	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return serviceConfig{}, fmt.Errorf("load service config: %w", err)
	}
	return out, nil
}

// resolvePath makes p relative to the directory holding configPath.
func resolvePath(configPath, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
