package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/netframe/internal/protocol/frame"
)

var ErrInvalidFraming = errors.New("config: invalid framing profile")

// FramingProfile is the TOML shape of a frame.Config. Sizes are written the
// way people read them ("32MiB", "64 KB", "1048576").
type FramingProfile struct {
	MaxFrameLength    string `toml:"max_frame_length"`
	LengthFieldOffset int    `toml:"length_field_offset"`
	StripFrame        *bool  `toml:"strip_frame,omitempty"`
}

// LoadFramingProfile reads a framing profile file. Unset keys keep
// frame.DefaultConfig values.
func LoadFramingProfile(path string) (frame.Config, error) {
	var p FramingProfile
	if err := loadToml(path, &p); err != nil {
		return frame.Config{}, err
	}
	cfg, err := p.FrameConfig()
	if err != nil {
		return frame.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseFramingProfile(data []byte) (frame.Config, error) {
	var p FramingProfile
	if err := toml.Unmarshal(data, &p); err != nil {
		return frame.Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	return p.FrameConfig()
}

// FrameConfig overlays the profile onto frame.DefaultConfig and validates
// the result.
func (p FramingProfile) FrameConfig() (frame.Config, error) {
	cfg := frame.DefaultConfig()
	if strings.TrimSpace(p.MaxFrameLength) != "" {
		n, err := ParseSize(p.MaxFrameLength)
		if err != nil {
			return frame.Config{}, err
		}
		cfg.MaxFrameLength = n
	}
	cfg.LengthFieldOffset = p.LengthFieldOffset
	if p.StripFrame != nil {
		cfg.StripFrame = *p.StripFrame
	}
	if err := ValidateFramingConfig(cfg); err != nil {
		return frame.Config{}, err
	}
	return cfg, nil
}

// ParseSize accepts plain byte counts and humanized sizes.
func ParseSize(raw string) (int, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: max_frame_length %q: %v", ErrInvalidFraming, raw, err)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: max_frame_length %s exceeds %s", ErrInvalidFraming,
			humanize.IBytes(n), humanize.IBytes(math.MaxInt32))
	}
	return int(n), nil
}

func ValidateFramingConfig(cfg frame.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFraming, err)
	}
	if cfg.MaxFrameLength == 0 {
		return fmt.Errorf("%w: max_frame_length must be positive", ErrInvalidFraming)
	}
	return nil
}

// MarshalFramingProfile renders cfg as a framing profile document.
func MarshalFramingProfile(cfg frame.Config) ([]byte, error) {
	if err := ValidateFramingConfig(cfg); err != nil {
		return nil, err
	}
	strip := cfg.StripFrame
	return toml.Marshal(FramingProfile{
		MaxFrameLength:    humanize.IBytes(uint64(cfg.MaxFrameLength)),
		LengthFieldOffset: cfg.LengthFieldOffset,
		StripFrame:        &strip,
	})
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
