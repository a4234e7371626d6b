package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/netframe/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 2, MaxDelay: 40 * time.Millisecond, Jitter: true}
	rng := rand.New(rand.NewSource(3))
	for attempt := 1; attempt <= 8; attempt++ {
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < 5*time.Millisecond || got > 60*time.Millisecond {
			t.Fatalf("attempt %d: delay %v outside jitter range", attempt, got)
		}
	}
	if got := NextBackoffDelay(BackoffConfig{}, 4, rng); got != 0 {
		t.Fatalf("zero config got=%v", got)
	}
}

func TestRetrierStopsOnContext(t *testing.T) {
	testlog.Start(t)
	r := newRetrier(BackoffConfig{InitialDelay: time.Hour, Multiplier: 1}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r.attempt != 1 {
		t.Fatalf("attempt=%d", r.attempt)
	}
	r.reset()
	if r.attempt != 0 {
		t.Fatalf("reset left attempt=%d", r.attempt)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{PollInterval: 0, ReadTimeout: 0}.WithDefaults()
	def := DefaultConfig()
	if cfg.WriteTimeout != def.WriteTimeout || cfg.DialTimeout != def.DialTimeout || cfg.Backoff.InitialDelay != def.Backoff.InitialDelay {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PollInterval != 0 || cfg.ReadTimeout != 0 {
		t.Fatalf("zero-meaning fields overwritten: %+v", cfg)
	}
}
