package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay)
	if attempt > 1 {
		mult := math.Max(cfg.Multiplier, 1.0)
		delay *= math.Pow(mult, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// retrier counts consecutive would-block results for one direction of a
// connection and sleeps between them.
type retrier struct {
	cfg     BackoffConfig
	rng     *rand.Rand
	attempt int
}

func newRetrier(cfg BackoffConfig, seed int64) *retrier {
	return &retrier{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func (r *retrier) reset() {
	r.attempt = 0
}

// wait sleeps for the next backoff delay or until ctx ends.
func (r *retrier) wait(ctx context.Context) error {
	r.attempt++
	delay := NextBackoffDelay(r.cfg, r.attempt, r.rng)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
