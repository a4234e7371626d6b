package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/netframe/internal/protocol/frame"
)

// Pump drives a frame.Framed to completion, waiting with backoff whenever
// the transport reports frame.ErrWouldBlock. Recv and Send may run on
// separate goroutines; two concurrent Recv or two concurrent Send calls may
// not.
type Pump struct {
	f   *frame.Framed
	cfg Config
	log zerolog.Logger

	rx *retrier
	tx *retrier
}

func NewPump(f *frame.Framed, cfg Config, logger zerolog.Logger) *Pump {
	cfg = cfg.WithDefaults()
	seed := time.Now().UnixNano()
	return &Pump{
		f:   f,
		cfg: cfg,
		log: logger,
		rx:  newRetrier(cfg.Backoff, seed),
		tx:  newRetrier(cfg.Backoff, seed+1),
	}
}

func (p *Pump) Framed() *frame.Framed {
	return p.f
}

// Recv returns the next frame. io.EOF reports that the peer finished
// cleanly between frames.
func (p *Pump) Recv(ctx context.Context) ([]byte, error) {
	if p.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ReadTimeout)
		defer cancel()
	}
	p.rx.reset()
	for {
		payload, err := p.f.ReadFrame()
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, frame.ErrWouldBlock) {
			return nil, err
		}
		if err := p.rx.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Send queues payload and flushes it onto the transport.
func (p *Pump) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()
	p.tx.reset()
	if err := p.retry(ctx, func() error { return p.f.WriteFrame(payload) }); err != nil {
		return err
	}
	return p.retry(ctx, p.f.Flush)
}

// Close flushes any pending frame and shuts down the write half.
func (p *Pump) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()
	p.tx.reset()
	return p.retry(ctx, p.f.Close)
}

func (p *Pump) retry(ctx context.Context, op func() error) error {
	for {
		err := op()
		if !errors.Is(err, frame.ErrWouldBlock) {
			return err
		}
		if p.tx.attempt > 0 && p.tx.attempt%100 == 0 {
			p.log.Debug().Int("attempts", p.tx.attempt).Bool("pending", p.f.Pending()).Msg("write still blocked")
		}
		if err := p.tx.wait(ctx); err != nil {
			return err
		}
	}
}
