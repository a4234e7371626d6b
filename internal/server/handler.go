package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/netframe/internal/protocol/session"
)

// Peer identifies the connection a frame arrived on.
type Peer struct {
	ID         uint64
	RemoteAddr string
	Transport  string
}

// Handler receives every decoded frame. A non-nil reply is written back to
// the same peer as one frame; an error drops the connection.
type Handler interface {
	HandleFrame(ctx context.Context, peer Peer, payload []byte) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, peer Peer, payload []byte) ([]byte, error)

func (f HandlerFunc) HandleFrame(ctx context.Context, peer Peer, payload []byte) ([]byte, error) {
	return f(ctx, peer, payload)
}

// EchoHandler replies with the payload it was given.
func EchoHandler() Handler {
	return HandlerFunc(func(_ context.Context, _ Peer, payload []byte) ([]byte, error) {
		return payload, nil
	})
}

// LogHandler logs every frame and never replies. JSON payloads are decoded
// and logged as structured fields; anything else is logged as text.
func LogHandler(logger zerolog.Logger) Handler {
	return HandlerFunc(func(_ context.Context, peer Peer, payload []byte) ([]byte, error) {
		var msg any
		if err := session.DecodeJSON(payload, &msg); err != nil {
			logger.Info().
				Uint64("peer", peer.ID).
				Str("remote", peer.RemoteAddr).
				Str("payload", string(payload)).
				Msg("frame")
			return nil, nil
		}
		logger.Info().
			Uint64("peer", peer.ID).
			Str("remote", peer.RemoteAddr).
			Interface("message", msg).
			Msg("json frame")
		return nil, nil
	})
}

// HandlerByName resolves the handler names accepted in service configs.
func HandlerByName(name string, logger zerolog.Logger) (Handler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "echo":
		return EchoHandler(), nil
	case "log":
		return LogHandler(logger), nil
	default:
		return nil, fmt.Errorf("unknown handler: %s", name)
	}
}
