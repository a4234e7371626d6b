package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/netframe/internal/config"
	"github.com/danmuck/netframe/internal/logging"
	"github.com/danmuck/netframe/internal/observability"
	"github.com/danmuck/netframe/internal/protocol/frame"
	"github.com/danmuck/netframe/internal/protocol/session"
	"github.com/danmuck/netframe/internal/server"
)

type sendOptions struct {
	addr     string
	wsURL    string
	token    string
	json     string
	reply    bool
	maxFrame string
	timeout  time.Duration
}

func sendCmd() *cobra.Command {
	opts := sendOptions{}
	cmd := &cobra.Command{
		Use:   "send [payload...]",
		Short: "Send frames to a server",
		Long: `Send each argument as one frame, or a single JSON document with --json.
With --reply, wait for one reply frame per frame sent and print it.

Examples:
  netframe send hello world
  netframe send --json '{"hello":"world"}'
  netframe send --ws ws://127.0.0.1:17654/ws --reply ping`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			return runSend(contextOrBackground(cmd.Context()), cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1"+server.DefaultListenAddr, "server address")
	cmd.Flags().StringVar(&opts.wsURL, "ws", "", "WebSocket URL; overrides --addr")
	cmd.Flags().StringVar(&opts.token, "token", "", "admin bearer token for --ws")
	cmd.Flags().StringVar(&opts.json, "json", "", "JSON document to send as one frame")
	cmd.Flags().BoolVar(&opts.reply, "reply", false, "wait for and print one reply per frame")
	cmd.Flags().StringVar(&opts.maxFrame, "max-frame", "32MiB", "largest frame accepted or sent")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall deadline")
	return cmd
}

func runSend(ctx context.Context, out io.Writer, opts sendOptions, args []string) error {
	payloads, err := sendPayloads(opts, args)
	if err != nil {
		return err
	}
	maxFrame, err := config.ParseSize(opts.maxFrame)
	if err != nil {
		return err
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	cfg := session.DefaultConfig()
	cfg.AuthToken = opts.token
	var t frame.Transport
	if opts.wsURL != "" {
		ws, err := session.DialWebSocket(ctx, opts.wsURL, cfg)
		if err != nil {
			return fmt.Errorf("dial %s: %w", opts.wsURL, err)
		}
		defer ws.Close()
		t = ws
	} else {
		conn, err := session.Dial(ctx, "tcp", opts.addr, cfg)
		if err != nil {
			return fmt.Errorf("dial %s: %w", opts.addr, err)
		}
		defer conn.Close()
		t = conn
	}

	logger := observability.NewLogger("send")
	p := session.NewPump(frame.NewBuilder().MaxFrameLength(maxFrame).NewFramed(t), cfg, logger)
	for _, payload := range payloads {
		if err := p.Send(ctx, payload); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		logger.Debug().Int("bytes", len(payload)).Msg("sent")
		if !opts.reply {
			continue
		}
		reply, err := p.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("server closed before replying")
			}
			return fmt.Errorf("recv: %w", err)
		}
		fmt.Fprintln(out, string(reply))
	}
	if err := p.Close(ctx); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	// drain until the server finishes its half so unread replies do not
	// turn our close into a reset
	discarded := 0
	for {
		if _, err := p.Recv(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug().Int("discarded", discarded).Msg("server closed")
				return nil
			}
			return fmt.Errorf("drain: %w", err)
		}
		discarded++
	}
}

func sendPayloads(opts sendOptions, args []string) ([][]byte, error) {
	if strings.TrimSpace(opts.json) != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--json and payload arguments are exclusive")
		}
		var doc any
		if err := session.DecodeJSON([]byte(opts.json), &doc); err != nil {
			return nil, err
		}
		payload, err := session.EncodeJSON(doc)
		if err != nil {
			return nil, err
		}
		return [][]byte{payload}, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("nothing to send: pass payload arguments or --json")
	}
	out := make([][]byte, 0, len(args))
	for _, a := range args {
		out = append(out, []byte(a))
	}
	return out, nil
}
