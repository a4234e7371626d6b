package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmuck/netframe/internal/logging"
	"github.com/danmuck/netframe/internal/observability"
	"github.com/danmuck/netframe/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		adminAddr  string
		handler    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a framing server",
		Long: `Run a framing server. Without --config the built-in defaults are used.
Flags override values from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.ConfigureRuntime()

			svc := defaultServiceConfig()
			if configPath != "" {
				loaded, err := loadServiceConfig(configPath)
				if err != nil {
					return err
				}
				svc = loaded
			}
			if cmd.Flags().Changed("addr") {
				svc.Server.ListenAddr = strings.TrimSpace(addr)
			}
			if cmd.Flags().Changed("admin") {
				svc.Server.AdminListenAddr = strings.TrimSpace(adminAddr)
			}
			if cmd.Flags().Changed("handler") {
				svc.Handler = handler
			}

			h, err := server.HandlerByName(svc.Handler, observability.NewLogger("handler"))
			if err != nil {
				return err
			}
			srv, err := server.New(svc.Server, h)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "service config file (TOML)")
	cmd.Flags().StringVar(&addr, "addr", server.DefaultListenAddr, "framed listen address")
	cmd.Flags().StringVar(&adminAddr, "admin", "", "admin HTTP listen address (empty disables)")
	cmd.Flags().StringVar(&handler, "handler", "echo", "frame handler: echo|log")
	return cmd
}

// contextOrBackground keeps tests that call RunE directly working.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
