package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "netframe: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "netframe",
		Short: "Netstring framed messaging over TCP and WebSocket",
		Long: `netframe moves length-prefixed netstring frames ("<len>:<payload>,")
over TCP, TLS and WebSocket connections.

  serve    run a framing server (echo or log handler)
  send     send frames to a server and print replies
  config   write or validate service and framing config files`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		sendCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}
