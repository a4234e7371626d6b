package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danmuck/netframe/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate config files",
	}
	cmd.AddCommand(configInitCmd(), configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a config template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", config.KindService, "config kind: service|framing")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			switch kind {
			case config.KindService:
				svc, err := loadServiceConfig(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "valid service config %s: name=%s addr=%s handler=%s max_frame=%s\n",
					path, svc.Server.Name, svc.Server.ListenAddr, svc.Handler,
					humanize.IBytes(uint64(svc.Server.Framing.MaxFrameLength)))
			case config.KindFraming:
				cfg, err := config.LoadFramingProfile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "valid framing profile %s: max_frame=%s offset=%d strip=%t\n",
					path, humanize.IBytes(uint64(cfg.MaxFrameLength)), cfg.LengthFieldOffset, cfg.StripFrame)
			default:
				return fmt.Errorf("unknown config kind: %s", kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", config.KindService, "config kind: service|framing")
	return cmd
}
