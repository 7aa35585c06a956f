package main

import (
	"context"

	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/deviceclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type deviceOptions struct {
	server  string
	state   string
	os      string
	id      string
	verbose bool
}

func newDeviceCmd() *cobra.Command {
	opts := &deviceOptions{}
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Register a device against a running server, the way the app does",
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:4000", "server base URL")
	cmd.PersistentFlags().StringVar(&opts.state, "state", "data/device.json", "local device snapshot file")
	cmd.PersistentFlags().StringVar(&opts.os, "os", "cli", "platform name used in the device hash")
	cmd.PersistentFlags().StringVar(&opts.id, "id", "", "platform identifier; random when empty")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log bootstrap steps to stderr")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Load the stored identity or register a new one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := opts.bootstrapper(cmd).Init(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), data)
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Re-register the stored hash and refresh the snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := opts.bootstrapper(cmd).Sync(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), data)
			},
		},
	)
	return cmd
}

func (o *deviceOptions) bootstrapper(cmd *cobra.Command) *deviceclient.Bootstrapper {
	cfg := deviceclient.Config{
		BaseURL: o.server,
		OS:      o.os,
		Storage: deviceclient.FileStorage{Path: o.state},
	}
	if o.id != "" {
		id := o.id
		cfg.PlatformID = func(ctx context.Context) (string, error) { return id, nil }
	}
	if o.verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
		cfg.Logger = &logger
	}
	return deviceclient.New(cfg)
}
