// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"

	"github.com/hammsvietro/redstone/rsconfig"
	"github.com/spf13/cobra"
)

func newServerConfigCmd() *cobra.Command {
	var https bool
	cmd := &cobra.Command{
		Use:   "server-config <host> <port>",
		Short: "Set the remote server's host and port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[1], err)
			}
			cfg := rsconfig.ServerConfig{Host: args[0], Port: port, HTTPS: https}
			if err := rsconfig.SaveServerConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("server configuration saved: %s\n", cfg.BaseURL())
			return nil
		},
	}
	cmd.Flags().BoolVar(&https, "https", false, "use HTTPS for the control plane")
	return cmd
}
