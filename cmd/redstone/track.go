// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"

	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/spf13/cobra"
)

func newTrackCmd() *cobra.Command {
	var syncEvery string
	var watch bool

	cmd := &cobra.Command{
		Use:   "track <name> [path]",
		Short: "Declare a new backup from a local directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := "."
			if len(args) == 2 {
				path = args[1]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if _, err := os.Stat(abs); err != nil {
				return err
			}
			req := ipcwire.TrackRequestWithConfig(name, abs, syncEvery, watch)
			return runOperation(cmd.Context(), req, stdinConfirm)
		},
	}
	cmd.Flags().StringVar(&syncEvery, "sync-every", "", "cron expression for automatic re-sync")
	cmd.Flags().BoolVar(&watch, "watch", false, "automatically push on every local change")
	return cmd
}
