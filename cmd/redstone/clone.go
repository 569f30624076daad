// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"

	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/spf13/cobra"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <name> [path]",
		Short: "Materialise a remote backup into a local directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := name
			if len(args) == 2 {
				path = args[1]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			req := ipcwire.CloneRequest(name, abs)
			return runOperation(cmd.Context(), req, stdinConfirm)
		},
	}
}
