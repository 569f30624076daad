// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/hammsvietro/redstone/rsindex"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tracked backup's identity and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			idx, err := rsindex.Load(rsindex.PathFor(root))
			if err != nil {
				return err
			}
			fmt.Printf("backup:  %s (%s)\n", idx.Identity.Name, idx.Identity.ID)
			fmt.Printf("root:    %s\n", root)
			fmt.Printf("current: %s\n", idx.CurrentUpdate.ID)
			fmt.Printf("latest known: %s\n", idx.LatestUpdate.ID)
			if idx.CurrentUpdate.Hash != idx.LatestUpdate.Hash {
				fmt.Println("status:  behind the server's latest known update, pull to catch up")
			} else {
				fmt.Println("status:  up to date as of the last push/pull")
			}
			if idx.Config.SyncEvery != "" {
				fmt.Printf("sync:    every %q\n", idx.Config.SyncEvery)
			}
			if idx.Config.Watch {
				fmt.Println("watch:   enabled")
			}
			return nil
		},
	}
}
