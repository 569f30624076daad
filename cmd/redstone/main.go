// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// redstone is the human-facing CLI: a thin client that talks directly
// to the remote server's HTTP control plane only for auth, reads or
// writes local files for server-config and status, and dials the
// long-running daemon (cmd/redstoned) over the IPC socket for every
// backup-mutating operation (track, clone, push, pull), driving the
// S0-S4 dialogue to completion on the user's behalf.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	// No signal handling here by design: a SIGINT on the client must
	// not be propagated to the daemon (§5) — the in-flight operation
	// runs to completion or until its own idle timeout elapses, so
	// Execute uses the default background context rather than one tied
	// to os/signal.
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "redstone",
		Short:         "Self-hosted, content-addressed file backup",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAuthCmd(),
		newTrackCmd(),
		newCloneCmd(),
		newPushCmd(),
		newPullCmd(),
		newStatusCmd(),
		newServerConfigCmd(),
	)
	return root
}
