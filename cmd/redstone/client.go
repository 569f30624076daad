// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/hammsvietro/redstone/rsconfig"
)

// ackTimeout and confirmationTimeout mirror the daemon's own idle
// budgets (rsdaemon.session): the client must answer a progress ping
// well inside the daemon's 5-second read window, and may take up to
// the daemon's 2-minute window to relay a human's confirmation.
const (
	ackTimeout          = 5 * time.Second
	confirmationTimeout = 2 * time.Minute
	dialTimeout         = 5 * time.Second
)

// confirmFunc renders a confirmation prompt to the user and returns
// whether they accepted it; swapped out in tests.
type confirmFunc func(message string) bool

// runOperation dials the daemon, sends req, then drives the S0-S4
// dialogue defined in §4.4 to completion: relaying every
// FileActionProgress as an ACK, answering the one ConfirmationRequest
// via confirm, and returning the terminal Response's error, if any.
func runOperation(ctx context.Context, req ipcwire.Message, confirm confirmFunc) error {
	cfg, err := rsconfig.Load()
	if err != nil {
		return err
	}

	nc, err := net.DialTimeout("unix", cfg.SocketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("connecting to redstone daemon at %s: %w (is redstoned running?)", cfg.SocketPath, err)
	}
	defer nc.Close()
	conn := ipcwire.NewConn(nc)

	if err := conn.Write(ctx, req, ackTimeout); err != nil {
		return err
	}

	for {
		msg, err := conn.Read(ctx, confirmationTimeout)
		if err != nil {
			return err
		}
		switch msg.Kind {
		case ipcwire.KindFileActionProgress:
			printProgress(*msg.Progress)
			if err := conn.Write(ctx, ipcwire.Response("", true, nil), ackTimeout); err != nil {
				return err
			}
		case ipcwire.KindConfirmationRequest:
			accepted := confirm(msg.ConfirmationMessage)
			if err := conn.Write(ctx, ipcwire.ConfirmationReply(accepted), ackTimeout); err != nil {
				return err
			}
		case ipcwire.KindResponse:
			if msg.Error != nil {
				return msg.Error
			}
			if msg.ResponseMessage != "" {
				fmt.Println(msg.ResponseMessage)
			}
			return nil
		default:
			return fmt.Errorf("unexpected message from daemon: %s", msg.Kind)
		}
	}
}

// printProgress renders one FileActionProgress update as a single
// overwritten line; the human-facing progress widget proper (a bar,
// spinner, etc.) is the spec's own external collaborator — this is
// the minimal renderer that always ships with the core.
func printProgress(p fsscan.Progress) {
	fmt.Printf("\r%s %d/%d: %-60s", progressVerb(p.Operation), p.Completed, p.Total, p.CurrentFileName)
	if p.Total > 0 && p.Completed >= p.Total {
		fmt.Println()
	}
}

func progressVerb(op fsscan.Operation) string {
	switch op {
	case fsscan.OpHash:
		return "hashing"
	case fsscan.OpUpload:
		return "uploading"
	case fsscan.OpDownload:
		return "downloading"
	default:
		return "working"
	}
}

// stdinConfirm prompts on stdin/stdout for a yes/no answer, the
// default confirmFunc every real command uses.
func stdinConfirm(message string) bool {
	fmt.Println(message)
	fmt.Print("[y/N]: ")
	var answer string
	_, _ = fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}
