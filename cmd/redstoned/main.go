// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// redstoned is the long-running daemon process: it owns the IPC
// socket, every BackupIndex it touches, and the HTTP/stream-socket
// halves of the Transfer Engine. The CLI (cmd/redstone) is a thin
// client that dials this process for every operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/hammsvietro/redstone/rsconfig"
	"github.com/hammsvietro/redstone/rsdaemon"
	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsschedule"
	"github.com/hammsvietro/redstone/rstransfer"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := rsconfig.Load()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(log)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// A stale socket file from a previous, uncleanly-terminated run must
	// be removed before Listen; an existing regular file at the same
	// path would otherwise make bind fail.
	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.SocketPath, err)
	}
	defer ln.Close()

	srv := rsdaemon.NewServer(log, newControlClient, newStreamDialer())
	srv.SetDataDir(cfg.DataDir)
	sched := rsschedule.New(log, srv, cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("redstoned starting", "socket", cfg.SocketPath, "data_dir", cfg.DataDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error { return srv.Serve(gctx, ln) })
	return g.Wait()
}

// newControlClient builds the HTTP control-plane client for one
// operation from whatever ServerConfig and AuthState are currently
// persisted on disk, so a login performed while the daemon is already
// running takes effect on the very next request without a restart.
func newControlClient(ctx context.Context) (rsdaemon.ControlClient, error) {
	serverCfg, err := rsconfig.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	auth, err := rsconfig.LoadAuth()
	if err != nil {
		return nil, err
	}
	if auth.IsEmpty() {
		return nil, rserr.New(rserr.KindNotAuthenticated)
	}
	sender := rstransfer.NewCookieSender(auth.SessionToken)
	return rstransfer.NewClient(serverCfg.BaseURL(), sender), nil
}

// newStreamDialer builds the stream-socket dialer used for the data
// plane of every upload/download, resolving the transfer server's
// address from the persisted ServerConfig at dial time rather than
// once at startup.
func newStreamDialer() rsdaemon.StreamDialer {
	var dialer net.Dialer
	return func(ctx context.Context) (rsdaemon.TransferConn, error) {
		serverCfg, err := rsconfig.LoadServerConfig()
		if err != nil {
			return nil, err
		}
		conn, err := rstransfer.Dial(ctx, &dialer, "tcp", serverCfg.StreamAddress())
		if err != nil {
			return nil, rserr.IO(err)
		}
		return conn, nil
	}
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
