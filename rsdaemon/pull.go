// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsindex"
	"github.com/hammsvietro/redstone/rstransfer"
)

// handlePull implements the S0-S4 dialogue for Pull: fetch the
// server's latest update and enforce the index's pull precondition
// (S1), confirm (S2), download the remote file set (S3), then advance
// the index from a fresh scan of disk.
func (srv *Server) handlePull(ctx context.Context, sess *session, req ipcwire.Message) error {
	root, err := filepath.Abs(req.Path)
	if err != nil {
		return sess.terminal("", rserr.IO(err))
	}

	unlock, err := srv.locks.Lock(root)
	if err != nil {
		return sess.terminal("", err)
	}
	defer unlock()

	indexPath := rsindex.PathFor(root)
	idx, err := rsindex.Load(indexPath)
	if err != nil {
		return sess.terminal("", err)
	}

	client, err := srv.newClient(ctx)
	if err != nil {
		return sess.terminal("", err)
	}
	latest, err := client.FetchUpdate(ctx, idx.Identity.ID)
	if err != nil {
		return sess.terminal("", err)
	}
	if err := idx.PreparePull(*latest); err != nil {
		return sess.terminal("", err)
	}

	pulled, err := client.Pull(ctx, idx.Identity.ID, latest.ID)
	if err != nil {
		return sess.terminal("", err)
	}

	confirmMsg := fmt.Sprintf(
		"Pulling update %q will overwrite local changes with %d files (%s).\nDo you wish to continue?",
		latest.ID, len(pulled.Files), humanBytes(pulled.TotalBytes),
	)
	accepted, err := sess.confirm(confirmMsg)
	if err != nil {
		return err
	}
	if !accepted {
		return sess.terminal("", nil)
	}

	if len(pulled.Files) > 0 {
		stream, err := srv.dialStream(ctx)
		if err != nil {
			return sess.terminal("", err)
		}
		defer stream.Close()

		downloadPump := newProgressPump(sess)
		downloadErr := rstransfer.DownloadFiles(stream, pulled.DownloadToken, root, pulled.Files, downloadPump.Emit)
		downloadPump.Close()
		if downloadErr != nil {
			return sess.terminal("", downloadErr)
		}
		if pumpErr := downloadPump.Err(); pumpErr != nil {
			return pumpErr
		}
	}

	rescanned, err := fsscan.Walk(root)
	if err != nil {
		return sess.terminal("", err)
	}
	idx.CompletePull(pulled.Update, *rescanned)
	if err := rsindex.Save(indexPath, idx); err != nil {
		return sess.terminal("", err)
	}

	return sess.terminal(fmt.Sprintf("pulled update %s", pulled.Update.ID), nil)
}