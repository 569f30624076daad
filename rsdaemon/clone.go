// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsindex"
	"github.com/hammsvietro/redstone/rstransfer"
)

// handleClone implements the S0-S4 dialogue for Clone: ask the server
// for the named backup's full file set, confirm (S2, no hashing phase
// since there is nothing local yet to scan), download every file (S3),
// then write the fresh IndexFile from a scan of what was just written.
func (srv *Server) handleClone(ctx context.Context, sess *session, req ipcwire.Message) error {
	root, err := filepath.Abs(req.ClonePath)
	if err != nil {
		return sess.terminal("", rserr.IO(err))
	}

	indexPath := rsindex.PathFor(root)
	if _, loadErr := rsindex.Load(indexPath); loadErr == nil {
		return sess.terminal("", rserr.Detailf(rserr.KindBackupAlreadyExists, "%s", root))
	}

	unlock, err := srv.locks.Lock(root)
	if err != nil {
		return sess.terminal("", err)
	}
	defer unlock()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return sess.terminal("", rserr.IO(err))
	}

	client, err := srv.newClient(ctx)
	if err != nil {
		return sess.terminal("", err)
	}
	cloned, err := client.Clone(ctx, req.CloneBackupName)
	if err != nil {
		return sess.terminal("", err)
	}

	confirmMsg := fmt.Sprintf(
		"Cloning %q will materialise %d files (%s) into %s.\nDo you wish to continue?",
		req.CloneBackupName, len(cloned.Files), humanBytes(cloned.TotalBytes), root,
	)
	accepted, err := sess.confirm(confirmMsg)
	if err != nil {
		return err
	}
	if !accepted {
		return sess.terminal("", nil)
	}

	if len(cloned.Files) > 0 {
		stream, err := srv.dialStream(ctx)
		if err != nil {
			return sess.terminal("", err)
		}
		defer stream.Close()

		downloadPump := newProgressPump(sess)
		downloadErr := rstransfer.DownloadFiles(stream, cloned.DownloadToken, root, cloned.Files, downloadPump.Emit)
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
	idx := rsindex.New(cloned.Backup, rsindex.BackupConfig{}, cloned.Update, *rescanned)
	if err := rsindex.Save(indexPath, idx); err != nil {
		return sess.terminal("", err)
	}
	srv.registerRoot(root)

	return sess.terminal(fmt.Sprintf("cloned %q into %s", req.CloneBackupName, root), nil)
}