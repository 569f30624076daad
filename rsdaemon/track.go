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
	"github.com/hammsvietro/redstone/rsschedule"
	"github.com/hammsvietro/redstone/rstransfer"
)

// handleTrack implements the S0-S4 dialogue for Track: scan the new
// root (S1), confirm with the user (S2), declare and upload every file
// as Add (S3), then write the backup's first IndexFile.
func (srv *Server) handleTrack(ctx context.Context, sess *session, req ipcwire.Message) error {
	root, err := filepath.Abs(req.TrackPath)
	if err != nil {
		return sess.terminal("", rserr.IO(err))
	}
	if err := rsschedule.ParseCronExpr(req.TrackSyncEvery); err != nil {
		return sess.terminal("", err)
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

	pump := newProgressPump(sess)
	tree, err := fsscan.Walk(root, fsscan.WithProgress(pump.Emit))
	pump.Close()
	if err != nil {
		return sess.terminal("", err)
	}
	if pumpErr := pump.Err(); pumpErr != nil {
		return pumpErr
	}

	files := treeToAddRequests(tree)
	confirmMsg := fmt.Sprintf(
		"By continuing, you will recursively back up %d files (%s) from %s as %q.\nDo you wish to continue?",
		len(files), humanBytes(totalSizeOf(files)), root, req.TrackName,
	)
	accepted, err := sess.confirm(confirmMsg)
	if err != nil {
		return err
	}
	if !accepted {
		return sess.terminal("", nil)
	}

	client, err := srv.newClient(ctx)
	if err != nil {
		return sess.terminal("", err)
	}
	declared, err := client.Declare(ctx, req.TrackName, root, files)
	if err != nil {
		return sess.terminal("", err)
	}

	if len(files) > 0 {
		stream, err := srv.dialStream(ctx)
		if err != nil {
			return sess.terminal("", err)
		}
		defer stream.Close()

		uploadPump := newProgressPump(sess)
		uploadErr := rstransfer.UploadFiles(ctx, stream, declared.UploadToken, root, files, uploadPump.Emit)
		uploadPump.Close()
		if uploadErr != nil {
			return sess.terminal("", uploadErr)
		}
		if pumpErr := uploadPump.Err(); pumpErr != nil {
			return pumpErr
		}
	}

	cfg := rsindex.BackupConfig{SyncEvery: req.TrackSyncEvery, Watch: req.TrackWatch}
	idx := rsindex.New(declared.Backup, cfg, declared.Update, *tree)
	if err := rsindex.Save(indexPath, idx); err != nil {
		return sess.terminal("", err)
	}
	srv.registerRoot(root)

	return sess.terminal(fmt.Sprintf("tracked %q at %s", req.TrackName, root), nil)
}