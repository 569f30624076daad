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

// handlePush implements the S0-S4 dialogue for Push: fetch the
// server's latest update and enforce the index's push precondition,
// diff against the last-synced tree (S1), confirm (S2), push and
// upload the diff (S3), then advance the index.
func (srv *Server) handlePush(ctx context.Context, sess *session, req ipcwire.Message) error {
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
	if err := idx.PreparePush(*latest); err != nil {
		return sess.terminal("", err)
	}

	pump := newProgressPump(sess)
	tree, err := fsscan.Walk(root, fsscan.WithProgress(pump.Emit))
	pump.Close()
	if err != nil {
		return sess.terminal("", err)
	}
	if pumpErr := pump.Err(); pumpErr != nil {
		return pumpErr
	}

	diff := fsscan.ComputeDiff(tree, &idx.LastFSTree)
	if !diff.HasChanges() {
		return sess.terminal("", rserr.New(rserr.KindNoChanges))
	}

	confirmMsg := diff.Message() + "\n\nDo you wish to push these changes?"
	accepted, err := sess.confirm(confirmMsg)
	if err != nil {
		return err
	}
	if !accepted {
		return sess.terminal("", nil)
	}

	files := diffToFileUploadRequests(diff)
	pushed, err := client.Push(ctx, idx.Identity.ID, files)
	if err != nil {
		return sess.terminal("", err)
	}

	nonRemove := filterNonRemove(files)
	if len(nonRemove) > 0 {
		stream, err := srv.dialStream(ctx)
		if err != nil {
			return sess.terminal("", err)
		}
		defer stream.Close()

		uploadPump := newProgressPump(sess)
		uploadErr := rstransfer.UploadFiles(ctx, stream, pushed.UploadToken, root, files, uploadPump.Emit)
		uploadPump.Close()
		if uploadErr != nil {
			return sess.terminal("", uploadErr)
		}
		if pumpErr := uploadPump.Err(); pumpErr != nil {
			return pumpErr
		}
	}

	idx.CompletePush(pushed.Update, *tree)
	if err := rsindex.Save(indexPath, idx); err != nil {
		return sess.terminal("", err)
	}

	return sess.terminal(fmt.Sprintf("pushed update %s", pushed.Update.ID), nil)
}

func filterNonRemove(files []rstransfer.FileUploadRequest) []rstransfer.FileUploadRequest {
	out := make([]rstransfer.FileUploadRequest, 0, len(files))
	for _, f := range files {
		if f.Operation != rstransfer.FileOpRemove {
			out = append(out, f)
		}
	}
	return out
}