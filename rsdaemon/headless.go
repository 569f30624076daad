// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"context"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsindex"
	"github.com/hammsvietro/redstone/rstransfer"
)

// PushHeadless runs the exact push implementation handlePush uses, but
// for a caller with no interactive client on the other end of an IPC
// connection: confirmation is auto-accepted, and progress is logged
// instead of sent over a session. It is the boundary rsschedule's
// cron and watch paths call through — both reduce to this one method,
// introducing no new push semantics of their own.
func (srv *Server) PushHeadless(ctx context.Context, root string) error {
	log := srv.log.With("root", root)

	unlock, err := srv.locks.Lock(root)
	if err != nil {
		return err
	}
	defer unlock()

	indexPath := rsindex.PathFor(root)
	idx, err := rsindex.Load(indexPath)
	if err != nil {
		return err
	}

	client, err := srv.newClient(ctx)
	if err != nil {
		return err
	}
	latest, err := client.FetchUpdate(ctx, idx.Identity.ID)
	if err != nil {
		return err
	}
	if err := idx.PreparePush(*latest); err != nil {
		return err
	}

	tree, err := fsscan.Walk(root, fsscan.WithProgress(func(p fsscan.Progress) {
		log.Debug("hashing", "file", p.CurrentFileName, "completed", p.Completed, "total", p.Total)
	}))
	if err != nil {
		return err
	}

	diff := fsscan.ComputeDiff(tree, &idx.LastFSTree)
	if !diff.HasChanges() {
		log.Debug("headless push found no changes")
		return nil
	}
	log.Info("headless push proceeding", "added", len(diff.Added), "changed", len(diff.Changed), "removed", len(diff.Removed))

	files := diffToFileUploadRequests(diff)
	pushed, err := client.Push(ctx, idx.Identity.ID, files)
	if err != nil {
		return err
	}

	if nonRemove := filterNonRemove(files); len(nonRemove) > 0 {
		stream, err := srv.dialStream(ctx)
		if err != nil {
			return err
		}
		defer stream.Close()

		if err := rstransfer.UploadFiles(ctx, stream, pushed.UploadToken, root, files, func(p fsscan.Progress) {
			log.Debug("uploading", "file", p.CurrentFileName, "completed", p.Completed, "total", p.Total)
		}); err != nil {
			return err
		}
	}

	idx.CompletePush(pushed.Update, *tree)
	if err := rsindex.Save(indexPath, idx); err != nil {
		return err
	}
	log.Info("headless push committed", "update", pushed.Update.ID)
	return nil
}

// IsNoChanges reports whether err is a KindNoChanges error, the
// "nothing to do" outcome rather than a failure.
func IsNoChanges(err error) bool {
	return rserr.Is(err, rserr.KindNoChanges)
}
