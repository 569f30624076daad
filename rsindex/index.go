// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package rsindex implements the Backup Index: the on-disk record
// binding a tracked directory to its server-side backup and update
// identity, and the update-hash consistency protocol that guards
// push and pull.
package rsindex

import (
	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rserr"
)

// BackupIdentity is assigned once at track/clone time and never
// mutated afterwards. It doubles as the JSON shape the HTTP control
// plane exchanges (entrypoint is client-local and empty in server
// responses).
type BackupIdentity struct {
	ID         string `msgpack:"id" json:"id"`
	Name       string `msgpack:"name" json:"name"`
	Entrypoint string `msgpack:"entrypoint" json:"entrypoint,omitempty"`
}

// Update is a single commit in a backup's history, server-issued on
// every successful track or push commit and recorded locally after
// track, push, pull and clone. Also doubles as the HTTP wire
// shape returned by the update-fetch and declare/push/pull endpoints.
type Update struct {
	ID      string `msgpack:"id" json:"id"`
	Hash    string `msgpack:"hash" json:"hash"`
	Message string `msgpack:"message" json:"message,omitempty"`
}

// BackupConfig is set at track time from the CLI's track flags
// (--sync-every, --watch).
type BackupConfig struct {
	SyncEvery string `msgpack:"sync_every"` // cron expression, empty disables
	Watch     bool   `msgpack:"watch"`
}

// IndexFile is the full on-disk record at <root>/.rs/index.
type IndexFile struct {
	Identity      BackupIdentity `msgpack:"identity"`
	Config        BackupConfig   `msgpack:"config"`
	CurrentUpdate Update         `msgpack:"current_update"`
	LatestUpdate  Update         `msgpack:"latest_update"`
	LastFSTree    fsscan.Tree    `msgpack:"last_fs_tree"`
}

// New builds the IndexFile written at the end of a successful track
// or clone: current and latest updates start out equal (the update
// that was just committed/downloaded).
func New(identity BackupIdentity, cfg BackupConfig, initial Update, tree fsscan.Tree) *IndexFile {
	return &IndexFile{
		Identity:      identity,
		Config:        cfg,
		CurrentUpdate: initial,
		LatestUpdate:  initial,
		LastFSTree:    tree,
	}
}

// PreparePush records the server's latest known update into the
// index and enforces the push precondition: current_update must equal
// latest_update, or the caller must pull first. The caller is
// expected to have already fetched latest from the server; this
// function performs no I/O.
func (idx *IndexFile) PreparePush(latest Update) error {
	idx.LatestUpdate = latest
	if latest.Hash != idx.CurrentUpdate.Hash {
		return rserr.New(rserr.KindNotInLatestUpdate)
	}
	return nil
}

// PreparePull enforces the pull precondition: fails with
// AlreadyInLatestUpdate when the server's latest equals the index's
// current update, else records latest and signals the caller to
// proceed with a download. Mirrors the reference implementation's
// choice to persist latest_update even before the hash comparison's
// outcome is known, since the server is the source of truth for
// "latest" whether or not a download follows.
func (idx *IndexFile) PreparePull(latest Update) error {
	idx.LatestUpdate = latest
	if latest.Hash == idx.CurrentUpdate.Hash {
		return rserr.New(rserr.KindAlreadyInLatestUpdate)
	}
	return nil
}

// CompletePull rewrites current_update to the just-downloaded update
// and replaces the last-synced tree with a fresh scan of disk,
// reflecting the state the transfer engine just materialised.
func (idx *IndexFile) CompletePull(newCurrent Update, rescanned fsscan.Tree) {
	idx.CurrentUpdate = newCurrent
	idx.LatestUpdate = newCurrent
	idx.LastFSTree = rescanned
}

// CompletePush rewrites current_update (and, since the push just
// became the newest update, latest_update too) and replaces the
// last-synced tree with the tree that was just pushed.
func (idx *IndexFile) CompletePush(committed Update, pushed fsscan.Tree) {
	idx.CurrentUpdate = committed
	idx.LatestUpdate = committed
	idx.LastFSTree = pushed
}