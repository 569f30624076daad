// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rstransfer"
)

// diffToFileUploadRequests flattens a Diff's three partitions into the
// flat operation-tagged list the declare/push HTTP bodies carry,
// mirroring the reference's FileUploadRequest::from_diff.
func diffToFileUploadRequests(d *fsscan.Diff) []rstransfer.FileUploadRequest {
	out := make([]rstransfer.FileUploadRequest, 0, len(d.Added)+len(d.Changed)+len(d.Removed))
	for _, f := range d.Added {
		out = append(out, rstransfer.FileUploadRequest{Path: f.Path, Sha256Digest: f.Digest, Operation: rstransfer.FileOpAdd, Size: f.Size})
	}
	for _, f := range d.Changed {
		out = append(out, rstransfer.FileUploadRequest{Path: f.Path, Sha256Digest: f.Digest, Operation: rstransfer.FileOpUpdate, Size: f.Size})
	}
	for _, f := range d.Removed {
		out = append(out, rstransfer.FileUploadRequest{Path: f.Path, Operation: rstransfer.FileOpRemove, Size: f.Size})
	}
	return out
}

// treeToAddRequests renders a fresh Tree (no prior state to diff
// against) as an all-Add upload request list, used by track.
func treeToAddRequests(t *fsscan.Tree) []rstransfer.FileUploadRequest {
	out := make([]rstransfer.FileUploadRequest, 0, len(t.Files))
	for _, f := range t.Files {
		out = append(out, rstransfer.FileUploadRequest{Path: f.Path, Sha256Digest: f.Digest, Operation: rstransfer.FileOpAdd, Size: f.Size})
	}
	return out
}

// totalSizeOf sums Size across a FileUploadRequest list, used for the
// confirmation-prompt byte estimate.
func totalSizeOf(files []rstransfer.FileUploadRequest) uint64 {
	var total uint64
	for _, f := range files {
		total += f.Size
	}
	return total
}