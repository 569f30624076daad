// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rstransfer

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rserr"
)

// downloadByteLimit is the byte_limit requested with every
// DownloadChunk call; a returned chunk shorter than this signals the
// file is finished.
const downloadByteLimit = ChunkSize

// DownloadFiles materialises every file in files (each path relative
// to root) by requesting chunks over conn under downloadToken,
// sends FinishDownload once every added/updated file has been written,
// then deletes paths marked FileOpRemove and prunes every empty
// directory under root.
func DownloadFiles(conn StreamConn, downloadToken, root string, files []FileUploadRequest, progress fsscan.ProgressFunc) error {
	toFetch := make([]FileUploadRequest, 0, len(files))
	toRemove := make([]string, 0)
	for _, f := range files {
		if f.Operation == FileOpRemove {
			toRemove = append(toRemove, f.Path)
			continue
		}
		toFetch = append(toFetch, f)
	}

	for i, f := range toFetch {
		if progress != nil {
			progress(fsscan.Progress{CurrentFileName: f.Path, Completed: i, Total: len(toFetch), Operation: fsscan.OpDownload})
		}
		if err := downloadOneFile(conn, downloadToken, filepath.Join(root, filepath.FromSlash(f.Path)), f); err != nil {
			_ = conn.SendMessage(abortMessage(downloadToken))
			return err
		}
	}
	if progress != nil && len(toFetch) > 0 {
		progress(fsscan.Progress{CurrentFileName: "", Completed: len(toFetch), Total: len(toFetch), Operation: fsscan.OpDownload})
	}

	if err := conn.SendMessage(finishDownloadMessage(downloadToken)); err != nil {
		return err
	}
	resp, err := conn.RecvResponse()
	if err != nil {
		return err
	}
	if resp.Status != StatusOk {
		return rserr.Detailf(rserr.KindTransferAborted, "finish_download rejected: %s", resp.Reason)
	}

	if err := removePaths(root, toRemove); err != nil {
		return err
	}
	return pruneEmptyDirs(root)
}

func downloadOneFile(conn StreamConn, token, path string, f FileUploadRequest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rserr.IO(err)
	}
	file, err := os.Create(path)
	if err != nil {
		return rserr.IO(err)
	}
	defer file.Close()

	chunkIndex := uint64(0)
	for {
		if err := conn.SendMessage(downloadChunkMessage(token, f.Path, chunkIndex, downloadByteLimit)); err != nil {
			return err
		}
		resp, err := conn.RecvResponse()
		if err != nil {
			return err
		}
		if resp.Status != StatusOk {
			return rserr.Detailf(rserr.KindTransferAborted, "download_chunk rejected for %s: %s", f.Path, resp.Reason)
		}
		if len(resp.Data) > 0 {
			if _, err := file.Write(resp.Data); err != nil {
				return rserr.IO(err)
			}
		}
		chunkIndex++
		if uint64(len(resp.Data)) < downloadByteLimit {
			return nil
		}
	}
}

// removePaths deletes every file path (relative to root) named by a
// remove operation.
func removePaths(root string, paths []string) error {
	for _, p := range paths {
		abs := filepath.Join(root, filepath.FromSlash(p))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return rserr.IO(err)
		}
	}
	return nil
}

// pruneEmptyDirs removes every empty directory under root, whether or
// not a removal emptied it, deepest first, stopping at root itself.
func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return rserr.IO(err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return rserr.IO(err)
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return rserr.IO(err)
			}
		}
	}
	return nil
}