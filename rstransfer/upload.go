// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rstransfer

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rserr"
)

// ChunkSize is the size of every stream-socket chunk but the last,
// matching the reference implementation's constant; 14 MiB keeps a
// single chunk comfortably inside typical TCP buffer and timeout
// budgets while still amortising the per-frame overhead across a
// large file.
const ChunkSize = 1024 * 1024 * 14

// maxCheckFileRetries bounds how many times uploadOneFile will re-send a
// file after the server reports a digest mismatch (an Ok response
// with retry=true) before giving up; the initial check plus up to
// this many retries means 5 check_file calls total before failing.
const maxCheckFileRetries = 4

// StreamConn is the narrow transport the upload and download loops
// need: send one StreamMessage, receive one StreamResponse. SocketConn
// satisfies this over any net.Conn using ipcwire's generic
// WriteFrame/ReadFrame, without depending on ipcwire's Message type.
type StreamConn interface {
	SendMessage(StreamMessage) error
	RecvResponse() (StreamResponse, error)
}

// UploadFiles streams every file in files (each path relative to
// root) over conn under uploadToken, retrying a failed digest check up
// to maxCheckFileRetries times, then commits once every file has been
// accepted. Remove operations carry no bytes and are skipped here —
// the server already knows about them from the declare/push body.
func UploadFiles(ctx context.Context, conn StreamConn, uploadToken, root string, files []FileUploadRequest, progress fsscan.ProgressFunc) error {
	total := 0
	for _, f := range files {
		if f.Operation != FileOpRemove {
			total++
		}
	}
	completed := 0
	for _, f := range files {
		if f.Operation == FileOpRemove {
			continue
		}
		if progress != nil {
			progress(fsscan.Progress{CurrentFileName: f.Path, Completed: completed, Total: total, Operation: fsscan.OpUpload})
		}
		if err := uploadOneFile(ctx, conn, uploadToken, filepath.Join(root, filepath.FromSlash(f.Path)), f); err != nil {
			_ = conn.SendMessage(abortMessage(uploadToken))
			return err
		}
		completed++
	}
	if progress != nil && total > 0 {
		progress(fsscan.Progress{CurrentFileName: "", Completed: completed, Total: total, Operation: fsscan.OpUpload})
	}

	if err := conn.SendMessage(commitMessage(uploadToken)); err != nil {
		return err
	}
	resp, err := conn.RecvResponse()
	if err != nil {
		return err
	}
	if resp.Status != StatusOk {
		return rserr.Detailf(rserr.KindTransferAborted, "commit rejected: %s", resp.Reason)
	}
	return nil
}

func uploadOneFile(ctx context.Context, conn StreamConn, token, path string, f FileUploadRequest) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return rserr.IO(err)
		}
		if err := sendFileChunks(conn, token, path, f); err != nil {
			return err
		}
		if err := conn.SendMessage(checkFileMessage(token, f.Path)); err != nil {
			return err
		}
		resp, err := conn.RecvResponse()
		if err != nil {
			return err
		}
		if resp.Status == StatusError {
			return rserr.Detailf(rserr.KindTransferAborted, "check_file failed for %s: %s", f.Path, resp.Reason)
		}
		if !resp.Retry {
			return nil
		}
		if attempt >= maxCheckFileRetries {
			return rserr.Detailf(rserr.KindTransferRetryExceeded, "%s", f.Path)
		}
	}
}

func sendFileChunks(conn StreamConn, token, path string, f FileUploadRequest) error {
	file, err := os.Open(path)
	if err != nil {
		return rserr.IO(err)
	}
	defer file.Close()

	buf := make([]byte, ChunkSize)
	offset := uint64(0)
	for {
		n, readErr := io.ReadFull(file, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return rserr.IO(readErr)
		}
		last := offset+uint64(n) >= f.Size
		if err := conn.SendMessage(uploadChunkMessage(token, f.Path, f.Size, buf[:n], last)); err != nil {
			return err
		}
		resp, err := conn.RecvResponse()
		if err != nil {
			return err
		}
		if resp.Status != StatusOk {
			return rserr.Detailf(rserr.KindTransferAborted, "upload_chunk rejected for %s: %s", f.Path, resp.Reason)
		}
		offset += uint64(n)
		if last {
			return nil
		}
	}
}