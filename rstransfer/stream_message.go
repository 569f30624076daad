// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rstransfer

// StreamOperation tags a StreamMessage with which of the six
// stream-socket operations it carries.
type StreamOperation string

const (
	OpUploadChunk    StreamOperation = "upload_chunk"
	OpCheckFile      StreamOperation = "check_file"
	OpCommit         StreamOperation = "commit"
	OpAbort          StreamOperation = "abort"
	OpDownloadChunk  StreamOperation = "download_chunk"
	OpFinishDownload StreamOperation = "finish_download"
)

// StreamMessage is the single tagged type carried by every frame on
// the stream-socket data plane, the same framing shape the IPC plane
// uses but with its own operation vocabulary (the six rows of the
// transfer engine's wire table).
type StreamMessage struct {
	Operation StreamOperation `msgpack:"operation"`

	UploadToken   string `msgpack:"upload_token,omitempty"`
	DownloadToken string `msgpack:"download_token,omitempty"`
	FileID        string `msgpack:"file_id,omitempty"`
	FileSize      uint64 `msgpack:"file_size,omitempty"`
	Data          []byte `msgpack:"data,omitempty"`
	LastChunk     bool   `msgpack:"last_chunk,omitempty"`
	Offset        uint64 `msgpack:"offset,omitempty"`
	ByteLimit     uint64 `msgpack:"byte_limit,omitempty"`
}

// StreamStatus is the outcome carried by every StreamResponse.
type StreamStatus string

const (
	StatusOk    StreamStatus = "ok"
	StatusError StreamStatus = "error"
)

// StreamResponse is the single response every stream-socket operation
// elicits.
type StreamResponse struct {
	Status StreamStatus `msgpack:"status"`
	Data   []byte       `msgpack:"data,omitempty"`
	Reason string       `msgpack:"reason,omitempty"`
	Retry  bool         `msgpack:"retry,omitempty"`
}

func uploadChunkMessage(token, fileID string, fileSize uint64, chunk []byte, last bool) StreamMessage {
	return StreamMessage{Operation: OpUploadChunk, UploadToken: token, FileID: fileID, FileSize: fileSize, Data: chunk, LastChunk: last}
}

func checkFileMessage(token, fileID string) StreamMessage {
	return StreamMessage{Operation: OpCheckFile, UploadToken: token, FileID: fileID}
}

func commitMessage(token string) StreamMessage {
	return StreamMessage{Operation: OpCommit, UploadToken: token}
}

func abortMessage(token string) StreamMessage {
	return StreamMessage{Operation: OpAbort, UploadToken: token}
}

func downloadChunkMessage(token, fileID string, offset, byteLimit uint64) StreamMessage {
	return StreamMessage{Operation: OpDownloadChunk, DownloadToken: token, FileID: fileID, Offset: offset, ByteLimit: byteLimit}
}

func finishDownloadMessage(token string) StreamMessage {
	return StreamMessage{Operation: OpFinishDownload, DownloadToken: token}
}