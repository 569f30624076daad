// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package ipcwire implements the IPC Framing component: a single
// tagged message type and the 4-byte-length-prefixed binary framing
// shared by the client<->daemon socket and the stream-socket transfer
// plane.
package ipcwire

import (
	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rserr"
)

// Kind discriminates the single Message struct below, avoiding the
// dozen-variant hand-rolled sum type (and its repeated downcasting)
// the reference implementation uses.
type Kind string

const (
	KindTrackRequest        Kind = "track_request"
	KindCloneRequest        Kind = "clone_request"
	KindPushRequest         Kind = "push_request"
	KindPullRequest         Kind = "pull_request"
	KindConfirmationRequest Kind = "confirmation_request"
	KindConfirmationReply   Kind = "confirmation_response"
	KindFileActionProgress  Kind = "file_action_progress"
	KindResponse            Kind = "response"
)

// Message is the one wire type carried by every frame on the
// client<->daemon socket; the stream-socket transfer plane uses
// rstransfer's StreamMessage/StreamResponse instead. Only
// the fields relevant to Kind are populated; callers switch on Kind
// and read the matching fields.
type Message struct {
	Kind Kind `msgpack:"kind"`

	// Track
	TrackName      string `msgpack:"track_name,omitempty"`
	TrackPath      string `msgpack:"track_path,omitempty"`
	TrackSyncEvery string `msgpack:"track_sync_every,omitempty"`
	TrackWatch     bool   `msgpack:"track_watch,omitempty"`

	// Clone
	CloneBackupName string `msgpack:"clone_backup_name,omitempty"`
	ClonePath       string `msgpack:"clone_path,omitempty"`

	// Push / Pull: the tracked root the operation applies to.
	Path string `msgpack:"path,omitempty"`

	// ConfirmationRequest / ConfirmationResponse
	ConfirmationMessage string `msgpack:"confirmation_message,omitempty"`
	HasAccepted         bool   `msgpack:"has_accepted,omitempty"`

	// FileActionProgress
	Progress *fsscan.Progress `msgpack:"progress,omitempty"`

	// Response (terminal or ACK)
	ResponseMessage string      `msgpack:"response_message,omitempty"`
	KeepConnection  bool        `msgpack:"keep_connection,omitempty"`
	Error           *rserr.Error `msgpack:"error,omitempty"`
}

func TrackRequest(name, path string) Message {
	return Message{Kind: KindTrackRequest, TrackName: name, TrackPath: path}
}

// TrackRequestWithConfig builds a Track request that also asks the
// daemon to arm a scheduled or watched re-sync for the new backup,
// mirroring the reference CLI's `track --sync-every/--watch` flags.
func TrackRequestWithConfig(name, path, syncEvery string, watch bool) Message {
	m := TrackRequest(name, path)
	m.TrackSyncEvery = syncEvery
	m.TrackWatch = watch
	return m
}

func CloneRequest(backupName, path string) Message {
	return Message{Kind: KindCloneRequest, CloneBackupName: backupName, ClonePath: path}
}

func PushRequest(path string) Message { return Message{Kind: KindPushRequest, Path: path} }

func PullRequest(path string) Message { return Message{Kind: KindPullRequest, Path: path} }

func ConfirmationRequest(message string) Message {
	return Message{Kind: KindConfirmationRequest, ConfirmationMessage: message}
}

func ConfirmationReply(accepted bool) Message {
	return Message{Kind: KindConfirmationReply, HasAccepted: accepted}
}

func FileActionProgress(p fsscan.Progress) Message {
	return Message{Kind: KindFileActionProgress, Progress: &p}
}

// Response builds a terminal or ACK response. err may be nil.
func Response(message string, keepConnection bool, err error) Message {
	m := Message{Kind: KindResponse, ResponseMessage: message, KeepConnection: keepConnection}
	if err != nil {
		if rsErr, ok := rserr.As(err); ok {
			m.Error = rsErr
		} else {
			m.Error = rserr.Wrap(rserr.KindIO, err)
		}
	}
	return m
}

// IsConfirmationRequest reports whether m is a request the receiver
// must answer with a ConfirmationReply.
func (m Message) IsConfirmationRequest() bool { return m.Kind == KindConfirmationRequest }

// IsRequest reports whether m is one of the four operation requests.
func (m Message) IsRequest() bool {
	switch m.Kind {
	case KindTrackRequest, KindCloneRequest, KindPushRequest, KindPullRequest:
		return true
	default:
		return false
	}
}

// ShouldCloseConnection mirrors the reference dialogue's own rule: a
// response closes the connection whenever it carries an error or
// explicitly asks not to keep the connection open.
func (m Message) ShouldCloseConnection() bool {
	return m.Kind == KindResponse && (m.Error != nil || !m.KeepConnection)
}