// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package rserr defines the closed error taxonomy shared by every
// component: the filesystem scanner, the index, the IPC dialogue and
// the transfer engine all fail into one of these kinds so a daemon
// response and a CLI exit code can be derived uniformly.
package rserr

import (
	"fmt"
	"sort"
)

// Kind classifies an Error into one of the taxonomy's closed set of
// variants. New Kinds are not expected to be added casually: every
// consumer of an Error is expected to switch exhaustively over Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindSerde
	KindHTTP
	KindAPI
	KindUnauthorized
	KindConnectionTimeout
	KindInvalidPath
	KindPathCannotBeFile
	KindBackupAlreadyExists
	KindBackupDoesntExist
	KindNoServerConfigFound
	KindNotAuthenticated
	KindNotInLatestUpdate
	KindAlreadyInLatestUpdate
	KindNoChanges
	KindConfirmationNotAccepted
	KindNoHomeDir
	KindCronParse
	KindTransferRetryExceeded
	KindTransferAborted
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindIO:                      "io_error",
	KindSerde:                   "serde_error",
	KindHTTP:                    "http_error",
	KindAPI:                     "api_error",
	KindUnauthorized:            "unauthorized",
	KindConnectionTimeout:       "connection_timeout",
	KindInvalidPath:             "invalid_path",
	KindPathCannotBeFile:        "path_cannot_be_file",
	KindBackupAlreadyExists:     "backup_already_exists",
	KindBackupDoesntExist:       "backup_doesnt_exist",
	KindNoServerConfigFound:     "no_server_config_found",
	KindNotAuthenticated:        "not_authenticated",
	KindNotInLatestUpdate:       "not_in_latest_update",
	KindAlreadyInLatestUpdate:   "already_in_latest_update",
	KindNoChanges:               "no_changes",
	KindConfirmationNotAccepted: "confirmation_not_accepted",
	KindNoHomeDir:               "no_home_dir",
	KindCronParse:               "cron_parse_error",
	KindTransferRetryExceeded:   "transfer_retry_exceeded",
	KindTransferAborted:         "transfer_aborted",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the single concrete error type carried across every
// component boundary, including the IPC wire (see ipcwire.Message),
// so a Kind and a display string survive the trip from daemon to
// client unchanged.
type Error struct {
	Kind    Kind                `msgpack:"kind"`
	Detail  string              `msgpack:"detail,omitempty"`
	APIErrs map[string][]string `msgpack:"api_errors,omitempty"` // only populated for KindAPI
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return "unauthorized, check if you're logged in correctly"
	case KindConnectionTimeout:
		return "connection timed out"
	case KindNoHomeDir:
		return "could not resolve a home directory for this user"
	case KindNotInLatestUpdate:
		return "local backup is behind the server's latest update, pull first"
	case KindAlreadyInLatestUpdate:
		return "already at the server's latest update"
	case KindNoChanges:
		return "no changes to push"
	case KindConfirmationNotAccepted:
		return "confirmation was declined"
	case KindBackupAlreadyExists:
		return fmt.Sprintf("a backup already tracks this directory: %s", e.Detail)
	case KindBackupDoesntExist:
		return fmt.Sprintf("no backup is tracked at %s", e.Detail)
	case KindNoServerConfigFound:
		return "no server configuration found, run server-config first"
	case KindNotAuthenticated:
		return "not authenticated, run auth first"
	case KindInvalidPath:
		return fmt.Sprintf("invalid path: %s", e.Detail)
	case KindPathCannotBeFile:
		return fmt.Sprintf("path must be a directory, not a file: %s", e.Detail)
	case KindAPI:
		return e.Detail
	case KindIO:
		return fmt.Sprintf("io error: %s", e.Detail)
	case KindSerde:
		return fmt.Sprintf("encoding error: %s", e.Detail)
	case KindHTTP:
		return fmt.Sprintf("http error: %s", e.Detail)
	case KindCronParse:
		return fmt.Sprintf("invalid cron expression %q", e.Detail)
	case KindTransferRetryExceeded:
		return fmt.Sprintf("giving up on %s after repeated verification failures", e.Detail)
	case KindTransferAborted:
		return fmt.Sprintf("transfer aborted: %s", e.Detail)
	default:
		if e.Detail != "" {
			return e.Detail
		}
		return "unknown error"
	}
}

// Is supports errors.Is(err, rserr.New(kind)) style comparisons by
// Kind alone, ignoring Detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a bare Error of the given Kind with no detail.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap builds an Error of the given Kind carrying detail derived from
// err's message, preserving neither the original type nor a chain
// (the wire format the Error travels over has no room for arbitrary
// wrapped error graphs, only a Kind and a string).
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return New(kind)
	}
	return &Error{Kind: kind, Detail: err.Error()}
}

// Detailf builds an Error of the given Kind with a formatted detail
// string.
func Detailf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IO, Serde and HTTP are convenience constructors for the three
// detail-carrying infrastructure kinds, mirroring the taxonomy names
// used throughout the rest of the codebase and in the design ledger.
func IO(err error) *Error    { return Wrap(KindIO, err) }
func Serde(err error) *Error { return Wrap(KindSerde, err) }
func HTTP(err error) *Error  { return Wrap(KindHTTP, err) }

// API builds the structured server-rejection error, formatting a
// stable bullet-list string from the field->reasons map the way the
// reference server's error responses are rendered.
func API(errs map[string][]string) *Error {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	stringified := ""
	for _, field := range fields {
		for _, reason := range errs[field] {
			if stringified != "" {
				stringified += "\n"
			}
			stringified += fmt.Sprintf("- %s: %s", field, reason)
		}
	}
	return &Error{Kind: KindAPI, Detail: stringified, APIErrs: errs}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}

// As extracts the *Error from err, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}