// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package rstransfer implements the Transfer Engine: the HTTP control
// plane (declare/push/pull/clone/fetch-update) and the stream-socket
// data plane (chunked upload/download with checksum verification,
// retry, commit and abort).
package rstransfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsindex"
)

// httpSenderTimeout bounds every control-plane round trip; generous
// enough for a slow declare/push over many files, short enough that a
// genuinely unreachable server is detected without the operation
// hanging indefinitely.
const httpSenderTimeout = 30 * time.Second

// Sender is the narrow interface the HTTP control plane depends on —
// exactly the shape of (*http.Client).Do — so tests can inject a
// recording or scripted sender without touching the network. A real
// *http.Client with a cookiejar.Jar already satisfies this interface.
type Sender interface {
	Do(req *http.Request) (*http.Response, error)
}

// FileOperation tags a FileUploadRequest with what happened to that
// path between the last-synced tree and the one being declared.
type FileOperation string

const (
	FileOpAdd    FileOperation = "add"
	FileOpUpdate FileOperation = "update"
	FileOpRemove FileOperation = "remove"
)

// FileUploadRequest describes one file's role in a declare/push/pull
// request body.
type FileUploadRequest struct {
	Path         string        `json:"path"`
	Sha256Digest string        `json:"sha_256_digest,omitempty"`
	Operation    FileOperation `json:"operation"`
	Size         uint64        `json:"size"`
}

type declareBody struct {
	Name  string              `json:"name"`
	Root  string              `json:"root"`
	Files []FileUploadRequest `json:"files"`
}

type pushBody struct {
	BackupID string              `json:"backup_id"`
	Files    []FileUploadRequest `json:"files"`
}

type cloneBody struct {
	BackupName string `json:"backup_name"`
}

type pullBody struct {
	BackupID string `json:"backup_id"`
	UpdateID string `json:"update_id"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UploadResponse is returned by declare and push.
type UploadResponse struct {
	Backup      rsindex.BackupIdentity `json:"backup"`
	Files       []FileUploadRequest    `json:"files"`
	Update      rsindex.Update         `json:"update"`
	UploadToken string                 `json:"upload_token"`
}

// DownloadResponse is returned by clone and pull.
type DownloadResponse struct {
	Backup        rsindex.BackupIdentity `json:"backup"`
	Files         []FileUploadRequest    `json:"files"`
	DownloadToken string                 `json:"download_token"`
	Update        rsindex.Update         `json:"update"`
	TotalBytes    uint64                 `json:"total_bytes"`
}

type apiErrorResponse struct {
	Errors      map[string][]string `json:"errors"`
	Stringified string              `json:"stringified_errors"`
}

// Client is the HTTP control-plane client. The cookie jar (carrying
// the auth session established by Login) lives on the *http.Client
// passed in as sender when that sender is the real one; this mirrors
// the reference implementation's process-wide, login-mutated cookie
// store.
type Client struct {
	baseURL string
	sender  Sender
}

// NewClient builds a control-plane client against baseURL (e.g.
// "https://backup.example.com"), issuing requests through sender.
func NewClient(baseURL string, sender Sender) *Client {
	return &Client{baseURL: baseURL, sender: sender}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return rserr.Serde(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return rserr.HTTP(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.sender.Do(req)
	if err != nil {
		return rserr.HTTP(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return rserr.New(rserr.KindUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		respBody, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(respBody, &apiErr) == nil && (len(apiErr.Errors) > 0 || apiErr.Stringified != "") {
			if apiErr.Stringified != "" {
				return &rserr.Error{Kind: rserr.KindAPI, Detail: apiErr.Stringified, APIErrs: apiErr.Errors}
			}
			return rserr.API(apiErr.Errors)
		}
		return rserr.Detailf(rserr.KindHTTP, "unexpected status %d from %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return rserr.Serde(err)
	}
	return nil
}

// Login authenticates; on success the session cookie is stored in
// whatever cookie jar backs the sender.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/api/login", loginBody{Email: email, Password: password}, nil)
}

// Declare posts a new backup declaration (used by track).
func (c *Client) Declare(ctx context.Context, name, root string, files []FileUploadRequest) (*UploadResponse, error) {
	var out UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload/declare", declareBody{Name: name, Root: root, Files: files}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Push posts a diff against an existing backup (used by push).
func (c *Client) Push(ctx context.Context, backupID string, files []FileUploadRequest) (*UploadResponse, error) {
	var out UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload/push", pushBody{BackupID: backupID, Files: files}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clone requests a full download of a named backup (used by clone).
func (c *Client) Clone(ctx context.Context, backupName string) (*DownloadResponse, error) {
	var out DownloadResponse
	if err := c.do(ctx, http.MethodPost, "/api/download/clone", cloneBody{BackupName: backupName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pull requests the file set needed to advance to updateID (used by pull).
func (c *Client) Pull(ctx context.Context, backupID, updateID string) (*DownloadResponse, error) {
	var out DownloadResponse
	if err := c.do(ctx, http.MethodPost, "/api/download/pull", pullBody{BackupID: backupID, UpdateID: updateID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchUpdate returns the latest Update known to the server for backupID.
func (c *Client) FetchUpdate(ctx context.Context, backupID string) (*rsindex.Update, error) {
	var out rsindex.Update
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/update/fetch/%s", backupID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// cookieSender implements Sender by attaching a previously-established
// session cookie string to every outgoing request. It exists for
// callers that hold a persisted AuthState rather than a live
// cookiejar.Jar fed by an in-process Login call — namely the daemon,
// which builds a fresh Client per operation (see rsdaemon.Server's
// newClient field) from whatever cookie `auth` last wrote to disk.
type cookieSender struct {
	client *http.Client
	cookie string
}

// NewCookieSender builds a Sender that sends cookie (the raw
// "name=value; name2=value2" string persisted by AuthState) on every
// request. An empty cookie sends no header at all, which surfaces as
// Unauthorized on the first request that requires a session.
func NewCookieSender(cookie string) Sender {
	return &cookieSender{client: &http.Client{Timeout: httpSenderTimeout}, cookie: cookie}
}

func (c *cookieSender) Do(req *http.Request) (*http.Response, error) {
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	return c.client.Do(req)
}