// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rstransfer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/hammsvietro/redstone/rserr"
)

type fakeSender struct {
	fn func(*http.Request) (*http.Response, error)
}

func (f fakeSender) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestLoginRejectsWrongPasswordAsUnauthorized(t *testing.T) {
	sender := fakeSender{fn: func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/login" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		return jsonResponse(http.StatusUnauthorized, `{}`), nil
	}}
	client := NewClient("http://localhost:4000", sender)

	err := client.Login(context.Background(), "a@b", "wrong")
	if !rserr.Is(err, rserr.KindUnauthorized) {
		t.Fatalf("expected KindUnauthorized, got %v", err)
	}
}

func TestLoginSuccessReturnsNoError(t *testing.T) {
	sender := fakeSender{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}}
	client := NewClient("http://localhost:4000", sender)

	if err := client.Login(context.Background(), "a@b", "right"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestDeclarePostsExactFilesAndDecodesResponse(t *testing.T) {
	var captured declareBody
	sender := fakeSender{fn: func(req *http.Request) (*http.Response, error) {
		if err := readJSON(req.Body, &captured); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{
			"backup": {"id": "b1", "name": "myproj"},
			"files": [],
			"update": {"id": "u1", "hash": "h1"},
			"upload_token": "tok-123"
		}`), nil
	}}
	client := NewClient("http://localhost:4000", sender)

	files := []FileUploadRequest{
		{Path: "hello.ex", Sha256Digest: "1d8326dc32bc35812503ecfcce8ca3db0f025fb84d589df4e687b96f6cdf03fe", Operation: FileOpAdd, Size: 159},
		{Path: "other_folder/other_file.hs", Sha256Digest: "982bc87271bad527f4659eb12ecf1fd1295ae9fe0acfcfc83539fb9c0e523f64", Operation: FileOpAdd, Size: 53},
	}
	resp, err := client.Declare(context.Background(), "myproj", "/root/myproj", files)
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if resp.UploadToken != "tok-123" {
		t.Errorf("UploadToken = %s, want tok-123", resp.UploadToken)
	}
	if len(captured.Files) != 2 {
		t.Fatalf("expected exactly 2 files posted, got %d", len(captured.Files))
	}
	for _, f := range captured.Files {
		if f.Operation != FileOpAdd {
			t.Errorf("expected operation=add for a fresh track, got %s", f.Operation)
		}
	}
}

func TestApiErrorResponseParsedIntoStructuredError(t *testing.T) {
	sender := fakeSender{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"errors": {"name": ["is already taken"]}, "stringified_errors": "- name: is already taken"}`), nil
	}}
	client := NewClient("http://localhost:4000", sender)

	_, err := client.Declare(context.Background(), "dup", "/root/dup", nil)
	if !rserr.Is(err, rserr.KindAPI) {
		t.Fatalf("expected KindAPI, got %v", err)
	}
	rsErr, _ := rserr.As(err)
	if rsErr.Detail != "- name: is already taken" {
		t.Errorf("Detail = %q, want %q", rsErr.Detail, "- name: is already taken")
	}
}

func TestFetchUpdateDecodesUpdate(t *testing.T) {
	sender := fakeSender{fn: func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet {
			t.Fatalf("expected GET, got %s", req.Method)
		}
		return jsonResponse(http.StatusOK, `{"id":"u9","hash":"deadbeef"}`), nil
	}}
	client := NewClient("http://localhost:4000", sender)

	update, err := client.FetchUpdate(context.Background(), "b1")
	if err != nil {
		t.Fatalf("FetchUpdate: %v", err)
	}
	if update.Hash != "deadbeef" {
		t.Errorf("Hash = %s, want deadbeef", update.Hash)
	}
}

func readJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}