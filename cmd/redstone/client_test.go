// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/hammsvietro/redstone/rsdaemon"
	"github.com/hammsvietro/redstone/rsindex"
	"github.com/hammsvietro/redstone/rstransfer"
)

type fakeControlClient struct {
	declareResp *rstransfer.UploadResponse
}

func (f *fakeControlClient) Declare(ctx context.Context, name, root string, files []rstransfer.FileUploadRequest) (*rstransfer.UploadResponse, error) {
	return f.declareResp, nil
}
func (f *fakeControlClient) Push(ctx context.Context, backupID string, files []rstransfer.FileUploadRequest) (*rstransfer.UploadResponse, error) {
	return f.declareResp, nil
}
func (f *fakeControlClient) Clone(ctx context.Context, backupName string) (*rstransfer.DownloadResponse, error) {
	return nil, nil
}
func (f *fakeControlClient) Pull(ctx context.Context, backupID, updateID string) (*rstransfer.DownloadResponse, error) {
	return nil, nil
}
func (f *fakeControlClient) FetchUpdate(ctx context.Context, backupID string) (*rsindex.Update, error) {
	return &rsindex.Update{}, nil
}

type fakeTransferConn struct{}

func (fakeTransferConn) SendMessage(m rstransfer.StreamMessage) error { return nil }
func (fakeTransferConn) RecvResponse() (rstransfer.StreamResponse, error) {
	return rstransfer.StreamResponse{Status: rstransfer.StatusOk}, nil
}
func (fakeTransferConn) Close() error { return nil }

// TestRunOperationDrivesTrackDialogueToCompletion spins up a real
// rsdaemon.Server over a unix socket and exercises runOperation's
// client-side half of the S0-S4 dialogue end to end: progress ACKs,
// a confirmation reply, and a successful terminal response.
func TestRunOperationDrivesTrackDialogueToCompletion(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	sockPath := filepath.Join(t.TempDir(), "redstone.sock")
	t.Setenv("REDSTONE_SOCKET_PATH", sockPath)
	t.Setenv("REDSTONE_DATA_DIR", t.TempDir())

	client := &fakeControlClient{declareResp: &rstransfer.UploadResponse{
		Backup:      rsindex.BackupIdentity{ID: "b1", Name: "myproj"},
		Update:      rsindex.Update{ID: "u1", Hash: "h1"},
		UploadToken: "tok",
	}}
	srv := rsdaemon.NewServer(nil,
		func(ctx context.Context) (rsdaemon.ControlClient, error) { return client, nil },
		func(ctx context.Context) (rsdaemon.TransferConn, error) { return fakeTransferConn{}, nil },
	)

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	req := ipcwire.TrackRequest("myproj", root)
	err = runOperation(context.Background(), req, func(string) bool { return true })
	if err != nil {
		t.Fatalf("runOperation: %v", err)
	}

	idx, err := rsindex.Load(rsindex.PathFor(root))
	if err != nil {
		t.Fatalf("expected index to have been written: %v", err)
	}
	if idx.Identity.ID != "b1" {
		t.Errorf("unexpected backup id %q", idx.Identity.ID)
	}
}

func TestProgressVerbCoversEveryOperation(t *testing.T) {
	cases := map[fsscan.Operation]string{
		fsscan.OpHash:     "hashing",
		fsscan.OpUpload:   "uploading",
		fsscan.OpDownload: "downloading",
	}
	for op, want := range cases {
		if got := progressVerb(op); got != want {
			t.Errorf("progressVerb(%s) = %q, want %q", op, got, want)
		}
	}
}

func TestRenderCookiesJoinsNameValuePairs(t *testing.T) {
	cookies := []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
	got := renderCookies(cookies)
	want := "a=1; b=2"
	if got != want {
		t.Errorf("renderCookies() = %q, want %q", got, want)
	}
}
