// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/ipcwire"
	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsindex"
	"github.com/hammsvietro/redstone/rstransfer"
)

// fakeClient scripts the control-plane responses a handler test needs,
// recording which methods were called so a test can assert on
// preconditions (e.g. push never POSTs when the hash check fails).
type fakeClient struct {
	declareResp *rstransfer.UploadResponse
	pushResp    *rstransfer.UploadResponse
	cloneResp   *rstransfer.DownloadResponse
	pullResp    *rstransfer.DownloadResponse
	latest      rsindex.Update

	pushCalled bool
	err        error
}

func (f *fakeClient) Declare(ctx context.Context, name, root string, files []rstransfer.FileUploadRequest) (*rstransfer.UploadResponse, error) {
	return f.declareResp, f.err
}

func (f *fakeClient) Push(ctx context.Context, backupID string, files []rstransfer.FileUploadRequest) (*rstransfer.UploadResponse, error) {
	f.pushCalled = true
	return f.pushResp, f.err
}

func (f *fakeClient) Clone(ctx context.Context, backupName string) (*rstransfer.DownloadResponse, error) {
	return f.cloneResp, f.err
}

func (f *fakeClient) Pull(ctx context.Context, backupID, updateID string) (*rstransfer.DownloadResponse, error) {
	return f.pullResp, f.err
}

func (f *fakeClient) FetchUpdate(ctx context.Context, backupID string) (*rsindex.Update, error) {
	return &f.latest, nil
}

// fakeTransferConn answers every stream-socket op with Ok, serving
// DownloadChunk from its scripted content, enough to drive
// upload/download to completion for small test files.
type fakeTransferConn struct {
	content map[string][]byte
	written map[string][]byte
	lastOp  rstransfer.StreamMessage
}

func newFakeTransferConn() *fakeTransferConn {
	return &fakeTransferConn{content: map[string][]byte{}, written: map[string][]byte{}}
}

func (f *fakeTransferConn) SendMessage(m rstransfer.StreamMessage) error {
	if m.Operation == rstransfer.OpUploadChunk {
		f.written[m.FileID] = append(f.written[m.FileID], m.Data...)
	}
	f.lastOp = m
	return nil
}

func (f *fakeTransferConn) RecvResponse() (rstransfer.StreamResponse, error) {
	switch f.lastOp.Operation {
	case rstransfer.OpDownloadChunk:
		data := f.content[f.lastOp.FileID]
		return rstransfer.StreamResponse{Status: rstransfer.StatusOk, Data: data}, nil
	default:
		return rstransfer.StreamResponse{Status: rstransfer.StatusOk}, nil
	}
}

func (f *fakeTransferConn) Close() error { return nil }

var _ TransferConn = (*fakeTransferConn)(nil)

func TestHandleTrackDeclaresUploadsAndWritesIndex(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{
		declareResp: &rstransfer.UploadResponse{
			Backup:      rsindex.BackupIdentity{ID: "b1", Name: "myproj"},
			Update:      rsindex.Update{ID: "u1", Hash: "h1"},
			UploadToken: "tok",
		},
	}
	stream := newFakeTransferConn()

	srv := NewServer(nil,
		func(ctx context.Context) (ControlClient, error) { return client, nil },
		func(ctx context.Context) (TransferConn, error) { return stream, nil },
	)

	clientConn, daemonConn := net.Pipe()
	defer clientConn.Close()
	defer daemonConn.Close()

	done := make(chan error, 1)
	go func() {
		sess := &session{ctx: context.Background(), conn: ipcwire.NewConn(daemonConn)}
		done <- srv.handleTrack(context.Background(), sess, ipcwire.TrackRequest("myproj", root))
	}()

	driveClientSide(t, clientConn, true)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handleTrack: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handleTrack did not complete")
	}

	idx, err := rsindex.Load(rsindex.PathFor(root))
	if err != nil {
		t.Fatalf("loading written index: %v", err)
	}
	if idx.Identity.ID != "b1" || idx.CurrentUpdate.ID != "u1" {
		t.Errorf("unexpected index contents: %+v", idx)
	}
	if len(idx.LastFSTree.Files) != 1 {
		t.Errorf("expected 1 file in last-synced tree, got %d", len(idx.LastFSTree.Files))
	}
}

func TestHandleTrackDeclinedConfirmationWritesNoIndex(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644)

	client := &fakeClient{declareResp: &rstransfer.UploadResponse{UploadToken: "tok"}}
	srv := NewServer(nil,
		func(ctx context.Context) (ControlClient, error) { return client, nil },
		func(ctx context.Context) (TransferConn, error) { return newFakeTransferConn(), nil },
	)

	clientConn, daemonConn := net.Pipe()
	defer clientConn.Close()
	defer daemonConn.Close()

	done := make(chan error, 1)
	go func() {
		sess := &session{ctx: context.Background(), conn: ipcwire.NewConn(daemonConn)}
		done <- srv.handleTrack(context.Background(), sess, ipcwire.TrackRequest("myproj", root))
	}()

	driveClientSide(t, clientConn, false)

	<-done
	if _, err := rsindex.Load(rsindex.PathFor(root)); !rserr.Is(err, rserr.KindBackupDoesntExist) {
		t.Errorf("expected no index to have been written, got err=%v", err)
	}
}

func TestHandlePushFailsFastWhenBehindLatestUpdate(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644)
	idx := rsindex.New(
		rsindex.BackupIdentity{ID: "b1", Name: "proj"},
		rsindex.BackupConfig{},
		rsindex.Update{ID: "u1", Hash: "stale"},
		fsscan.Tree{Root: root},
	)
	if err := rsindex.Save(rsindex.PathFor(root), idx); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{latest: rsindex.Update{ID: "u2", Hash: "fresh"}}
	srv := NewServer(nil,
		func(ctx context.Context) (ControlClient, error) { return client, nil },
		func(ctx context.Context) (TransferConn, error) { return newFakeTransferConn(), nil },
	)

	clientConn, daemonConn := net.Pipe()
	defer clientConn.Close()
	defer daemonConn.Close()

	done := make(chan error, 1)
	go func() {
		sess := &session{ctx: context.Background(), conn: ipcwire.NewConn(daemonConn)}
		done <- srv.handlePush(context.Background(), sess, ipcwire.PushRequest(root))
	}()

	conn := ipcwire.NewConn(clientConn)
	resp, err := conn.Read(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("reading terminal response: %v", err)
	}
	if resp.Kind != ipcwire.KindResponse || resp.Error == nil || resp.Error.Kind != rserr.KindNotInLatestUpdate {
		t.Fatalf("expected terminal NotInLatestUpdate response, got %+v", resp)
	}
	<-done
	if client.pushCalled {
		t.Error("expected no POST /api/upload/push when behind latest update")
	}
}

func TestHandlePullDownloadsFilesAndAdvancesIndex(t *testing.T) {
	root := t.TempDir()
	idx := rsindex.New(
		rsindex.BackupIdentity{ID: "b1", Name: "proj"},
		rsindex.BackupConfig{},
		rsindex.Update{ID: "u1", Hash: "h1"},
		fsscan.Tree{Root: root},
	)
	if err := rsindex.Save(rsindex.PathFor(root), idx); err != nil {
		t.Fatal(err)
	}

	stream := newFakeTransferConn()
	stream.content["new.txt"] = []byte("server content")
	client := &fakeClient{
		latest: rsindex.Update{ID: "u2", Hash: "h2"},
		pullResp: &rstransfer.DownloadResponse{
			Backup:        rsindex.BackupIdentity{ID: "b1", Name: "proj"},
			Update:        rsindex.Update{ID: "u2", Hash: "h2"},
			DownloadToken: "dtok",
			Files:         []rstransfer.FileUploadRequest{{Path: "new.txt", Operation: rstransfer.FileOpAdd, Size: 14}},
			TotalBytes:    14,
		},
	}

	srv := NewServer(nil,
		func(ctx context.Context) (ControlClient, error) { return client, nil },
		func(ctx context.Context) (TransferConn, error) { return stream, nil },
	)

	clientConn, daemonConn := net.Pipe()
	defer clientConn.Close()
	defer daemonConn.Close()

	done := make(chan error, 1)
	go func() {
		sess := &session{ctx: context.Background(), conn: ipcwire.NewConn(daemonConn)}
		done <- srv.handlePull(context.Background(), sess, ipcwire.PullRequest(root))
	}()

	driveClientSide(t, clientConn, true)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handlePull: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handlePull did not complete")
	}

	got, err := os.ReadFile(filepath.Join(root, "new.txt"))
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != "server content" {
		t.Errorf("downloaded content = %q", got)
	}
	updated, err := rsindex.Load(rsindex.PathFor(root))
	if err != nil {
		t.Fatalf("loading advanced index: %v", err)
	}
	if updated.CurrentUpdate.ID != "u2" {
		t.Errorf("expected current_update advanced to u2, got %+v", updated.CurrentUpdate)
	}
}

// driveClientSide plays the client half of the S0-S4 dialogue for an
// operation that performs exactly one hashing pass (0 or more
// FileActionProgress ACKs) followed by one confirmation prompt and,
// if accepted, zero or more transfer-progress ACKs before the terminal
// response.
func driveClientSide(t *testing.T, conn net.Conn, accept bool) {
	t.Helper()
	wire := ipcwire.NewConn(conn)
	for {
		msg, err := wire.Read(context.Background(), 2*time.Second)
		if err != nil {
			t.Fatalf("driveClientSide read: %v", err)
		}
		switch msg.Kind {
		case ipcwire.KindFileActionProgress:
			if err := wire.Write(context.Background(), ipcwire.Response("", true, nil), time.Second); err != nil {
				t.Fatalf("acking progress: %v", err)
			}
		case ipcwire.KindConfirmationRequest:
			if err := wire.Write(context.Background(), ipcwire.ConfirmationReply(accept), time.Second); err != nil {
				t.Fatalf("replying to confirmation: %v", err)
			}
		case ipcwire.KindResponse:
			return
		default:
			t.Fatalf("unexpected message kind from daemon: %v", msg.Kind)
		}
	}
}