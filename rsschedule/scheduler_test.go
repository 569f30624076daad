// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsschedule

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/rsindex"
)

type countingPusher struct {
	calls atomic.Int32
}

func (p *countingPusher) PushHeadless(ctx context.Context, root string) error {
	p.calls.Add(1)
	return nil
}

func trackRoot(t *testing.T, dataDir, root string, cfg rsindex.BackupConfig) {
	t.Helper()
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	idx := rsindex.New(
		rsindex.BackupIdentity{ID: "b1", Name: "test"},
		cfg,
		rsindex.Update{ID: "u1", Hash: "h1"},
		fsscan.Tree{Root: root},
	)
	if err := rsindex.Save(rsindex.PathFor(root), idx); err != nil {
		t.Fatal(err)
	}
	if err := rsindex.RegisterRoot(dataDir, root); err != nil {
		t.Fatal(err)
	}
}

func TestSchedulerArmsCronEntryFromRegistry(t *testing.T) {
	dataDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "backup")
	trackRoot(t, dataDir, root, rsindex.BackupConfig{SyncEvery: "* * * * *"})

	pusher := &countingPusher{}
	sched := New(slog.Default(), pusher, dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(sched.cronRunner.Entries()) != 1 {
		t.Fatalf("expected one cron entry, got %d", len(sched.cronRunner.Entries()))
	}
}

func TestSchedulerSkipsRootWithNoSyncConfig(t *testing.T) {
	dataDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "backup")
	trackRoot(t, dataDir, root, rsindex.BackupConfig{})

	pusher := &countingPusher{}
	sched := New(slog.Default(), pusher, dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(sched.cronRunner.Entries()) != 0 {
		t.Fatalf("expected no cron entries, got %d", len(sched.cronRunner.Entries()))
	}
	if len(sched.watchers) != 0 {
		t.Fatalf("expected no watchers, got %d", len(sched.watchers))
	}
}

func TestSchedulerWatchTriggersPushOnFileChange(t *testing.T) {
	dataDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "backup")
	trackRoot(t, dataDir, root, rsindex.BackupConfig{Watch: true})

	pusher := &countingPusher{}
	sched := New(slog.Default(), pusher, dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "new.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if pusher.calls.Load() > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected watch-triggered push within deadline")
}

func TestParseCronExprRejectsInvalidExpression(t *testing.T) {
	if err := ParseCronExpr(""); err != nil {
		t.Fatalf("empty expression should be valid (disables sync): %v", err)
	}
	if err := ParseCronExpr("not a cron expr"); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
	if err := ParseCronExpr("*/5 * * * *"); err != nil {
		t.Fatalf("valid expression should parse: %v", err)
	}
}
