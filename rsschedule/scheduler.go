// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package rsschedule implements the scheduled/watched re-synchronisation
// collaborator the spec names under "Out of scope (external
// collaborators)": a cron-driven and an fsnotify-driven push loop, both
// reducing to rsdaemon.Server.PushHeadless, discovering their backup
// roots from the registry rsdaemon writes on every successful track or
// clone.
package rsschedule

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hammsvietro/redstone/rserr"
	"github.com/hammsvietro/redstone/rsindex"
	"github.com/robfig/cron/v3"
)

// pusher is the narrow surface the scheduler needs from the daemon:
// exactly rsdaemon.Server.PushHeadless, kept as an interface so tests
// never need a real daemon.
type pusher interface {
	PushHeadless(ctx context.Context, root string) error
}

// Scheduler discovers tracked roots from the on-disk registry and
// drives a headless push for each one whose BackupConfig asks for it,
// either on a cron schedule or in response to filesystem events.
type Scheduler struct {
	log     *slog.Logger
	push    pusher
	dataDir string

	cronRunner *cron.Cron
	watchers   []*rootWatcher

	mu      sync.Mutex
	started bool
}

// New builds a Scheduler. dataDir is the daemon's data directory
// (holding the root registry); push is normally an *rsdaemon.Server.
func New(log *slog.Logger, push pusher, dataDir string) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log:        log,
		push:       push,
		dataDir:    dataDir,
		cronRunner: cron.New(),
	}
}

// Start reads every registered root's BackupConfig and arms a cron
// entry and/or a filesystem watcher per the reference scheduler's own
// get_jobs/run_stored_jobs split, then returns immediately — both the
// cron runner and the watchers run on their own goroutines until ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	roots, err := rsindex.ListRoots(s.dataDir)
	if err != nil {
		return err
	}
	for _, root := range roots {
		s.arm(ctx, root)
	}

	s.cronRunner.Start()
	go func() {
		<-ctx.Done()
		s.cronRunner.Stop()
	}()
	return nil
}

// arm reads root's current BackupConfig and schedules whichever of
// cron/watch it asks for. A root whose index cannot be loaded (e.g.
// it was untracked since registration) is logged and skipped rather
// than failing the whole scheduler startup.
func (s *Scheduler) arm(ctx context.Context, root string) {
	idx, err := rsindex.Load(rsindex.PathFor(root))
	if err != nil {
		s.log.Warn("skipping scheduler entry for unreadable root", "root", root, "err", err)
		return
	}

	cfg := idx.Config
	if cfg.SyncEvery != "" {
		if _, err := s.cronRunner.AddFunc(cfg.SyncEvery, func() { s.runPush(ctx, root) }); err != nil {
			s.log.Warn("invalid cron expression, skipping", "root", root, "expr", cfg.SyncEvery, "err", err)
		} else {
			s.log.Info("armed cron sync", "root", root, "expr", cfg.SyncEvery)
		}
	}
	if cfg.Watch {
		w, err := newRootWatcher(s.log, root, func() { s.runPush(ctx, root) })
		if err != nil {
			s.log.Warn("failed to start watcher, skipping", "root", root, "err", err)
			return
		}
		s.watchers = append(s.watchers, w)
		go w.run(ctx)
		s.log.Info("armed watch sync", "root", root)
	}
}

// runPush drives one headless push, folding NoChanges (the ordinary
// "nothing to do" outcome on every idle tick) into a debug log instead
// of a warning.
func (s *Scheduler) runPush(ctx context.Context, root string) {
	if err := s.push.PushHeadless(ctx, root); err != nil {
		if rserr.Is(err, rserr.KindNoChanges) {
			s.log.Debug("scheduled push found nothing to sync", "root", root)
			return
		}
		s.log.Warn("scheduled push failed", "root", root, "err", err)
	}
}

// ParseCronExpr validates a cron expression up front (e.g. for the
// `track --sync-every` CLI flag), surfacing a CronParseError rather
// than deferring the failure to the first scheduled tick.
func ParseCronExpr(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return rserr.Detailf(rserr.KindCronParse, "%s", expr)
	}
	return nil
}
