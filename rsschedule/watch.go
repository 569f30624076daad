// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsschedule

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces a burst of filesystem events (a save in an
// editor is rarely a single write) into one push, the way the
// reference file-watching examples in this codebase's dependency
// corpus debounce before recomputing derived state.
const debounceDelay = 500 * time.Millisecond

// indexSubtreeName mirrors fsscan's own constant; duplicated rather
// than imported to keep this package's dependency on fsscan to zero —
// it only needs to recognise the one excluded subtree by name.
const indexSubtreeName = ".rs"

// rootWatcher recursively watches a backup root (fsnotify does not
// recurse on its own) and invokes onChange, debounced, whenever a
// write/create/remove/rename touches any watched path.
type rootWatcher struct {
	log      *slog.Logger
	root     string
	watcher  *fsnotify.Watcher
	onChange func()
}

func newRootWatcher(log *slog.Logger, root string, onChange func()) (*rootWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	rw := &rootWatcher{log: log, root: root, watcher: w, onChange: onChange}
	if err := rw.addTree(root); err != nil {
		w.Close()
		return nil, err
	}
	return rw, nil
}

// addTree walks root, registering a watch on every directory except
// the excluded .rs index subtree. Missing or unreadable subtrees are
// skipped rather than failing the whole watch setup, matching the
// teacher's own walkAndWatch's best-effort posture.
func (rw *rootWatcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !fi.IsDir() {
			return nil
		}
		if path == filepath.Join(rw.root, indexSubtreeName) {
			return filepath.SkipDir
		}
		if err := rw.watcher.Add(path); err != nil {
			rw.log.Warn("failed to watch directory", "dir", path, "err", err)
		}
		return nil
	})
}

// run drains fsnotify events until ctx is cancelled, debouncing bursts
// of activity into a single onChange call per quiet period. Newly
// created directories are added to the watch set as they appear so a
// later write inside them is not missed.
func (rw *rootWatcher) run(ctx context.Context) {
	defer rw.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = rw.addTree(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}
			timerC = timer.C
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.log.Warn("watch error", "root", rw.root, "err", err)
		case <-timerC:
			rw.onChange()
			timerC = nil
		}
	}
}
