// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/hammsvietro/redstone/rserr"
)

// rootLocks enforces the spec's "one operation at a time per backup
// root" rule with a fail-fast lock, not a queue: an in-process mutex
// keyed by canonical root path guards concurrent goroutines inside
// this daemon, and a sibling advisory lock file under <root>/.rs/
// guards a second daemon process (or the scheduler racing an
// interactive client) doing the same.
type rootLocks struct {
	mu    sync.Mutex
	inUse map[string]bool
}

func newRootLocks() *rootLocks {
	return &rootLocks{inUse: make(map[string]bool)}
}

// Lock acquires the lock for root, returning an unlock func. It fails
// immediately (rather than waiting) if the root is already held,
// either by this process or, via the lock file, by another.
func (l *rootLocks) Lock(root string) (unlock func(), err error) {
	canon, err := filepath.Abs(root)
	if err != nil {
		return nil, rserr.IO(err)
	}

	l.mu.Lock()
	if l.inUse[canon] {
		l.mu.Unlock()
		return nil, rserr.Detailf(rserr.KindIO, "another operation is already in progress on %s", canon)
	}
	l.inUse[canon] = true
	l.mu.Unlock()

	releaseInProcess := func() {
		l.mu.Lock()
		delete(l.inUse, canon)
		l.mu.Unlock()
	}

	lockPath := filepath.Join(canon, ".rs", "index.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		releaseInProcess()
		return nil, rserr.IO(err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		releaseInProcess()
		if os.IsExist(err) {
			return nil, rserr.Detailf(rserr.KindIO, "another process holds the lock on %s", canon)
		}
		return nil, rserr.IO(err)
	}
	f.Close()

	return func() {
		_ = os.Remove(lockPath)
		releaseInProcess()
	}, nil
}