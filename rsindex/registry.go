// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsindex

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hammsvietro/redstone/rserr"
)

// registryFileName names the flat file under the daemon's data
// directory that records every root a track or clone has ever
// succeeded against, so the scheduler can discover them on startup
// without a human re-issuing each command. The reference
// implementation's own job loader (redstone_service::scheduler::
// get_jobs) is a hardcoded stub with a TODO to load from storage;
// this file is that storage.
const registryFileName = "tracked_roots"

// RegisterRoot appends root to the registry at dataDir, deduplicating
// against whatever is already recorded. Safe to call redundantly.
func RegisterRoot(dataDir, root string) error {
	roots, err := ListRoots(dataDir)
	if err != nil {
		return err
	}
	for _, r := range roots {
		if r == root {
			return nil
		}
	}
	roots = append(roots, root)
	return writeRegistry(dataDir, roots)
}

// ListRoots reads every root recorded in the registry at dataDir. A
// missing registry file is reported as an empty list, not an error —
// "no backups tracked yet" is a normal startup state.
func ListRoots(dataDir string) ([]string, error) {
	path := filepath.Join(dataDir, registryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rserr.IO(err)
	}
	var roots []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			roots = append(roots, line)
		}
	}
	return roots, nil
}

func writeRegistry(dataDir string, roots []string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return rserr.IO(err)
	}
	path := filepath.Join(dataDir, registryFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(roots, "\n")+"\n"), 0o644); err != nil {
		return rserr.IO(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rserr.IO(err)
	}
	return nil
}
