// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package fsscan

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/hammsvietro/redstone/rserr"
	ignore "github.com/sabhiram/go-gitignore"
)

// rsIgnoreFileName is the gitignore-style ignore file consulted at
// every directory level during a walk.
const rsIgnoreFileName = ".rsignore"

// indexSubtreeName is the literal subdirectory excluded at the root
// of every walk; it holds this backup's own IndexFile and must never
// be hashed as content.
const indexSubtreeName = ".rs"

// hashBufSize is the buffered-read block size used while hashing file
// contents. The spec notes this choice isn't observable; 1 KiB
// matches the reference implementation.
const hashBufSize = 1024

// Option configures a Walk call.
type Option func(*options)

type options struct {
	progress ProgressFunc
}

// WithProgress registers a callback invoked between files as they are
// hashed. It may be called from the same goroutine as Walk; it must
// return quickly.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

type ignoreLayer struct {
	baseRel string // directory this layer's patterns are rooted at, "" for the scan root
	gi      *ignore.GitIgnore
}

func (l ignoreLayer) matches(relPath string) bool {
	sub := relPath
	if l.baseRel != "" {
		prefix := l.baseRel + "/"
		if relPath == l.baseRel {
			sub = "."
		} else if len(relPath) > len(prefix) && relPath[:len(prefix)] == prefix {
			sub = relPath[len(prefix):]
		} else {
			return false // relPath isn't inside this layer's subtree
		}
	}
	return l.gi.MatchesPath(sub)
}

type candidate struct {
	relPath string
	absPath string
}

// Walk scans root and returns a Tree of every regular file beneath it,
// honouring .rsignore files encountered during descent. root must
// exist and be a directory.
func Walk(root string, opts ...Option) (*Tree, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, rserr.IO(err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rserr.Detailf(rserr.KindInvalidPath, "%s", absRoot)
		}
		return nil, rserr.IO(err)
	}
	if !info.IsDir() {
		return nil, rserr.Detailf(rserr.KindPathCannotBeFile, "%s", absRoot)
	}

	candidates, err := collect(absRoot, "", nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].relPath < candidates[j].relPath })

	records := make([]FileRecord, 0, len(candidates))
	for i, c := range candidates {
		if o.progress != nil {
			o.progress(Progress{
				CurrentFileName: c.relPath,
				Completed:       i,
				Total:           len(candidates),
				Operation:       OpHash,
			})
		}
		digest, size, err := hashFile(c.absPath)
		if err != nil {
			return nil, err
		}
		records = append(records, FileRecord{Path: c.relPath, Digest: digest, Size: size})
	}
	if o.progress != nil && len(candidates) > 0 {
		o.progress(Progress{Completed: len(candidates), Total: len(candidates), Operation: OpHash})
	}

	tree := &Tree{Root: absRoot, Files: records}
	tree.sortInPlace()
	return tree, nil
}

func collect(dirAbs, dirRel string, ignores []ignoreLayer) ([]candidate, error) {
	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		return nil, rserr.IO(err)
	}

	for _, entry := range entries {
		if entry.Name() == rsIgnoreFileName {
			data, err := os.ReadFile(filepath.Join(dirAbs, entry.Name()))
			if err != nil {
				return nil, rserr.IO(err)
			}
			gi := ignore.CompileIgnoreLines(splitLines(string(data))...)
			ignores = append(ignores, ignoreLayer{baseRel: dirRel, gi: gi})
			break
		}
	}

	var out []candidate
	for _, entry := range entries {
		name := entry.Name()
		if name == rsIgnoreFileName {
			continue
		}
		relPath := name
		if dirRel != "" {
			relPath = dirRel + "/" + name
		}

		if entry.IsDir() {
			if dirRel == "" && name == indexSubtreeName {
				continue
			}
			if matchedByAny(ignores, relPath) {
				continue
			}
			children, err := collect(filepath.Join(dirAbs, name), relPath, ignores)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
			continue
		}

		if entry.Type().IsRegular() {
			if matchedByAny(ignores, relPath) {
				continue
			}
			out = append(out, candidate{relPath: relPath, absPath: filepath.Join(dirAbs, name)})
		}
		// symlinks and other non-regular entries are not part of the
		// regular-file content model and are skipped.
	}
	return out, nil
}

func matchedByAny(ignores []ignoreLayer, relPath string) bool {
	for _, layer := range ignores {
		if layer.matches(relPath) {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

// IsPathCannotBeFile reports whether err is the error Walk returns
// when its root argument names a file rather than a directory.
func IsPathCannotBeFile(err error) bool {
	return rserr.Is(err, rserr.KindPathCannotBeFile)
}

func hashFile(path string) (digest string, size uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, rserr.IO(err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, rserr.IO(err)
	}
	return hex.EncodeToString(h.Sum(nil)), uint64(n), nil
}