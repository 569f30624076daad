// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsindex

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/hammsvietro/redstone/rserr"
	"github.com/vmihailenco/msgpack/v5"
)

// indexSubdir and indexFileName together name the on-disk location of
// an IndexFile relative to its backup root: <root>/.rs/index.
const (
	indexSubdir   = ".rs"
	indexFileName = "index"
)

// PathFor returns the absolute path of the index file for a given
// backup root.
func PathFor(root string) string {
	return filepath.Join(root, indexSubdir, indexFileName)
}

// Encode serialises idx deterministically: map keys are sorted so
// that encoding the same IndexFile twice always yields identical
// bytes, which is what makes decode(encode(idx)) == idx meaningful
// independent of Go map iteration order.
func Encode(idx *IndexFile) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(idx); err != nil {
		return nil, rserr.Serde(err)
	}
	return buf.Bytes(), nil
}

// Decode deserialises bytes produced by Encode.
func Decode(data []byte) (*IndexFile, error) {
	var idx IndexFile
	if err := msgpack.Unmarshal(data, &idx); err != nil {
		return nil, rserr.Serde(err)
	}
	return &idx, nil
}

// Load reads and decodes the index file at path. An empty file is
// treated as "no backup tracked here".
func Load(path string) (*IndexFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rserr.Detailf(rserr.KindBackupDoesntExist, "%s", path)
		}
		return nil, rserr.IO(err)
	}
	if len(data) == 0 {
		return nil, rserr.Detailf(rserr.KindBackupDoesntExist, "%s", path)
	}
	return Decode(data)
}

// Save encodes idx and writes it to path, creating parent directories
// as needed. The write goes to a sibling temp file and is renamed
// into place, which is atomic on the same filesystem — a strict
// improvement over truncate-in-place that the spec explicitly leaves
// optional.
func Save(path string, idx *IndexFile) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rserr.IO(err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return rserr.IO(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rserr.IO(err)
	}
	return nil
}