// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsconfig

import (
	"os"

	"github.com/hammsvietro/redstone/rserr"
)

// homeDir resolves the current user's home directory via the standard
// OS convention, folding the stdlib's own error into the taxonomy's
// NoHomeDir kind so every caller handles "no home directory" the same
// way regardless of platform.
func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", rserr.New(rserr.KindNoHomeDir)
	}
	return home, nil
}