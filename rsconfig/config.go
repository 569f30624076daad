// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package rsconfig loads daemon process settings from the
// environment and persists the durable, user-scoped state (server
// configuration and auth session) under the home directory.
package rsconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultSocketPath = "/tmp/redstone.sock"
	defaultLogLevel   = "info"
)

// ProcessConfig is the daemon's own runtime configuration, sourced
// from the environment (and, best-effort, a .env file) rather than
// from anything persisted under the home directory.
type ProcessConfig struct {
	LogLevel   string
	SocketPath string
	DataDir    string
}

// Load reads ProcessConfig from the environment. Unlike Config.validate
// in the gateway this config has no required fields — every setting
// has a sane default — so Load cannot fail on missing environment
// variables; it only surfaces a failure to resolve the home directory
// when DataDir needs to fall back to one.
func Load() (ProcessConfig, error) {
	for _, candidate := range []string{".env", "../.env", "../../.env"} {
		_ = godotenv.Load(candidate)
	}

	cfg := ProcessConfig{
		LogLevel:   firstNonEmpty(os.Getenv("REDSTONE_LOG_LEVEL"), defaultLogLevel),
		SocketPath: firstNonEmpty(os.Getenv("REDSTONE_SOCKET_PATH"), defaultSocketPath),
		DataDir:    strings.TrimSpace(os.Getenv("REDSTONE_DATA_DIR")),
	}

	if cfg.DataDir == "" {
		home, err := homeDir()
		if err != nil {
			return ProcessConfig{}, err
		}
		cfg.DataDir = filepath.Join(home, ".redstone")
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}