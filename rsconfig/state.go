// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hammsvietro/redstone/rserr"
	"github.com/vmihailenco/msgpack/v5"
)

// redstoneDir is the directory under the user's home holding the two
// pieces of durable, user-scoped state: ServerConfig and AuthState.
const redstoneDir = ".redstone"

const (
	serverConfigFileName = "server_config"
	authFileName         = "auth"
)

// ServerConfig is the process-wide remote server address, written by
// the `server-config` CLI command and read at the start of every
// operation that talks HTTP.
type ServerConfig struct {
	Host  string `msgpack:"host"`
	Port  int    `msgpack:"port"`
	HTTPS bool   `msgpack:"https"`
}

// BaseURL renders the scheme+host+port this config describes, ready
// to prefix onto an API path.
func (c ServerConfig) BaseURL() string {
	scheme := "http"
	if c.HTTPS {
		scheme = "https"
	}
	return scheme + "://" + c.Host + ":" + strconv.Itoa(c.Port)
}

// StreamAddress renders the host:port of the stream-socket transfer
// port, one above the HTTP control-plane port. The reference
// implementation hardcodes a single well-known pair of ports for its
// one self-hosted server; this keeps that convention rather than
// growing ServerConfig a second port field for a detail the user never
// configures directly.
func (c ServerConfig) StreamAddress() string {
	return c.Host + ":" + strconv.Itoa(c.Port+1)
}

// AuthState is the opaque session token persisted after a successful
// login; the daemon sends it as the Cookie header of every subsequent
// HTTP request.
type AuthState struct {
	SessionToken string `msgpack:"session_token"`
}

// IsEmpty reports whether no session has ever been established.
func (a AuthState) IsEmpty() bool { return a.SessionToken == "" }

// redstoneHomeDir returns <home>/.redstone, creating it if absent.
func redstoneHomeDir() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, redstoneDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", rserr.IO(err)
	}
	return dir, nil
}

// ServerConfigPath returns <home>/.redstone/server_config.
func ServerConfigPath() (string, error) {
	dir, err := redstoneHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, serverConfigFileName), nil
}

// AuthPath returns <home>/.redstone/auth.
func AuthPath() (string, error) {
	dir, err := redstoneHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, authFileName), nil
}

// LoadServerConfig reads the persisted ServerConfig. A missing file
// surfaces as NoServerConfigFound, matching the error taxonomy's
// dedicated kind for "run server-config first".
func LoadServerConfig() (ServerConfig, error) {
	path, err := ServerConfigPath()
	if err != nil {
		return ServerConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ServerConfig{}, rserr.New(rserr.KindNoServerConfigFound)
		}
		return ServerConfig{}, rserr.IO(err)
	}
	var cfg ServerConfig
	if err := msgpack.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, rserr.Serde(err)
	}
	return cfg, nil
}

// SaveServerConfig persists cfg, overwriting any previous value.
func SaveServerConfig(cfg ServerConfig) error {
	path, err := ServerConfigPath()
	if err != nil {
		return err
	}
	return saveMsgpack(path, cfg)
}

// LoadAuth reads the persisted AuthState. A missing file is reported
// as an empty AuthState rather than an error — "never logged in" is a
// normal, expected condition (the caller folds that into
// NotAuthenticated when a token is actually required).
func LoadAuth() (AuthState, error) {
	path, err := AuthPath()
	if err != nil {
		return AuthState{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AuthState{}, nil
		}
		return AuthState{}, rserr.IO(err)
	}
	if len(data) == 0 {
		return AuthState{}, nil
	}
	var auth AuthState
	if err := msgpack.Unmarshal(data, &auth); err != nil {
		return AuthState{}, rserr.Serde(err)
	}
	return auth, nil
}

// SaveAuth persists auth, overwriting any previous value. Called only
// after a successful login — a failed login must never touch this
// file, so callers should not call SaveAuth speculatively.
func SaveAuth(auth AuthState) error {
	path, err := AuthPath()
	if err != nil {
		return err
	}
	return saveMsgpack(path, auth)
}

func saveMsgpack(path string, v any) error {
	buf := &bytes.Buffer{}
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return rserr.Serde(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rserr.IO(err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return rserr.IO(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rserr.IO(err)
	}
	return nil
}