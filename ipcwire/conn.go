// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package ipcwire

import (
	"context"
	"net"
	"time"

	"github.com/hammsvietro/redstone/rserr"
)

// Conn wraps a net.Conn with context-aware, deadline-scoped
// WriteMessage/ReadMessage calls, mirroring the reference client's
// own pattern of deriving a deadline from a context and a timeout
// before every blocking call.
type Conn struct {
	net.Conn
}

// NewConn wraps an established connection.
func NewConn(c net.Conn) *Conn { return &Conn{Conn: c} }

// Write sends m, with the connection's deadline set from ctx (or
// timeout, whichever is sooner) for the duration of the write.
func (c *Conn) Write(ctx context.Context, m Message, timeout time.Duration) error {
	if err := c.setDeadline(ctx, timeout); err != nil {
		return err
	}
	defer c.Conn.SetDeadline(time.Time{})
	return WriteMessage(c.Conn, m)
}

// Read receives one message, with the connection's deadline set from
// ctx (or timeout, whichever is sooner) for the duration of the read.
// A deadline exceeded error is reported as ConnectionTimeout, matching
// the reference implementation's differentiated-timeout behaviour
// (2 minutes for confirmation prompts, 5 seconds for operational
// ACKs — callers choose timeout accordingly).
func (c *Conn) Read(ctx context.Context, timeout time.Duration) (Message, error) {
	if err := c.setDeadline(ctx, timeout); err != nil {
		return Message{}, err
	}
	defer c.Conn.SetDeadline(time.Time{})
	return ReadMessage(c.Conn)
}

func (c *Conn) setDeadline(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.Conn.SetDeadline(deadline); err != nil {
		return rserr.IO(err)
	}
	return nil
}