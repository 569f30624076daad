// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rstransfer

import (
	"context"
	"net"
	"time"

	"github.com/hammsvietro/redstone/ipcwire"
)

// chunkTimeout bounds how long a single chunk round trip may take;
// generous enough for a 14 MiB chunk over a slow link, short enough
// that a genuinely dead peer is detected well before a human gives up
// waiting.
const chunkTimeout = 30 * time.Second

// SocketConn is the StreamConn implementation used by a real daemon
// or CLI against the stream-socket transport: a plain net.Conn framed
// with ipcwire's generic length-prefixed msgpack framing, the same
// wire format the IPC control plane uses but carrying StreamMessage
// and StreamResponse instead of ipcwire.Message.
type SocketConn struct {
	conn net.Conn
}

// NewSocketConn wraps an already-dialled/accepted net.Conn.
func NewSocketConn(conn net.Conn) *SocketConn {
	return &SocketConn{conn: conn}
}

func (s *SocketConn) SendMessage(m StreamMessage) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(chunkTimeout)); err != nil {
		return err
	}
	return ipcwire.WriteFrame(s.conn, &m)
}

func (s *SocketConn) RecvResponse() (StreamResponse, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(chunkTimeout)); err != nil {
		return StreamResponse{}, err
	}
	var resp StreamResponse
	if err := ipcwire.ReadFrame(s.conn, &resp); err != nil {
		return StreamResponse{}, err
	}
	return resp, nil
}

// RecvMessage reads a single StreamMessage, for the receiving (server)
// side of the stream socket; the daemon itself only uses the sending
// side.
func (s *SocketConn) RecvMessage() (StreamMessage, error) {
	var m StreamMessage
	if err := ipcwire.ReadFrame(s.conn, &m); err != nil {
		return StreamMessage{}, err
	}
	return m, nil
}

// SendResponse writes a single StreamResponse, used by the server side
// of the stream socket.
func (s *SocketConn) SendResponse(resp StreamResponse) error {
	return ipcwire.WriteFrame(s.conn, &resp)
}

// Close closes the underlying connection.
func (s *SocketConn) Close() error { return s.conn.Close() }

var _ StreamConn = (*SocketConn)(nil)

// contextDialer is satisfied by net.Dialer; kept narrow so tests can
// substitute a fake.
type contextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Dial opens a stream-socket connection to address using dialer.
func Dial(ctx context.Context, dialer contextDialer, network, address string) (*SocketConn, error) {
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewSocketConn(conn), nil
}