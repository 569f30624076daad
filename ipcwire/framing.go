// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package ipcwire

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/hammsvietro/redstone/rserr"
	"github.com/vmihailenco/msgpack/v5"
)

// wrapIOErr classifies a raw I/O error: a timed-out network operation
// becomes ConnectionTimeout, matching the differentiated-timeout
// behaviour the dialogue state machine relies on; anything else is a
// plain IOError.
func wrapIOErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return rserr.New(rserr.KindConnectionTimeout)
	}
	return rserr.IO(err)
}

// maxFrameSize guards against a corrupt or hostile length prefix
// causing an unbounded allocation.
const maxFrameSize = 64 * 1024 * 1024

// WriteFrame encodes v with sorted map keys and writes it as a single
// frame: a 4-byte big-endian length prefix followed by exactly that
// many bytes of payload. It is generic so both the client<->daemon
// IPC plane (Message) and the stream-socket transfer plane (their own
// tagged type) share one framing implementation.
func WriteFrame(w io.Writer, v any) error {
	payload, err := encodeAny(v)
	if err != nil {
		return err
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return wrapIOErr(err)
	}
	if _, err := w.Write(payload); err != nil {
		return wrapIOErr(err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r into v: a 4-byte length
// prefix followed by that many bytes, decoded with msgpack. It never
// short reads — io.ReadFull is used for both the header and the body.
func ReadFrame(r io.Reader, v any) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return wrapIOErr(err)
	}
	length := binary.BigEndian.Uint32(header)
	if length > maxFrameSize {
		return rserr.Detailf(rserr.KindSerde, "frame of %d bytes exceeds maximum of %d", length, maxFrameSize)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return wrapIOErr(err)
		}
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return rserr.Serde(err)
	}
	return nil
}

func encodeAny(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, rserr.Serde(err)
	}
	return data, nil
}

// WriteMessage writes an IPC-plane Message as a single frame.
func WriteMessage(w io.Writer, m Message) error {
	return WriteFrame(w, &m)
}

// ReadMessage reads a single IPC-plane Message frame.
func ReadMessage(r io.Reader) (Message, error) {
	var m Message
	if err := ReadFrame(r, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}