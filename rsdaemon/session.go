// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package rsdaemon

import (
	"context"
	"time"

	"github.com/hammsvietro/redstone/fsscan"
	"github.com/hammsvietro/redstone/ipcwire"
)

// confirmationTimeout and ackTimeout are the two idle periods the
// daemon tolerates on a read, per the spec's differentiated timeout
// requirement: a human answering a confirmation prompt gets much
// longer than a client mechanically ACKing a progress update.
const (
	confirmationTimeout = 2 * time.Minute
	ackTimeout          = 5 * time.Second
)

// session wraps one accepted IPC connection with the write/ack/confirm
// primitives every operation handler needs, so handlers read as a
// straight-line script of the S0-S4 dialogue instead of repeating
// framing and timeout bookkeeping.
type session struct {
	ctx  context.Context
	conn *ipcwire.Conn
}

// confirm sends a ConfirmationRequest carrying message and waits (up
// to confirmationTimeout) for the client's ConfirmationReply.
func (s *session) confirm(message string) (bool, error) {
	if err := s.conn.Write(s.ctx, ipcwire.ConfirmationRequest(message), ackTimeout); err != nil {
		return false, err
	}
	reply, err := s.conn.Read(s.ctx, confirmationTimeout)
	if err != nil {
		return false, err
	}
	return reply.HasAccepted, nil
}

// sendProgressAck sends a single FileActionProgress and waits for the
// client's ACK Response (keep_connection=true, no error), per S1/S3 of
// the dialogue state machine.
func (s *session) sendProgressAck(p fsscan.Progress) error {
	if err := s.conn.Write(s.ctx, ipcwire.FileActionProgress(p), ackTimeout); err != nil {
		return err
	}
	_, err := s.conn.Read(s.ctx, ackTimeout)
	return err
}

// terminal sends the operation's final Response and closes the
// dialogue (keep_connection is always false for a terminal response).
func (s *session) terminal(message string, err error) error {
	return s.conn.Write(s.ctx, ipcwire.Response(message, false, err), ackTimeout)
}

// progressPump decouples a CPU-bound producer (the hasher, or the
// transfer loops) from the IPC writer: Emit never blocks the caller.
// The channel is bounded at 64 slots and drops the oldest queued
// update on overflow, per §5's backpressure policy; the final terminal
// response is still authoritative regardless of any progress packets
// lost along the way.
type progressPump struct {
	ch    chan fsscan.Progress
	errCh chan error
	done  chan struct{}
}

func newProgressPump(sess *session) *progressPump {
	p := &progressPump{
		ch:    make(chan fsscan.Progress, 64),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
	go p.run(sess)
	return p
}

func (p *progressPump) run(sess *session) {
	defer close(p.done)
	for msg := range p.ch {
		if err := sess.sendProgressAck(msg); err != nil {
			select {
			case p.errCh <- err:
			default:
			}
			for range p.ch {
				// drain without sending: the connection is already broken.
			}
			return
		}
	}
}

// Emit enqueues a progress update, dropping the oldest queued one if
// the pump is falling behind rather than blocking the producer.
func (p *progressPump) Emit(msg fsscan.Progress) {
	select {
	case p.ch <- msg:
		return
	default:
	}
	select {
	case <-p.ch:
	default:
	}
	select {
	case p.ch <- msg:
	default:
	}
}

// Close signals no more progress will be emitted and waits for the
// pump goroutine to finish delivering what's queued.
func (p *progressPump) Close() {
	close(p.ch)
	<-p.done
}

// Err returns the first IPC error the pump encountered while flushing
// progress, if any.
func (p *progressPump) Err() error {
	select {
	case err := <-p.errCh:
		return err
	default:
		return nil
	}
}