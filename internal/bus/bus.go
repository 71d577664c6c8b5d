/*
 * slaprint - In-process command bus wiring
 *
 * Copyright 2026, slaprint contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package bus connects the host sequencer to the motion controller
// over the same fixed-width command-frame wire both sides speak
// (spec.md §6), even though SPEC_FULL.md's overview runs both as
// goroutines in one process rather than across a real two-wire bus.
// Pair uses net.Pipe — a full-duplex in-memory net.Conn — as the
// io.ReadWriter mc/transport.Bus already expects, so no special-casing
// of the in-process deployment leaks into mc/transport or hs/sequencer.
// Line is the interrupt-line mailbox: the same "small mailbox struct,
// not a condition variable" idiom SPEC_FULL.md §5 calls for, grounded
// on the teacher's master.Packet delivery channel.
package bus

import (
	"net"
	"sync/atomic"

	"github.com/ldowney/slaprint/mc/frame"
	"github.com/ldowney/slaprint/mc/status"
)

// Line implements mc/transport.InterruptLine and lets the host side
// observe edges without polling: Assert delivers a non-blocking
// notification on Notify's channel, coalescing bursts the way a level
// line naturally would (a host that is slow to drain only ever sees
// "an interrupt happened," never a backlog of duplicates).
type Line struct {
	asserted atomic.Bool
	notify   chan struct{}
}

// NewLine returns an initially-deasserted Line.
func NewLine() *Line {
	return &Line{notify: make(chan struct{}, 1)}
}

// Assert is called by mc/transport.Bus.RaiseInterrupt.
func (l *Line) Assert() {
	l.asserted.Store(true)
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Deassert is called by mc/transport.Bus.RaiseInterrupt after the
// pulse duration.
func (l *Line) Deassert() {
	l.asserted.Store(false)
}

// Notify returns the channel hs/sequencer selects on to learn a
// motion batch completed or the MC raised an error.
func (l *Line) Notify() <-chan struct{} { return l.notify }

// Pair returns the MC-side connection (for mc/transport.New) and the
// host-side Conn (for hs/sequencer), joined by an in-memory full
// duplex pipe, plus the interrupt Line both ends share.
func Pair() (mcConn net.Conn, host *Conn, irq *Line) {
	a, b := net.Pipe()
	return a, &Conn{conn: b}, NewLine()
}

// Conn is the host side's view of the bus: write a batch of frames,
// read the one-byte status register.
type Conn struct {
	conn net.Conn
}

// WriteFrame sends one encoded command frame.
func (c *Conn) WriteFrame(f frame.Frame) error {
	b := frame.Encode(f)
	_, err := c.conn.Write(b[:])
	return err
}

// WriteFrames sends a batch of frames in order, stopping at the first
// write error.
func (c *Conn) WriteFrames(frames []frame.Frame) error {
	for _, f := range frames {
		if err := c.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// ReadStatus writes the status-register read address and returns the
// single status byte the MC responds with (spec.md §6: "Read: one
// byte, the current status code").
func (c *Conn) ReadStatus() (status.Code, error) {
	if _, err := c.conn.Write([]byte{frame.StatusReg}); err != nil {
		return 0, err
	}
	var b [1]byte
	if _, err := c.conn.Read(b[:]); err != nil {
		return 0, err
	}
	return status.Code(b[0]), nil
}

// Close tears down the host side of the pipe.
func (c *Conn) Close() error { return c.conn.Close() }
