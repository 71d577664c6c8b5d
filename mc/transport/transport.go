/*
 * slaprint - Command transport (bus slave)
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

// Package transport implements the MC side of the command bus (spec.md
// §4.1, §6): a byte stream reader that feeds mc/cmdbuf, a one-byte
// status register a host read returns, and the 50ms low-pulse
// interrupt line. Grounded on the teacher's telnet package (a
// goroutine reading a net.Conn and forwarding to a mailbox channel)
// generalized from a TCP listener to an arbitrary io.ReadWriter, since
// the wire here is a fixed-format byte bus rather than a text
// protocol.
package transport

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ldowney/slaprint/internal/debugflags"
	"github.com/ldowney/slaprint/mc/cmdbuf"
	"github.com/ldowney/slaprint/mc/frame"
	"github.com/ldowney/slaprint/mc/status"
)

// component is this package's debugflags.Register/Enabled key.
const component = "transport"

func init() {
	debugflags.Register(component)
}

// interruptPulse is the duration of the low pulse the interrupt line
// holds to signal the host (spec.md §4.10).
const interruptPulse = 50 * time.Millisecond

// InterruptLine is the seam to whatever asserts the physical
// interrupt signal (a GPIO pin in a real deployment; a test double or
// internal/bus peer otherwise).
type InterruptLine interface {
	Assert()
	Deassert()
}

// Bus reads bytes from an io.ReadWriter and feeds them to a cmdbuf,
// answering a status-register read with the current status byte, and
// asserting the interrupt line on request.
type Bus struct {
	conn io.ReadWriter
	buf  *cmdbuf.CmdBuf
	irq  InterruptLine
	log  *slog.Logger

	mu     sync.Mutex
	status status.Code

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New returns a Bus reading conn into buf and driving irq.
func New(conn io.ReadWriter, buf *cmdbuf.CmdBuf, irq InterruptLine, log *slog.Logger) *Bus {
	return &Bus{
		conn:     conn,
		buf:      buf,
		irq:      irq,
		log:      log,
		shutdown: make(chan struct{}),
	}
}

// SetStatus updates the byte a host read of the status register will
// return. Called by the mainline after each dispatch.
func (b *Bus) SetStatus(c status.Code) {
	b.mu.Lock()
	b.status = c
	b.mu.Unlock()
}

// Start launches the read-loop goroutine (the transport ISR of
// SPEC_FULL.md §5).
func (b *Bus) Start() {
	b.wg.Add(1)
	go b.readLoop()
}

// Stop signals the read-loop to exit and waits for it.
func (b *Bus) Stop() {
	close(b.shutdown)
	b.wg.Wait()
}

func (b *Bus) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, 1)
	for {
		select {
		case <-b.shutdown:
			return
		default:
		}

		n, err := b.conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				b.log.Error("transport read failed", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		if buf[0] == frame.StatusReg {
			b.writeStatus()
			continue
		}
		if debugflags.Enabled(component, "FRAME") {
			b.log.Debug("frame byte received", "byte", buf[0])
		}
		b.buf.Intake(buf[0])
	}
}

func (b *Bus) writeStatus() {
	b.mu.Lock()
	c := b.status
	b.mu.Unlock()

	if _, err := b.conn.Write([]byte{byte(c)}); err != nil {
		b.log.Error("transport status write failed", "error", err)
	}
}

// RaiseInterrupt blocks for interruptPulse asserting the interrupt
// line low, as MotorController::GenerateInterrupt does. Callers
// invoke this from the mainline in response to an InterruptRequested
// event, never from the DDA or load/exec stages.
func (b *Bus) RaiseInterrupt() {
	b.irq.Assert()
	time.Sleep(interruptPulse)
	b.irq.Deassert()
}
