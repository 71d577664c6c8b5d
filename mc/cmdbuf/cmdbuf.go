/*
 * slaprint - Command buffer: byte intake and frame assembly
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

// Package cmdbuf implements the command buffer described in spec.md
// §3 and §4.1: a ring of completed 6-byte frames fed one byte at a
// time by the transport ISR and drained by the mainline. It counts
// completed frames rather than raw bytes, and never exposes a
// partial frame.
package cmdbuf

import (
	"sync/atomic"

	"github.com/ldowney/slaprint/mc/frame"
)

// CmdBuf is safe for one writer goroutine (Intake) and one reader
// goroutine (Dequeue/IsFull) to use concurrently without a shared
// mutex, following spec.md §5's single-writer/single-reader rule: the
// only synchronized field is completed, an atomic frame counter.
type CmdBuf struct {
	ring     [][frame.Size]byte
	capacity int // frames

	head int // next frame to dequeue (reader-owned)
	tail int // next free slot to write (writer-owned)

	completed atomic.Int32 // frames available to dequeue

	inProgress    [frame.Size]byte
	inProgressLen int // writer-owned, 0 == at frame boundary
}

// New returns a CmdBuf holding up to capacity complete frames.
func New(capacity int) *CmdBuf {
	return &CmdBuf{
		ring:     make([][frame.Size]byte, capacity),
		capacity: capacity,
	}
}

// IsFull reports whether the buffer holds exactly capacity completed,
// undequeued frames.
func (c *CmdBuf) IsFull() bool {
	return int(c.completed.Load()) >= c.capacity
}

// Intake consumes one byte received from the bus. It implements the
// transport contract of spec.md §4.1:
//   - at a frame boundary, a status-register address byte is dropped;
//   - at a frame boundary, a general-command byte is synthesized into
//     a complete (GeneralReg, cmd, 0,0,0,0) frame and enqueued;
//   - otherwise the byte extends the in-progress frame.
//
// A full command buffer silently discards the new frame-in-progress;
// the caller is expected to observe IsFull and raise ErrorEncountered
// once control returns to the mainline (spec.md §4.1, §7).
func (c *CmdBuf) Intake(b uint8) {
	if c.inProgressLen == 0 {
		switch {
		case b == frame.StatusReg:
			return
		case frame.IsGeneralCommand(b):
			c.enqueue([frame.Size]byte{frame.GeneralReg, b, 0, 0, 0, 0})
			return
		}
	}

	c.inProgress[c.inProgressLen] = b
	c.inProgressLen++
	if c.inProgressLen == frame.Size {
		c.enqueue(c.inProgress)
		c.inProgressLen = 0
	}
}

func (c *CmdBuf) enqueue(raw [frame.Size]byte) {
	if c.IsFull() {
		return
	}
	c.ring[c.tail] = raw
	c.tail = (c.tail + 1) % c.capacity
	c.completed.Add(1)
}

// Dequeue removes and returns the oldest completed frame, in the
// order frames were completed.
func (c *CmdBuf) Dequeue() (frame.Frame, bool) {
	if c.completed.Load() == 0 {
		return frame.Frame{}, false
	}
	raw := c.ring[c.head]
	c.head = (c.head + 1) % c.capacity
	c.completed.Add(-1)
	return frame.Decode(raw), true
}

// Len returns the number of completed, undequeued frames.
func (c *CmdBuf) Len() int {
	return int(c.completed.Load())
}
