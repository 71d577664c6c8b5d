/*
 * slaprint - Deferred event queue
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

// Package eventqueue implements the deferred event queue of spec.md
// §3/§4.10: a fixed-size ring of (event, data) pairs raised while the
// MC state machine cannot yet act on them (a motion or homing state
// refusing a new move/home/setting/interrupt/disable request), drained
// one at a time on the next ReadyForAction entry. Modeled as a plain
// array with modular-arithmetic cursors, the same index-ring idiom
// mc/block uses rather than a linked list, since the queue only ever
// needs FIFO push/pop and a fixed worst-case depth (spec.md never
// requires more outstanding deferred events than state-machine inputs
// the mainline can receive between two ReadyForAction entries).
package eventqueue

import "github.com/ldowney/slaprint/mc/cmdmap"

// Entry is one deferred (event, data) pair.
type Entry struct {
	Event cmdmap.Event
	Data  cmdmap.Mapped
}

// Queue is a fixed-capacity FIFO ring of deferred Entries.
type Queue struct {
	entries []Entry
	head    int
	count   int
}

// New returns a Queue holding up to capacity entries.
func New(capacity int) *Queue {
	return &Queue{entries: make([]Entry, capacity)}
}

// Full reports whether the queue has no room for another entry.
func (q *Queue) Full() bool {
	return q.count == len(q.entries)
}

// Empty reports whether the queue holds no entries.
func (q *Queue) Empty() bool {
	return q.count == 0
}

// Len returns the number of queued entries.
func (q *Queue) Len() int { return q.count }

// Push appends an entry, returning false if the queue is already full
// (the caller reports status.EventQueueFull per spec.md §7).
func (q *Queue) Push(e Entry) bool {
	if q.Full() {
		return false
	}
	tail := (q.head + q.count) % len(q.entries)
	q.entries[tail] = e
	q.count++
	return true
}

// Pop removes and returns the oldest entry, in FIFO order.
func (q *Queue) Pop() (Entry, bool) {
	if q.Empty() {
		return Entry{}, false
	}
	e := q.entries[q.head]
	q.head = (q.head + 1) % len(q.entries)
	q.count--
	return e, true
}

// Clear empties the queue, used by ClearRequested (spec.md §4.10).
func (q *Queue) Clear() {
	q.head = 0
	q.count = 0
}
