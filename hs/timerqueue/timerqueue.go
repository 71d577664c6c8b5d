/*
 * slaprint - Host event-loop timer management
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

// Package timerqueue manages the host sequencer's named timers
// (spec.md §5's "Host scheduling model": exposure, pre-exposure delay,
// press-wait, motor-timeout, and temperature polling all "surface as
// events"). Grounded on the teacher's emu/timer.Timer, generalized
// from one hardwired 5ms clock to a small fixed set of independently
// armable one-shot and repeating timers, each still delivering over a
// channel rather than invoking a callback directly — so every firing
// is handled on the sequencer's single event-loop goroutine, exactly
// as emu/timer delivers over a master.Packet channel instead of
// calling back into emu/core.
package timerqueue

import (
	"sync"
	"time"
)

// Kind names one of the sequencer's timers.
type Kind int

const (
	Exposure Kind = iota
	PreExposureDelay
	PressWait
	MotorTimeout
	Temperature
)

func (k Kind) String() string {
	switch k {
	case Exposure:
		return "Exposure"
	case PreExposureDelay:
		return "PreExposureDelay"
	case PressWait:
		return "PressWait"
	case MotorTimeout:
		return "MotorTimeout"
	case Temperature:
		return "Temperature"
	default:
		return "Unknown"
	}
}

// Fired is one timer's expiration notification delivered to the event
// loop. Seq distinguishes a timer that was stopped and re-armed from
// an earlier firing of the same Kind still in flight on the channel.
type Fired struct {
	Kind Kind
	Seq  int
}

// Queue owns the sequencer's timers. All state is guarded by mu;
// firings are delivered asynchronously but queued on a single
// channel the event loop drains.
type Queue struct {
	mu      sync.Mutex
	timers  map[Kind]*time.Timer
	seq     map[Kind]int
	tickers map[Kind]*time.Ticker
	stopCh  map[Kind]chan struct{}
	fired   chan Fired
}

// New returns a Queue whose Fired channel has the given buffer
// capacity (sized to the worst case of every timer firing before one
// event-loop pass drains it).
func New(bufSize int) *Queue {
	return &Queue{
		timers:  make(map[Kind]*time.Timer),
		seq:     make(map[Kind]int),
		tickers: make(map[Kind]*time.Ticker),
		stopCh:  make(map[Kind]chan struct{}),
		fired:   make(chan Fired, bufSize),
	}
}

// Fired returns the channel the sequencer's event loop selects on.
func (q *Queue) Fired() <-chan Fired { return q.fired }

// Start arms (or re-arms) kind as a one-shot timer firing after d.
// Re-arming a still-pending timer stops it first and bumps its
// sequence number.
func (q *Queue) Start(kind Kind, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.timers[kind]; ok {
		t.Stop()
	}
	q.seq[kind]++
	seq := q.seq[kind]
	q.timers[kind] = time.AfterFunc(d, func() {
		q.fired <- Fired{Kind: kind, Seq: seq}
	})
}

// StartRepeating arms kind as a periodic timer firing every d until
// Stop is called (used only for Temperature polling).
func (q *Queue) StartRepeating(kind Kind, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if tk, ok := q.tickers[kind]; ok {
		tk.Stop()
		close(q.stopCh[kind])
	}
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	q.tickers[kind] = ticker
	q.stopCh[kind] = stop

	go func() {
		for {
			select {
			case <-ticker.C:
				q.fired <- Fired{Kind: kind}
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels kind, whether armed as a one-shot or a repeating
// timer. Stopping an unarmed Kind is a no-op.
func (q *Queue) Stop(kind Kind) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.timers[kind]; ok {
		t.Stop()
		delete(q.timers, kind)
	}
	if tk, ok := q.tickers[kind]; ok {
		tk.Stop()
		close(q.stopCh[kind])
		delete(q.tickers, kind)
		delete(q.stopCh, kind)
	}
}

// StopAll cancels every armed timer, e.g. when a print is canceled.
func (q *Queue) StopAll() {
	q.mu.Lock()
	kinds := make([]Kind, 0, len(q.timers)+len(q.tickers))
	for k := range q.timers {
		kinds = append(kinds, k)
	}
	for k := range q.tickers {
		kinds = append(kinds, k)
	}
	q.mu.Unlock()
	for _, k := range kinds {
		q.Stop(k)
	}
}

// Current reports kind's current sequence number, for callers that
// need to discard a Fired notification superseded by a later Start.
func (q *Queue) Current(kind Kind) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq[kind]
}
