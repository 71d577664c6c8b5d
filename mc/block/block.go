/*
 * slaprint - Planning block ring
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

// Package block implements the planning-block ring of spec.md §3 and
// design note §9: a fixed-size doubly-linked ring represented as a
// plain array, where "next"/"prev" are (index+1)%N and
// (index-1+N)%N rather than pointers. Ring linkage is a relation, not
// ownership; GetWriteBuffer/QueueWriteBuffer/GetRunBuffer/FreeRunBuffer
// below mirror the teacher's channel-ring bookkeeping style
// (emu/sys_channel's chanCtl array) and the original Ember firmware's
// PlannerBufferPool.
package block

// State is a planning block's lifecycle stage.
type State int

const (
	Empty State = iota
	Loading
	Queued
	Pending
	Running
)

// MoveType selects which runtime dispatch a block uses.
type MoveType int

const (
	MoveNull MoveType = iota
	MoveAcceleratedLine
)

// MoveState is the executor's sub-state while running a block.
type MoveState int

const (
	Off MoveState = iota
	New
	Run
	Run2
	Head
	Body
	Tail
	Skip
)

// Axis selects which of the two single-axis moves a block carries.
type Axis int

const (
	AxisZ Axis = iota
	AxisR
)

// Block is one accelerated-line move held in the planner ring.
type Block struct {
	State     State
	MoveType  MoveType
	MoveState MoveState

	Axis      Axis
	Direction int8 // +1 or -1
	Target    float64

	Length     float64
	HeadLength float64
	BodyLength float64
	TailLength float64

	EntryVelocity  float64
	CruiseVelocity float64
	ExitVelocity   float64

	EntryVMax       float64
	CruiseVMax      float64
	ExitVMax        float64
	DeltaVMax       float64
	BrakingVelocity float64

	Jerk          float64
	ReciprocalJerk float64
	CubeRootJerk   float64

	Replannable bool
}

func (b *Block) clear() {
	*b = Block{}
}

// Ring holds the fixed-size power-of-two pool of planning blocks plus
// the three independent cursor indices: the next block a writer may
// claim, the next block queued for running, and the block currently
// executing.
type Ring struct {
	blocks []Block

	writeIdx int // GetWriteBuffer cursor
	queueIdx int // QueueWriteBuffer cursor
	runIdx   int // GetRunBuffer/FreeRunBuffer cursor

	available int
}

// NewRing returns a Ring of size blocks, all Empty. size must be a power
// of two >= 8 (spec.md §3).
func NewRing(size int) *Ring {
	return &Ring{blocks: make([]Block, size), available: size}
}

// Size returns the ring's fixed capacity.
func (r *Ring) Size() int { return len(r.blocks) }

func (r *Ring) next(i int) int { return (i + 1) % len(r.blocks) }
func (r *Ring) prev(i int) int { return (i - 1 + len(r.blocks)) % len(r.blocks) }

// At returns a pointer to the block at ring index i.
func (r *Ring) At(i int) *Block { return &r.blocks[i] }

// Next returns the ring index following i.
func (r *Ring) Next(i int) int { return r.next(i) }

// Prev returns the ring index preceding i.
func (r *Ring) Prev(i int) int { return r.prev(i) }

// WriteIndex returns the current write cursor.
func (r *Ring) WriteIndex() int { return r.writeIdx }

// QueueIndex returns the current queue cursor (the index following
// the last block committed by QueueWriteBuffer).
func (r *Ring) QueueIndex() int { return r.queueIdx }

// RunIndex returns the current run cursor.
func (r *Ring) RunIndex() int { return r.runIdx }

// Available reports how many blocks are Empty and claimable.
func (r *Ring) Available() int { return r.available }

// GetWriteBuffer claims the next Empty block for the writer (the
// planner's QueueLine). It returns the block index and ok=false if
// the write cursor's block is not Empty (the ring is full).
func (r *Ring) GetWriteBuffer() (int, bool) {
	idx := r.writeIdx
	if r.blocks[idx].State != Empty {
		return 0, false
	}
	r.blocks[idx].clear()
	r.blocks[idx].State = Loading
	r.available--
	r.writeIdx = r.next(idx)
	return idx, true
}

// QueueWriteBuffer commits the block at idx: moveType is set here,
// the only point at which it becomes visible to the executor
// (spec.md §3's "loading -> queued is the only point moveType is
// committed"). The state transition to Queued is a release: callers
// must have finished writing every other field first.
func (r *Ring) QueueWriteBuffer(idx int, moveType MoveType) {
	b := &r.blocks[idx]
	b.MoveType = moveType
	b.MoveState = New
	b.State = Queued
	r.queueIdx = r.next(idx)
}

// GetRunBuffer returns the index of the block the executor should be
// running, promoting a Queued or Pending block to Running on first
// call, and returning the same index on repeated calls while it is
// still Running. ok is false if there is nothing to run.
func (r *Ring) GetRunBuffer() (int, bool) {
	idx := r.runIdx
	switch r.blocks[idx].State {
	case Queued, Pending:
		r.blocks[idx].State = Running
	case Running:
	default:
		return 0, false
	}
	return idx, true
}

// FreeRunBuffer releases the current run buffer back to the pool and
// advances the run cursor, promoting the next block to Pending if it
// is already Queued.
func (r *Ring) FreeRunBuffer() {
	idx := r.runIdx
	r.blocks[idx].clear()
	r.available++
	r.runIdx = r.next(idx)
	if r.blocks[r.runIdx].State == Queued {
		r.blocks[r.runIdx].State = Pending
	}
}

// Reset empties every block back to Empty and rewinds all three
// cursors to index 0, as MC_CLEAR does to the planning buffer pool
// (spec.md §4.10, §5's cancellation semantics).
func (r *Ring) Reset() {
	for i := range r.blocks {
		r.blocks[i].clear()
	}
	r.writeIdx, r.queueIdx, r.runIdx = 0, 0, 0
	r.available = len(r.blocks)
}
