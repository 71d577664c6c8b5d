/*
 * slaprint - Segment executor
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

// Package executor implements the forward-difference segment
// execution of spec.md §4.6: walking one planning block's head/body/
// tail sections a fixed-time segment at a time, using two stacked
// quadratic forward differences per section to approximate the
// constant-jerk S-curve without evaluating its cubic velocity profile
// directly at runtime. Ported from
// original_source/AVR/MotorController/Planner.cpp's executeALine
// family.
package executor

import (
	"math"

	"github.com/ldowney/slaprint/mc/block"
	"github.com/ldowney/slaprint/mc/status"
)

const (
	nomSegmentUsec = 5000.0
	minSegmentUsec = 2500.0

	// usecPerMinute converts a duration in minutes (the velocity time
	// base used throughout) to microseconds.
	usecPerMinute = 60e6
)

func usec(minutes float64) float64 { return minutes * usecPerMinute }

func zero(v float64) bool { return math.Abs(v) < 0.0001 }

// sectionState is the executor's position within one section (head,
// body, or tail) of the trapezoid.
type sectionState int

const (
	sectionOff sectionState = iota
	sectionNew
	sectionRun1
	sectionRun2
	sectionRun
)

// moveState is which section of the trapezoid the executor is
// currently running.
type moveState int

const (
	moveOff moveState = iota
	moveHead
	moveBody
	moveTail
	moveSkip
)

// StepGen is the DDA step generator the executor hands each computed
// segment to (mc/stepgen). SetNextSegment arms the next fixed-time
// segment's signed distance in user units (the step generator converts
// it to pulses), direction, and duration; it returns
// status.EAgain if the previous segment is still loaded (the executor
// must retry on its next call) or status.Success once accepted.
// SetNextSegmentNull arms an empty segment, used to keep the loader
// fed when a block turns out to have zero length.
type StepGen interface {
	SetNextSegment(steps float64, direction int8, microseconds float64) status.Code
	SetNextSegmentNull()
}

// Executor runs the head/body/tail sections of whichever block is at
// the run cursor of a block.Ring, one fixed-time segment per call to
// Execute, advancing runtime position and driving a StepGen.
type Executor struct {
	steps StepGen

	move    moveState
	section sectionState

	jerk                               float64
	headLength, bodyLength, tailLength float64
	entryVelocity, cruiseVelocity, exitVelocity float64

	direction int8
	position  float64 // runtime position, in the block's own unit axis
	endpoint  float64 // target position of the running block

	midpointVelocity float64
	moveTime         float64
	segments         float64
	segmentMoveTime  float64
	segmentCount     uint32
	microseconds     float64

	segmentVelocity float64
	forwardDiff1    float64
	forwardDiff2    float64

	parkedForHold bool
	holding       bool // the hold flag of the current Execute call
}

// New returns an Executor that drives steps.
func New(steps StepGen) *Executor {
	return &Executor{steps: steps}
}

// initForwardDiffs seeds the two forward-difference accumulators for
// one quadratic half-section running from velocity t0 to t2 over
// e.segments equal time steps (spec.md §4.6's derivation).
func (e *Executor) initForwardDiffs(t0, t2 float64) {
	hSquared := 1 / (e.segments * e.segments)
	aHSquared := (t2 - t0) * hSquared
	e.forwardDiff1 = aHSquared
	e.forwardDiff2 = 2 * aHSquared
	e.segmentVelocity = t0
}

// nextSegmentVelocity returns the velocity the segment about to run
// will use: unchanged during a constant-velocity body, or the
// already-advanced segmentVelocity otherwise.
func (e *Executor) nextSegmentVelocity() float64 {
	if e.move == moveBody {
		return e.segmentVelocity
	}
	return e.segmentVelocity + e.forwardDiff1
}

// AvailableLength implements planner.Runtime: the straight-line
// distance remaining to the running block's endpoint.
func (e *Executor) AvailableLength() float64 {
	return math.Abs(e.endpoint - e.position)
}

// NextSegmentVelocity implements planner.Runtime.
func (e *Executor) NextSegmentVelocity() float64 {
	return e.nextSegmentVelocity()
}

// SetDecelTail implements planner.Runtime: reconfigures the block
// currently executing, in place, as a tail decelerating from
// cruiseVelocity to zero over tailLength, to be picked up by Execute
// on its next call.
func (e *Executor) SetDecelTail(tailLength, cruiseVelocity float64) {
	e.exitVelocity = 0
	e.tailLength = tailLength
	e.cruiseVelocity = cruiseVelocity
	e.move = moveTail
	e.section = sectionNew
}

// Execute runs exactly one segment of whichever block is at the run
// cursor of ring, loading a new block from the ring when the executor
// is idle. It returns status.EAgain while the block has further
// segments to run, status.Success when the block (and
// any reused companion block from a hold split) is fully run,
// status.Noop when there is nothing to do, or status.BlockSkipped
// when a section's segment time rounds below the runtime's minimum
// and the block must be abandoned without moving (spec.md §4.6).
func (e *Executor) Execute(ring *block.Ring, holding bool) status.Code {
	e.holding = holding
	idx, ok := ring.GetRunBuffer()
	if !ok {
		return status.Noop
	}
	bf := ring.At(idx)

	if bf.MoveState == block.Off {
		return status.Noop
	}

	if e.move == moveOff {
		if holding {
			return status.Noop
		}

		bf.Replannable = false

		if zero(bf.Length) {
			e.move = moveOff
			e.section = sectionOff
			ring.At(ring.Next(idx)).Replannable = false
			e.steps.SetNextSegmentNull()
			ring.FreeRunBuffer()
			return status.Noop
		}

		bf.MoveState = block.Run
		e.move = moveHead
		e.section = sectionNew
		e.jerk = bf.Jerk
		e.headLength = bf.HeadLength
		e.bodyLength = bf.BodyLength
		e.tailLength = bf.TailLength
		e.entryVelocity = bf.EntryVelocity
		e.cruiseVelocity = bf.CruiseVelocity
		e.exitVelocity = bf.ExitVelocity
		e.direction = bf.Direction
		e.endpoint = e.position + bf.Length*float64(bf.Direction)
	}

	var result status.Code
	switch e.move {
	case moveHead:
		result = e.runHead()
	case moveBody:
		result = e.runBody()
	case moveTail:
		result = e.runTail()
	case moveSkip:
		result = status.Success
	default:
		result = status.EAgain
	}

	if result != status.EAgain {
		e.move = moveOff
		e.section = sectionOff
		ring.At(ring.Next(idx)).Replannable = false

		if bf.MoveState == block.Run {
			ring.FreeRunBuffer()
			e.parkedForHold = false
		} else {
			// planner.Callback's Case 1 reconfigured this same run
			// buffer, in place, as the hold point's resumable
			// remainder (MoveState left at block.New): it is not
			// freed, and the block just finished was the hold's
			// decel-to-zero tail, not an ordinary motion completion.
			e.parkedForHold = true
		}
	}
	return result
}

// ParkedForHold reports whether the block Execute last finished was a
// hold's deceleration tail left parked as the resumable remainder,
// rather than an ordinary completed block freed back to the ring.
// mc/mccore uses this to tell a hold reaching zero velocity apart from
// a plain MotionComplete.
func (e *Executor) ParkedForHold() bool { return e.parkedForHold }

func (e *Executor) runHead() status.Code {
	if e.section == sectionNew {
		if zero(e.headLength) {
			e.move = moveBody
			return e.runBody()
		}

		e.midpointVelocity = (e.entryVelocity + e.cruiseVelocity) / 2
		e.moveTime = e.headLength / e.midpointVelocity
		e.segments = math.Ceil(usec(e.moveTime) / (2 * nomSegmentUsec))
		e.segmentMoveTime = e.moveTime / (2 * e.segments)
		e.segmentCount = uint32(e.segments)

		e.microseconds = usec(e.segmentMoveTime)
		if e.microseconds < minSegmentUsec {
			return status.BlockSkipped
		}

		e.initForwardDiffs(e.entryVelocity, e.midpointVelocity)
		e.section = sectionRun1
	}

	if e.section == sectionRun1 {
		e.segmentVelocity += e.forwardDiff1
		if e.runSegment(false) == status.Complete {
			e.segmentCount = uint32(e.segments)
			e.section = sectionRun2
			e.forwardDiff2 = -e.forwardDiff2
		} else {
			e.forwardDiff1 += e.forwardDiff2
		}
		return status.EAgain
	}

	if e.section == sectionRun2 {
		e.segmentVelocity += e.forwardDiff1
		e.forwardDiff1 += e.forwardDiff2
		if e.runSegment(false) == status.Complete {
			if zero(e.bodyLength) && zero(e.tailLength) {
				return status.Success
			}
			e.move = moveBody
			e.section = sectionNew
		}
	}

	return status.EAgain
}

func (e *Executor) runBody() status.Code {
	if e.section == sectionNew {
		if zero(e.bodyLength) {
			e.move = moveTail
			return e.runTail()
		}

		e.moveTime = e.bodyLength / e.cruiseVelocity
		e.segments = math.Ceil(usec(e.moveTime) / nomSegmentUsec)
		e.segmentMoveTime = e.moveTime / e.segments
		e.segmentVelocity = e.cruiseVelocity
		e.segmentCount = uint32(e.segments)

		e.microseconds = usec(e.segmentMoveTime)
		if e.microseconds < minSegmentUsec {
			return status.BlockSkipped
		}

		e.section = sectionRun
	}

	if e.section == sectionRun {
		if e.runSegment(false) == status.Complete {
			if zero(e.tailLength) {
				return status.Success
			}
			e.move = moveTail
			e.section = sectionNew
		}
	}

	return status.EAgain
}

func (e *Executor) runTail() status.Code {
	if e.section == sectionNew {
		if zero(e.tailLength) {
			return status.Success
		}

		e.midpointVelocity = (e.cruiseVelocity + e.exitVelocity) / 2
		e.moveTime = e.tailLength / e.midpointVelocity
		e.segments = math.Ceil(usec(e.moveTime) / (2 * nomSegmentUsec))
		e.segmentMoveTime = e.moveTime / (2 * e.segments)
		e.segmentCount = uint32(e.segments)

		e.microseconds = usec(e.segmentMoveTime)
		if e.microseconds < minSegmentUsec {
			return status.BlockSkipped
		}

		e.initForwardDiffs(e.cruiseVelocity, e.midpointVelocity)
		e.section = sectionRun1
	}

	if e.section == sectionRun1 {
		e.segmentVelocity += e.forwardDiff1
		if e.runSegment(false) == status.Complete {
			e.segmentCount = uint32(e.segments)
			e.section = sectionRun2
			e.forwardDiff2 = -e.forwardDiff2
		} else {
			e.forwardDiff1 += e.forwardDiff2
		}
		return status.EAgain
	}

	if e.section == sectionRun2 {
		e.segmentVelocity += e.forwardDiff1
		e.forwardDiff1 += e.forwardDiff2
		if e.runSegment(true) == status.Complete {
			return status.Success
		}
	}

	return status.EAgain
}

// runSegment advances position by one fixed-time segment at the
// current segmentVelocity and hands the resulting distance to the
// StepGen. correctionFlag snaps the target to the exact block
// endpoint on the very last segment of a MOTION_RUN move, absorbing
// floating-point accumulation error (spec.md §4.6).
func (e *Executor) runSegment(correctionFlag bool) status.Code {
	var target float64
	if correctionFlag && !e.holding && e.segmentCount == 1 {
		target = e.endpoint
	} else {
		target = e.position + e.segmentVelocity*e.segmentMoveTime*float64(e.direction)
	}

	steps := target - e.position
	if e.steps.SetNextSegment(steps, e.direction, e.microseconds) == status.Success {
		e.position = target
	}

	e.segmentCount--
	if e.segmentCount == 0 {
		return status.Complete
	}
	return status.EAgain
}

// Position returns the executor's current runtime position.
func (e *Executor) Position() float64 { return e.position }

// ResetPosition sets the runtime position. Block endpoints are taken
// relative to the position at the moment the block is loaded.
func (e *Executor) ResetPosition(p float64) { e.position = p }
