/*
 * slaprint - Pause/hold replanning
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

package planner

import (
	"github.com/ldowney/slaprint/mc/block"
	"github.com/ldowney/slaprint/mc/status"
)

// HoldState is the pause/hold sub-state machine of spec.md §4.8: a
// hold is initiated (Sync), waits one segment for the executor to
// reach a safe replanning point (Plan), decelerates to zero (Decel),
// then parks (Hold) until released.
type HoldState int

const (
	HoldOff HoldState = iota
	HoldSync
	HoldPlan
	HoldDecel
	HoldHold
)

// Runtime is the slice of the segment executor's running state the
// hold replanner needs: the distance remaining in the block currently
// executing (mr, in the original firmware's terms) and the velocity
// its next segment will start from. mc/executor implements this.
type Runtime interface {
	// AvailableLength returns the straight-line distance remaining
	// between the executor's current position and the running
	// block's endpoint.
	AvailableLength() float64

	// NextSegmentVelocity returns the velocity the next segment will
	// begin from: the current segment velocity unchanged during a
	// constant-velocity body, or advanced by one forward-difference
	// step otherwise.
	NextSegmentVelocity() float64

	// SetDecelTail reconfigures the executing block in place to
	// decelerate to zero over tailLength, starting from
	// cruiseVelocity, and marks it for re-entry at the New move state.
	SetDecelTail(tailLength, cruiseVelocity float64)
}

// Hold tracks pause/hold progress across calls to Callback.
type Hold struct {
	State HoldState
}

// Begin requests a hold. The executor observes HoldSync and, after
// finishing the segment in flight, advances the hold to HoldPlan
// (spec.md §4.8).
func (h *Hold) Begin() {
	h.State = HoldSync
}

// AdvanceToPlan is called by the executor once it is safe to replan:
// after the in-flight segment completes.
func (h *Hold) AdvanceToPlan() {
	if h.State == HoldSync {
		h.State = HoldPlan
	}
}

// ReachedZero is called by the executor once the deceleration it
// committed to in Callback has run to zero velocity.
func (h *Hold) ReachedZero() {
	if h.State == HoldDecel {
		h.State = HoldHold
	}
}

// End releases a completed hold, returning to HoldOff. The caller
// must wait for State to read HoldHold before calling End (spec.md
// §4.8); the mainline then resumes execution from the first block
// after the hold point.
func (h *Hold) End() {
	h.State = HoldOff
}

// Callback replans the block list for a hold in progress. It is a
// no-op unless State is HoldPlan. On success it transitions to
// HoldDecel and the caller should resume normal execution, now
// decelerating to the hold point.
//
// Two cases, mirroring the original firmware's PlanHoldCallback:
//
//   - Case 1: the deceleration to zero fits entirely within the
//     distance remaining in the block currently executing. That block
//     is rewritten in place as a tail down to zero, and the run
//     buffer is reused as an extra block holding the undrawn
//     remainder (an entry-velocity-zero hold point).
//
//   - Case 2: it does not fit. The currently executing block
//     decelerates as far as it can, and the search continues forward
//     through the ring, shedding velocity block by block, until the
//     remaining velocity can be shed within one block's length. That
//     block is split into a decel-to-zero / accel-from-zero pair.
func (p *Planner) Callback(h *Hold, rt Runtime) status.Code {
	if h.State != HoldPlan {
		return status.Noop
	}

	r := p.ring
	runIdx, ok := r.GetRunBuffer()
	if !ok {
		return status.Noop
	}
	bp := r.At(runIdx)

	runtimeFlag := true
	availableRuntimeLength := rt.AvailableLength()
	brakingVelocity := rt.NextSegmentVelocity()
	brakingLength := getTargetLength(brakingVelocity, 0, bp)

	// Perfect-fit-decel hack carried from the original firmware: when
	// the block is already ending at zero exit velocity, never let
	// floating-point slop push this into the Case 2 path.
	if brakingLength > availableRuntimeLength && zero(bp.ExitVelocity) {
		brakingLength = availableRuntimeLength
	}

	if brakingLength <= availableRuntimeLength {
		// Case 1.
		rt.SetDecelTail(brakingLength, brakingVelocity)

		bp.Length = availableRuntimeLength - brakingLength
		bp.DeltaVMax = getTargetVelocity(0, bp.Length, bp)
		bp.EntryVMax = 0
		bp.MoveState = block.New

		p.resetReplannableList()
		p.planBlockList(r.Prev(runIdx), &runtimeFlag)
		h.State = HoldDecel
		return status.Success
	}

	// Case 2: replan the running block to shed as much velocity as it
	// can, then keep walking the ring forward until the remaining
	// velocity fits in a single block, splitting that block into a
	// decel/accel pair.
	rt.SetDecelTail(availableRuntimeLength, brakingVelocity)
	brakingVelocity -= getTargetVelocity(0, availableRuntimeLength, bp)
	bp.MoveState = block.New

	idx := runIdx
	for i := 0; i < r.Size(); i++ {
		next := r.Next(idx)
		*r.At(idx) = *r.At(next)
		bp = r.At(idx)

		if bp.MoveType != block.MoveAcceleratedLine {
			idx = next
			continue
		}

		bp.EntryVMax = brakingVelocity
		brakingLength = getTargetLength(brakingVelocity, 0, bp)

		if brakingLength > bp.Length {
			bp.ExitVMax = brakingVelocity - getTargetVelocity(0, bp.Length, bp)
			brakingVelocity = bp.ExitVMax
			idx = next
			continue
		}
		break
	}

	bp.Length = brakingLength
	bp.ExitVMax = 0

	idx = r.Next(idx)
	accel := r.At(idx)
	accel.EntryVMax = 0
	accel.Length -= brakingLength
	accel.DeltaVMax = getTargetVelocity(0, accel.Length, accel)
	accel.ExitVMax = accel.DeltaVMax

	p.resetReplannableList()
	p.planBlockList(r.Prev(idx), &runtimeFlag)
	h.State = HoldDecel
	return status.Success
}
