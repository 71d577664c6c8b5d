/*
 * slaprint - Constant-jerk S-curve motion planner
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

// Package planner implements spec.md §4.4/§4.5/§4.8: queueing a new
// single-axis accelerated line into the block ring, the backward/
// forward velocity-planning passes, the trapezoid section fitter, and
// the pause/hold replanner. It is a direct port of the constant-jerk
// S-curve algorithm used by the original firmware's motion planner,
// translated from a pointer-linked block list onto mc/block's
// index-based Ring.
package planner

import (
	"math"

	"github.com/ldowney/slaprint/mc/block"
	"github.com/ldowney/slaprint/mc/status"
)

// Planning-time constants, all expressed in the user-unit/minute time
// base the wire protocol and settings store use throughout.
const (
	jerkMatchPrecision = 1000.0

	minSegmentUsec = 2500.0
	// minSegmentTime is minSegmentUsec expressed in minutes, matching
	// the velocity unit (user units/minute) everything else here uses.
	minSegmentTime = minSegmentUsec / 60e6

	trapezoidIterationErrorPercent = 0.10
	trapezoidLengthFitTolerance    = 0.0001
)

// velocityTolerance returns the adaptive tolerance used to decide
// whether entry and exit velocity are "the same" for the symmetric
// rate-limited case.
func velocityTolerance(entryVelocity float64) float64 {
	return math.Max(2, entryVelocity/100)
}

func zero(v float64) bool { return math.Abs(v) < 0.0001 }

// Planner holds the jerk-term cache (reused across consecutive blocks
// that request the same jerk, to avoid repeated cube roots) alongside
// the block ring it plans into.
type Planner struct {
	ring *block.Ring

	havePreviousJerk      bool
	previousJerk          float64
	previousCubeRootJerk  float64
	previousReciprocalJerk float64
}

// New returns a Planner that queues and plans into ring.
func New(ring *block.Ring) *Planner {
	return &Planner{ring: ring}
}

// QueueLine plans one single-axis accelerated line of the given
// length (user units, signed by direction), target speed and maximum
// jerk, appends it to the block ring, and replans the affected tail
// of the ring. It returns status.PlannerBufferFull if the ring has no
// free block, or status.MoveLengthTooSmall if length is effectively
// zero.
func (p *Planner) QueueLine(axis block.Axis, direction int8, length, speed, maxJerk float64) status.Code {
	idx, ok := p.ring.GetWriteBuffer()
	if !ok {
		return status.PlannerBufferFull
	}
	bf := p.ring.At(idx)

	if zero(length) {
		return status.MoveLengthTooSmall
	}

	bf.Axis = axis
	bf.Direction = direction
	bf.Length = math.Abs(length)
	bf.Target = bf.Length
	bf.CruiseVMax = speed
	bf.Jerk = maxJerk

	if p.havePreviousJerk && math.Abs(maxJerk-p.previousJerk) < jerkMatchPrecision {
		bf.CubeRootJerk = p.previousCubeRootJerk
		bf.ReciprocalJerk = p.previousReciprocalJerk
	} else {
		bf.CubeRootJerk = math.Cbrt(maxJerk)
		bf.ReciprocalJerk = 1 / maxJerk
		p.previousJerk = maxJerk
		p.previousCubeRootJerk = bf.CubeRootJerk
		p.previousReciprocalJerk = bf.ReciprocalJerk
		p.havePreviousJerk = true
	}

	bf.Replannable = true
	bf.EntryVMax = bf.CruiseVMax
	bf.DeltaVMax = getTargetVelocity(0, bf.Length, bf)
	bf.ExitVMax = math.Min(bf.CruiseVMax, bf.EntryVMax+bf.DeltaVMax)
	bf.BrakingVelocity = bf.DeltaVMax

	runtimeFlag := false
	p.planBlockList(idx, &runtimeFlag)
	p.ring.QueueWriteBuffer(idx, block.MoveAcceleratedLine)

	return status.Success
}

// getTargetLength derives the distance needed to change velocity from
// vi to vt under constant jerk bf.Jerk (spec.md §4.5's L = |Vi-Vt| *
// sqrt(|Vi-Vt| / Jm)).
func getTargetLength(vi, vt float64, bf *block.Block) float64 {
	delta := math.Abs(vi - vt)
	return delta * math.Sqrt(delta*bf.ReciprocalJerk)
}

// getTargetVelocity derives the velocity reachable from vi over
// length l under constant jerk bf.Jerk (Vt = L^(2/3) * Jm^(1/3) + Vi).
func getTargetVelocity(vi, l float64, bf *block.Block) float64 {
	return math.Pow(l, 0.66666666)*bf.CubeRootJerk + vi
}

func min4(a, b, c, d float64) float64 {
	return math.Min(math.Min(a, b), math.Min(c, d))
}

// planBlockList replans every block between the first not-yet-
// optimally-planned block and last (inclusive): a backward pass that
// propagates achievable braking velocities toward the head of the
// ring, followed by a forward pass that sets entry/cruise/exit
// velocities and fits a trapezoid to each block (spec.md §4.4).
func (p *Planner) planBlockList(last int, runtimeFlag *bool) {
	r := p.ring

	bp := last
	for {
		prev := r.Prev(bp)
		if prev == last {
			break
		}
		bp = prev
		if !r.At(bp).Replannable {
			break
		}
		next := r.At(r.Next(bp))
		r.At(bp).BrakingVelocity = math.Min(next.EntryVMax, next.BrakingVelocity) + r.At(bp).DeltaVMax
	}

	for {
		next := r.Next(bp)
		if next == last {
			break
		}
		bp = next
		b := r.At(bp)
		prevIdx := r.Prev(bp)
		if prevIdx == last || *runtimeFlag {
			b.EntryVelocity = b.EntryVMax
			*runtimeFlag = false
		} else {
			b.EntryVelocity = r.At(prevIdx).ExitVelocity
		}

		b.CruiseVelocity = b.CruiseVMax
		nxt := r.At(r.Next(bp))
		b.ExitVelocity = min4(b.ExitVMax, nxt.BrakingVelocity, nxt.EntryVMax, b.EntryVelocity+b.DeltaVMax)

		calculateTrapezoid(b)

		prevB := r.At(prevIdx)
		if b.ExitVelocity == b.ExitVMax || b.ExitVelocity == nxt.EntryVMax ||
			(!prevB.Replannable && b.ExitVelocity == b.EntryVelocity+b.DeltaVMax) {
			b.Replannable = false
		}
	}

	last1 := r.At(last)
	last1.EntryVelocity = r.At(r.Prev(last)).ExitVelocity
	last1.CruiseVelocity = last1.CruiseVMax
	last1.ExitVelocity = 0
	calculateTrapezoid(last1)
}

// resetReplannableList marks every queued/pending/running block in the
// ring replannable again, used before a hold forces a full replan.
func (p *Planner) resetReplannableList() {
	r := p.ring
	for i := 0; i < r.Size(); i++ {
		b := r.At(i)
		if b.State == block.Empty {
			continue
		}
		b.Replannable = true
	}
}

// calculateTrapezoid fits head/body/tail section lengths and their
// velocities to one block's requested entry/cruise/exit velocities
// and length (spec.md §4.5). Entry on: Ve <= Vt >= Vx must already
// hold.
func calculateTrapezoid(bf *block.Block) {
	bf.HeadLength = 0
	bf.BodyLength = 0
	bf.TailLength = 0

	minHeadLength := func() float64 { return minSegmentTime * (bf.CruiseVelocity + bf.EntryVelocity) }
	minTailLength := func() float64 { return minSegmentTime * (bf.CruiseVelocity + bf.ExitVelocity) }
	minBodyLength := func() float64 { return minSegmentTime * bf.CruiseVelocity }

	minimumLength := getTargetLength(bf.EntryVelocity, bf.ExitVelocity, bf)

	if bf.Length <= minimumLength+minBodyLength() {
		switch {
		case bf.EntryVelocity > bf.ExitVelocity:
			// Tail-only cases.
			if bf.Length < minimumLength-trapezoidLengthFitTolerance {
				bf.EntryVelocity = getTargetVelocity(bf.ExitVelocity, bf.Length, bf)
			}
			bf.CruiseVelocity = bf.EntryVelocity

			switch {
			case bf.Length >= minTailLength():
				bf.TailLength = bf.Length
			case bf.Length > minBodyLength():
				bf.BodyLength = bf.Length
			default:
				bf.MoveState = block.Skip
			}
			return

		case bf.EntryVelocity < bf.ExitVelocity:
			// Head-only cases.
			if bf.Length < minimumLength-trapezoidLengthFitTolerance {
				bf.ExitVelocity = getTargetVelocity(bf.EntryVelocity, bf.Length, bf)
			}
			bf.CruiseVelocity = bf.ExitVelocity

			switch {
			case bf.Length >= minHeadLength():
				bf.HeadLength = bf.Length
			case bf.Length > minBodyLength():
				bf.BodyLength = bf.Length
			default:
				bf.MoveState = block.Skip
			}
			return
		}
	}

	bf.HeadLength = getTargetLength(bf.EntryVelocity, bf.CruiseVelocity, bf)
	bf.TailLength = getTargetLength(bf.ExitVelocity, bf.CruiseVelocity, bf)
	if bf.HeadLength < minHeadLength() {
		bf.HeadLength = 0
	}
	if bf.TailLength < minTailLength() {
		bf.TailLength = 0
	}

	if bf.Length < bf.HeadLength+bf.TailLength {
		// Rate-limited: the move lacks the length to reach cruiseVMax.
		if math.Abs(bf.EntryVelocity-bf.ExitVelocity) < velocityTolerance(bf.EntryVelocity) {
			// Symmetric case: split the length evenly.
			bf.HeadLength = bf.Length / 2
			bf.TailLength = bf.HeadLength
			bf.CruiseVelocity = math.Min(bf.CruiseVMax, getTargetVelocity(bf.EntryVelocity, bf.HeadLength, bf))
			return
		}

		// Asymmetric case: converge head/tail split by successive
		// approximation to within trapezoidIterationErrorPercent.
		computedVelocity := bf.CruiseVMax
		for {
			bf.CruiseVelocity = computedVelocity
			bf.HeadLength = getTargetLength(bf.EntryVelocity, bf.CruiseVelocity, bf)
			bf.TailLength = getTargetLength(bf.ExitVelocity, bf.CruiseVelocity, bf)

			if bf.HeadLength > bf.TailLength {
				bf.HeadLength = (bf.HeadLength / (bf.HeadLength + bf.TailLength)) * bf.Length
				computedVelocity = getTargetVelocity(bf.EntryVelocity, bf.HeadLength, bf)
			} else {
				bf.TailLength = (bf.TailLength / (bf.HeadLength + bf.TailLength)) * bf.Length
				computedVelocity = getTargetVelocity(bf.ExitVelocity, bf.TailLength, bf)
			}

			if math.Abs(bf.CruiseVelocity-computedVelocity)/computedVelocity <= trapezoidIterationErrorPercent {
				break
			}
		}

		bf.CruiseVelocity = computedVelocity
		bf.HeadLength = getTargetLength(bf.EntryVelocity, bf.CruiseVelocity, bf)
		bf.TailLength = bf.Length - bf.HeadLength

		if bf.HeadLength < minHeadLength() {
			bf.TailLength = bf.Length
			bf.HeadLength = 0
		}
		if bf.TailLength < minTailLength() {
			bf.HeadLength = bf.Length
			bf.TailLength = 0
		}
		return
	}

	// Requested-fit: head and tail as computed, remainder is body.
	bf.BodyLength = bf.Length - bf.HeadLength - bf.TailLength

	if bf.BodyLength < minBodyLength() && !zero(bf.BodyLength) {
		switch {
		case !zero(bf.HeadLength) && !zero(bf.TailLength):
			bf.HeadLength += bf.BodyLength / 2
			bf.TailLength += bf.BodyLength / 2
		case !zero(bf.HeadLength):
			bf.HeadLength += bf.BodyLength
		default:
			bf.TailLength += bf.BodyLength
		}
		bf.BodyLength = 0
	} else if zero(bf.HeadLength) && zero(bf.TailLength) {
		bf.CruiseVelocity = bf.EntryVelocity
	}
}
