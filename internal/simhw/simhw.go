/*
 * slaprint - Simulated motor/limit-switch hardware
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

// Package simhw stands in for the two axes' stepper motors and limit
// switches when slaprint runs without attached hardware, the way
// emu/test_dev stands in for a channel-attached I/O device: it answers
// exactly the interfaces the real mainline drives
// (mc/stepgen.Pulser, a limit-switch level reader) without modeling
// real motor dynamics beyond a signed step count per axis.
package simhw

import (
	"sync/atomic"

	"github.com/ldowney/slaprint/mc/block"
)

// Simulator is a pulse-counting stand-in for both axes' motors. Home
// position is step 0 for each axis: an axis at or below step 0 reads
// as at home.
type Simulator struct {
	zSteps, rSteps     atomic.Int64
	zForward, rForward atomic.Bool
}

// New returns a Simulator with both axes parked at step 0.
func New() *Simulator { return &Simulator{} }

// SetDirection implements mc/stepgen.Pulser.
func (s *Simulator) SetDirection(axis block.Axis, reverse bool) {
	if axis == block.AxisZ {
		s.zForward.Store(!reverse)
		return
	}
	s.rForward.Store(!reverse)
}

// Pulse implements mc/stepgen.Pulser.
func (s *Simulator) Pulse(axis block.Axis) {
	forward := &s.zForward
	steps := &s.zSteps
	if axis == block.AxisR {
		forward = &s.rForward
		steps = &s.rSteps
	}
	if forward.Load() {
		steps.Add(1)
	} else {
		steps.Add(-1)
	}
}

// ZAtHome is the Z axis limit-switch level function.
func (s *Simulator) ZAtHome() bool { return s.zSteps.Load() <= 0 }

// RAtHome is the R axis limit-switch level function.
func (s *Simulator) RAtHome() bool { return s.rSteps.Load() <= 0 }

// ZPositionSteps reports the Z axis's simulated position.
func (s *Simulator) ZPositionSteps() int64 { return s.zSteps.Load() }

// RPositionSteps reports the R axis's simulated position.
func (s *Simulator) RPositionSteps() int64 { return s.rSteps.Load() }
