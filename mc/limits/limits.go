/*
 * slaprint - Limit switch handling and homing
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

// Package limits implements per-axis limit switch handling and the
// homing decision of spec.md §4.9: a pin-change interrupt armed only
// while homing that axis, translated to an AxisLimitReached event, and
// the already-at-limit check performed before a homing move is even
// queued. Grounded on the original firmware's
// MotorController::HomeZAxis/HomeRAxis, which check the limit switch
// synchronously before arming the pin-change interrupt and issuing the
// homing move.
package limits

import (
	"sync/atomic"

	"github.com/ldowney/slaprint/mc/block"
)

// Switch is one axis's limit switch: a level the mainline can poll
// (Hit) and a one-shot latch a pin-change goroutine sets when it fires
// while armed (Latched/ClearLatch).
type Switch struct {
	armed   atomic.Bool
	latched atomic.Bool
	level   func() bool // reads the current switch level; nil in tests defaults to false
}

// New returns a Switch that reads its instantaneous level through
// level (typically a GPIO read); level may be nil, in which case Hit
// always reports false until SetLevelFunc is called.
func New(level func() bool) *Switch {
	return &Switch{level: level}
}

// SetLevelFunc installs (or replaces) the level-reading function,
// useful for wiring a test double after construction.
func (s *Switch) SetLevelFunc(level func() bool) { s.level = level }

// Hit reports the switch's instantaneous level: true if the axis is
// currently at its home position.
func (s *Switch) Hit() bool {
	if s.level == nil {
		return false
	}
	return s.level()
}

// Arm enables the pin-change interrupt for this axis, as
// MotorController::HomeZAxis/HomeRAxis do via LIMIT_SW_PCMSK before
// starting a homing move. Only armed switches latch.
func (s *Switch) Arm() { s.armed.Store(true) }

// Disarm disables the pin-change interrupt once homing for this axis
// is no longer in progress.
func (s *Switch) Disarm() { s.armed.Store(false) }

// Watch runs as the pin-change ISR goroutine: it receives a pulse on
// edges (true on each level transition the hardware reports) and
// latches a hit if the switch is currently armed. It is safe to start
// once at boot and run for the process lifetime; arming/disarming just
// changes whether edges matter.
func (s *Switch) Watch(edges <-chan bool, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-edges:
			if s.armed.Load() {
				s.latched.Store(true)
			}
		}
	}
}

// Latched reports whether an armed edge fired since the last
// ClearLatch.
func (s *Switch) Latched() bool {
	return s.latched.Load()
}

// ClearLatch resets the latch, called by the mainline once it has
// turned a latched hit into an AxisLimitReached event.
func (s *Switch) ClearLatch() {
	s.latched.Store(false)
}

// Pair holds both axes' limit switches.
type Pair struct {
	Z *Switch
	R *Switch
}

// Switch returns the Switch for axis.
func (p *Pair) Switch(axis block.Axis) *Switch {
	if axis == block.AxisZ {
		return p.Z
	}
	return p.R
}

// BeginHoming is the decision point of spec.md §4.9: if the axis is
// already at its limit, homing must not move at all and the caller
// should raise AxisAtLimit directly; otherwise the pin-change
// interrupt is armed and the caller proceeds to queue the homing move,
// which will raise AxisLimitReached if the switch fires mid-motion.
func (p *Pair) BeginHoming(axis block.Axis) (alreadyAtLimit bool) {
	sw := p.Switch(axis)
	if sw.Hit() {
		return true
	}
	sw.Arm()
	return false
}

// EndHoming disarms the pin-change interrupt for axis once homing
// motion for it is no longer in progress (reached ReadyForAction,
// paused, or errored out).
func (p *Pair) EndHoming(axis block.Axis) {
	p.Switch(axis).Disarm()
}
