/*
 * slaprint - Per-axis calibration settings
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

// Package settings holds the per-axis calibration store described in
// spec.md §3 and §4.3: step angle, units/revolution, microstepping
// mode, max jerk, and target speed, plus the derived pulses-per-unit
// quantity.
package settings

import (
	"errors"
	"sync"
)

// Axis identifies which of the two motion axes a setting applies to.
type Axis int

const (
	Z Axis = iota
	R
)

func (a Axis) String() string {
	if a == Z {
		return "Z"
	}
	return "R"
}

// Settings holds one axis's calibration. All fields must be set at
// least once, and strictly positive, before Validate succeeds.
type Settings struct {
	mu sync.RWMutex

	stepAngleMdeg    int // millidegrees/step
	unitsPerRev      int // microns (Z) or millidegrees (R) per motor revolution
	microstep        int // encoded 1..6, meaning 2^(m-1) microsteps
	maxJerkScaled    int // user units/min^3 * 1e6
	speedUnitsPerMin int

	haveStepAngle   bool
	haveUnitsPerRev bool
	haveMicrostep   bool
	haveMaxJerk     bool
	haveSpeed       bool

	pulsesPerUnitValid bool
	pulsesPerUnitCache float64
}

// New returns a zero-valued, unvalidated Settings for one axis.
func New() *Settings {
	return &Settings{}
}

// SetStepAngle sets the motor's step angle in millidegrees/step. Must
// be strictly positive.
func (s *Settings) SetStepAngle(mdeg int) error {
	if mdeg <= 0 {
		return errors.New("settings: step angle must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepAngleMdeg = mdeg
	s.haveStepAngle = true
	s.pulsesPerUnitValid = false
	return nil
}

// SetUnitsPerRevolution sets units (microns or millidegrees) per
// motor revolution. Must be strictly positive.
func (s *Settings) SetUnitsPerRevolution(units int) error {
	if units <= 0 {
		return errors.New("settings: units per revolution must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unitsPerRev = units
	s.haveUnitsPerRev = true
	s.pulsesPerUnitValid = false
	return nil
}

// SetMicrosteppingMode sets the encoded microstepping mode, 1..6,
// meaning a 2^(m-1) microstep factor.
func (s *Settings) SetMicrosteppingMode(mode int) error {
	if mode < 1 || mode > 6 {
		return errors.New("settings: microstepping mode must be 1..6")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.microstep = mode
	s.haveMicrostep = true
	s.pulsesPerUnitValid = false
	return nil
}

// SetMaxJerk sets the max jerk in user units/min^3, internally scaled
// by 1e6 to match the wire parameter's fixed-point encoding. Must be
// strictly positive.
func (s *Settings) SetMaxJerk(jerk int) error {
	if jerk <= 0 {
		return errors.New("settings: max jerk must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxJerkScaled = jerk
	s.haveMaxJerk = true
	return nil
}

// SetSpeed sets the target speed in user units/minute. Must be
// strictly positive.
func (s *Settings) SetSpeed(speed int) error {
	if speed <= 0 {
		return errors.New("settings: speed must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speedUnitsPerMin = speed
	s.haveSpeed = true
	return nil
}

// Validate succeeds only when all five fields have been set at least
// once.
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !(s.haveStepAngle && s.haveUnitsPerRev && s.haveMicrostep && s.haveMaxJerk && s.haveSpeed) {
		return errors.New("settings: axis not fully configured")
	}
	return nil
}

// MaxJerkPerMinCubed returns the configured jerk in user units/min^3
// (undoing the 1e6 wire scaling).
func (s *Settings) MaxJerkPerMinCubed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.maxJerkScaled) / 1e6
}

// SpeedUnitsPerMin returns the configured target speed.
func (s *Settings) SpeedUnitsPerMin() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speedUnitsPerMin
}

// PulsesPerUnit returns (360 * 2^(m-1)) / (stepAngleDegrees *
// unitsPerRev), the derived step rate used to convert user-unit
// distances into DDA pulse counts. The result is cached and
// invalidated whenever step angle, units/rev, or microstepping
// change.
func (s *Settings) PulsesPerUnit() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pulsesPerUnitValid {
		return s.pulsesPerUnitCache
	}
	stepAngleDeg := float64(s.stepAngleMdeg) / 1000.0
	microsteps := float64(int(1) << uint(s.microstep-1))
	s.pulsesPerUnitCache = (360.0 * microsteps) / (stepAngleDeg * float64(s.unitsPerRev))
	s.pulsesPerUnitValid = true
	return s.pulsesPerUnitCache
}
