/*
 * slaprint - Motion command builder
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

// Package builder composes MC command-frame batches from layer
// parameters (spec.md §2's "Motion command builder"), grounded on
// original_source/C++/Motor.cpp's one-method-per-motion-phase shape:
// each call here builds the same frame sequence Motor.cpp's matching
// method sends over I2C, normally terminated with an interrupt
// request so the host sequencer learns of completion over the MC
// interrupt line rather than polling.
package builder

import (
	"math"

	"github.com/ldowney/slaprint/hs/layersettings"
	"github.com/ldowney/slaprint/mc/frame"
)

// Batch is an ordered set of command frames sent to the MC as one
// unit.
type Batch []frame.Frame

func interruptFrame() frame.Frame {
	return frame.Frame{Register: frame.GeneralReg, Action: frame.CmdInterrupt}
}

func general(cmd uint8) frame.Frame {
	return frame.Frame{Register: frame.GeneralReg, Action: cmd}
}

func rSetting(action uint8, param int32) frame.Frame {
	return frame.Frame{Register: frame.RSettingReg, Action: action, Parameter: param}
}

func zSetting(action uint8, param int32) frame.Frame {
	return frame.Frame{Register: frame.ZSettingReg, Action: action, Parameter: param}
}

func rAction(action uint8, param int32) frame.Frame {
	return frame.Frame{Register: frame.RActionReg, Action: action, Parameter: param}
}

func zAction(action uint8, param int32) frame.Frame {
	return frame.Frame{Register: frame.ZActionReg, Action: action, Parameter: param}
}

func millidegrees(deg float64) int32 { return int32(math.Round(deg * 1000)) }
func microns(v float64) int32        { return int32(math.Round(v)) }
func jerkParam(unitsPerMinCubed float64) int32 {
	return int32(math.Round(unitsPerMinCubed * 1e6))
}
func speedParam(unitsPerMin float64) int32 { return int32(math.Round(unitsPerMin)) }

// Pause, Resume, Enable, and Disable are single-frame general
// commands with no batching to speak of (Motor::Pause/Resume/
// EnableMotors/DisableMotors).
func Pause() Batch   { return Batch{general(frame.CmdPause)} }
func Resume() Batch  { return Batch{general(frame.CmdResume)} }
func Enable() Batch  { return Batch{general(frame.CmdEnable)} }
func Disable() Batch { return Batch{general(frame.CmdDisable)} }

// ClearPendingCommands clears the MC's queue and planning ring.
// withInterrupt should be true whenever a preceding pause may not yet
// have completed, so the host doesn't race new commands against it
// (Motor::ClearPendingCommands).
func ClearPendingCommands(withInterrupt bool) Batch {
	b := Batch{general(frame.CmdClear)}
	if withInterrupt {
		b = append(b, interruptFrame())
	}
	return b
}

// Reset issues MC_RESET alone. The MC raises no completion interrupt
// for a reset; callers must wait out a settling delay before building
// a Calibrate batch, or the reset may erase it (Motor::Initialize's
// usleep(DELAY_AFTER_RESET_MSEC)).
func Reset() Batch { return Batch{general(frame.CmdReset)} }

// Calibration is the one-time per-axis calibration sent once at
// startup (spec.md §4.3).
type Calibration struct {
	ZStepAngleMdeg      int32
	ZUnitsPerRevMicrons int32
	ZMicrostepping      int32

	RStepAngleMdeg   int32
	RUnitsPerRevMdeg int32
	RMicrostepping   int32
}

// Calibrate sends both axes' calibration and enables the drivers. No
// interrupt request is appended since no motion was requested
// (Motor::Initialize).
func Calibrate(cal Calibration) Batch {
	return Batch{
		zSetting(frame.SetStepAngle, cal.ZStepAngleMdeg),
		zSetting(frame.SetUnitsPerRevolution, cal.ZUnitsPerRevMicrons),
		zSetting(frame.SetMicrostepping, cal.ZMicrostepping),
		rSetting(frame.SetStepAngle, cal.RStepAngleMdeg),
		rSetting(frame.SetUnitsPerRevolution, cal.RUnitsPerRevMdeg),
		rSetting(frame.SetMicrostepping, cal.RMicrostepping),
		general(frame.CmdEnable),
	}
}

// HomeParams carries the jerk/speed/search-distance values used to
// home both axes in one batch (Motor::GoHome).
type HomeParams struct {
	RJerk           float64
	RSpeed          float64
	RHomeMaxDegrees float64
	RBackoffDegrees float64 // rotate back this far after homing; 0 skips it

	ZJerk           float64
	ZSpeed          float64
	ZHomeMaxMicrons float64
}

// GoHome homes R (optionally backing off by RBackoffDegrees to clear
// the light-blocking position) then homes Z. withInterrupt lets a
// caller chain GoHome directly into GoToStartPosition under a single
// trailing interrupt, as Motor::GoHome's own withInterrupt flag does.
func GoHome(p HomeParams, withInterrupt bool) Batch {
	b := Batch{
		rSetting(frame.SetMaxJerk, jerkParam(p.RJerk)),
		rSetting(frame.SetSpeed, speedParam(p.RSpeed)),
		rAction(frame.ActionHome, millidegrees(p.RHomeMaxDegrees)),
	}
	if p.RBackoffDegrees != 0 {
		b = append(b, rAction(frame.ActionMove, millidegrees(p.RBackoffDegrees)))
	}
	b = append(b,
		zSetting(frame.SetMaxJerk, jerkParam(p.ZJerk)),
		zSetting(frame.SetSpeed, speedParam(p.ZSpeed)),
		zAction(frame.ActionHome, microns(p.ZHomeMaxMicrons)),
	)
	if withInterrupt {
		b = append(b, interruptFrame())
	}
	return b
}

// StartPositionParams carries the jerk/speed/target values for moving
// to the calibrated print-start position (Motor::GoToStartPosition).
type StartPositionParams struct {
	RJerk         float64
	RSpeed        float64
	RStartDegrees float64 // 0 skips the rotation

	ZJerk         float64
	ZSpeed        float64
	ZStartMicrons float64
}

// GoToStartPosition rotates to the start angle (if any) and lowers Z
// to the PDMS contact position, always requesting an interrupt.
func GoToStartPosition(p StartPositionParams) Batch {
	var b Batch
	if p.RStartDegrees != 0 {
		b = append(b,
			rSetting(frame.SetMaxJerk, jerkParam(p.RJerk)),
			rSetting(frame.SetSpeed, speedParam(p.RSpeed)),
			rAction(frame.ActionMove, millidegrees(p.RStartDegrees)),
		)
	}
	b = append(b,
		zSetting(frame.SetMaxJerk, jerkParam(p.ZJerk)),
		zSetting(frame.SetSpeed, speedParam(p.ZSpeed)),
		zAction(frame.ActionMove, microns(p.ZStartMicrons)),
		interruptFrame(),
	)
	return b
}

// Press deflects the build head down onto the tray (Motor::Press).
func Press(cls layersettings.CurrentLayerSettings) Batch {
	b := Batch{zSetting(frame.SetSpeed, speedParam(cls.PressSpeed))}
	if cls.PressDepth != 0 {
		b = append(b, zAction(frame.ActionMove, microns(-cls.PressDepth)))
	}
	return append(b, interruptFrame())
}

// Unpress lifts the build head back up by the same depth Press
// deflected it, letting resin fill in for a full layer (Motor::Unpress).
func Unpress(cls layersettings.CurrentLayerSettings) Batch {
	b := Batch{zSetting(frame.SetSpeed, speedParam(cls.UnpressSpeed))}
	if cls.PressDepth != 0 {
		b = append(b, zAction(frame.ActionMove, microns(cls.PressDepth)))
	}
	return append(b, interruptFrame())
}

// Separate rotates the tray off the cured layer while lifting Z
// (Motor::Separate).
func Separate(cls layersettings.CurrentLayerSettings) Batch {
	b := Batch{
		rSetting(frame.SetMaxJerk, jerkParam(cls.SeparationRJerk)),
		rSetting(frame.SetSpeed, speedParam(cls.SeparationRRPM)),
	}
	if cls.SeparationRotation != 0 {
		b = append(b, rAction(frame.ActionMove, -millidegrees(cls.SeparationRotation)))
	}
	b = append(b,
		zSetting(frame.SetMaxJerk, jerkParam(cls.SeparationZJerk)),
		zSetting(frame.SetSpeed, speedParam(cls.SeparationZSpeed)),
	)
	if cls.SeparationZLift != 0 {
		b = append(b, zAction(frame.ActionMove, microns(cls.SeparationZLift)))
	}
	return append(b, interruptFrame())
}

// Approach rotates the tray back under the projector and lowers Z
// into position for the next exposure. homeOnApproach re-homes R
// instead of a plain move, guarding against a partial jam on
// separation having left R short of where a move alone would assume
// it is (Motor::Approach's HOME_ON_APPROACH setting). Any unjam
// rotate-home attempt is the caller's responsibility (see UnJam) —
// kept as a separate batch rather than folded in here, since the
// sequencer only needs it conditionally.
func Approach(cls layersettings.CurrentLayerSettings, homeOnApproach bool) Batch {
	b := Batch{
		rSetting(frame.SetMaxJerk, jerkParam(cls.ApproachRJerk)),
		rSetting(frame.SetSpeed, speedParam(cls.ApproachRRPM)),
	}
	if cls.SeparationRotation != 0 {
		if homeOnApproach {
			b = append(b, rAction(frame.ActionHome, 2*millidegrees(cls.SeparationRotation)))
		} else {
			b = append(b, rAction(frame.ActionMove, millidegrees(cls.SeparationRotation)))
		}
	}
	b = append(b,
		zSetting(frame.SetMaxJerk, jerkParam(cls.ApproachZJerk)),
		zSetting(frame.SetSpeed, speedParam(cls.ApproachZSpeed)),
	)
	deltaZ := float64(cls.LayerThicknessMicrons) - cls.SeparationZLift
	if deltaZ != 0 {
		b = append(b, zAction(frame.ActionMove, microns(deltaZ)))
	}
	return append(b, interruptFrame())
}

// JerkSpeed is a jerk/speed pair per axis, reused by PauseAndInspect
// and ResumeFromInspect from whatever motion phase last configured
// it (the original firmware reuses homing or start-position values
// rather than carrying yet more dedicated per-layer settings).
type JerkSpeed struct {
	RJerk, RSpeed float64
	ZJerk, ZSpeed float64
}

// PauseAndInspect rotates the tray to block stray projector light
// and, if CanInspect, lifts Z to the inspection height
// (Motor::PauseAndInspect).
func PauseAndInspect(cls layersettings.CurrentLayerSettings, js JerkSpeed) Batch {
	b := Batch{
		rSetting(frame.SetMaxJerk, jerkParam(js.RJerk)),
		rSetting(frame.SetSpeed, speedParam(js.RSpeed)),
	}
	if cls.SeparationRotation != 0 {
		b = append(b, rAction(frame.ActionMove, -millidegrees(cls.SeparationRotation)))
	}
	if cls.CanInspect {
		b = append(b,
			zSetting(frame.SetMaxJerk, jerkParam(js.ZJerk)),
			zSetting(frame.SetSpeed, speedParam(js.ZSpeed)),
			zAction(frame.ActionMove, microns(cls.InspectionHeightMicrons)),
		)
	}
	return append(b, interruptFrame())
}

// ResumeFromInspect reverses PauseAndInspect's motion to return to
// printing (Motor::ResumeFromInspect).
func ResumeFromInspect(cls layersettings.CurrentLayerSettings, js JerkSpeed) Batch {
	b := Batch{
		rSetting(frame.SetMaxJerk, jerkParam(js.RJerk)),
		rSetting(frame.SetSpeed, speedParam(js.RSpeed)),
	}
	if cls.SeparationRotation != 0 {
		b = append(b, rAction(frame.ActionMove, millidegrees(cls.SeparationRotation)))
	}
	if cls.CanInspect {
		b = append(b,
			zSetting(frame.SetMaxJerk, jerkParam(js.ZJerk)),
			zSetting(frame.SetSpeed, speedParam(js.ZSpeed)),
			zAction(frame.ActionMove, microns(-cls.InspectionHeightMicrons)),
		)
	}
	return append(b, interruptFrame())
}

// UnJam attempts recovery by re-homing the tray, then rotating back
// to the current layer's separation angle. withInterrupt is false
// when UnJam is immediately followed by another batch under the same
// interrupt request (Motor::UnJam).
func UnJam(cls layersettings.CurrentLayerSettings, maxSearchDegrees float64, withInterrupt bool) Batch {
	b := Batch{rAction(frame.ActionHome, millidegrees(maxSearchDegrees))}
	if cls.SeparationRotation != 0 {
		b = append(b, rAction(frame.ActionMove, -millidegrees(cls.SeparationRotation)))
	}
	if withInterrupt {
		b = append(b, interruptFrame())
	}
	return b
}
