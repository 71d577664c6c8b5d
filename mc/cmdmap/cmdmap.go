/*
 * slaprint - Command to state-machine event mapping
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

// Package cmdmap implements the fixed, build-time (register, action)
// -> event mapping of spec.md §4.2, plus the event codes the MC state
// machine (mc/statemachine) dispatches on, whether they originate from
// a decoded command frame or are raised internally (limit switches,
// motion completion, errors).
package cmdmap

import "github.com/ldowney/slaprint/mc/frame"

// Event is an opaque state-machine event code. The zero value, None,
// means "invalid combination" and must leave printer state unchanged.
type Event int

const (
	None Event = iota
	EnableRequested
	DisableRequested
	ResetRequested
	ClearRequested
	PauseRequested
	ResumeRequested
	InterruptRequested
	HomeZAxisRequested
	HomeRAxisRequested
	MoveZAxisRequested
	MoveRAxisRequested
	SetZAxisSettingRequested
	SetRAxisSettingRequested
	AxisLimitReached
	AxisAtLimit
	MotionComplete
	DecelerationStarted
	ErrorEncountered
)

var eventNames = [...]string{
	"none", "enableRequested", "disableRequested", "resetRequested",
	"clearRequested", "pauseRequested", "resumeRequested",
	"interruptRequested", "homeZAxisRequested", "homeRAxisRequested",
	"moveZAxisRequested", "moveRAxisRequested", "setZAxisSettingRequested",
	"setRAxisSettingRequested", "axisLimitReached", "axisAtLimit",
	"motionComplete", "decelerationStarted", "errorEncountered",
}

func (e Event) String() string {
	if int(e) >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Mapped is the result of mapping one command frame to an event: the
// event itself, plus whatever payload the state machine or a
// downstream component (settings store, planner) needs to act on it.
type Mapped struct {
	Event     Event
	Setting   uint8 // sub-code from frame.Set* (only for SetXAxisSettingRequested)
	Parameter int32
}

var generalEvents = map[uint8]Event{
	frame.CmdInterrupt: InterruptRequested,
	frame.CmdReset:     ResetRequested,
	frame.CmdPause:     PauseRequested,
	frame.CmdClear:     ClearRequested,
	frame.CmdResume:    ResumeRequested,
	frame.CmdEnable:    EnableRequested,
	frame.CmdDisable:   DisableRequested,
}

// Map translates one decoded command frame into an event. It returns
// Mapped{Event: None} for any register/action combination that is not
// recognized; callers must leave state unchanged and report
// status.CommandUnknown without mutating anything.
func Map(f frame.Frame) Mapped {
	switch f.Register {
	case frame.GeneralReg:
		ev, ok := generalEvents[f.Action]
		if !ok {
			return Mapped{}
		}
		return Mapped{Event: ev}

	case frame.ZSettingReg, frame.RSettingReg:
		if f.Action > frame.SetSpeed {
			return Mapped{}
		}
		ev := SetZAxisSettingRequested
		if f.Register == frame.RSettingReg {
			ev = SetRAxisSettingRequested
		}
		return Mapped{Event: ev, Setting: f.Action, Parameter: f.Parameter}

	case frame.ZActionReg, frame.RActionReg:
		isZ := f.Register == frame.ZActionReg
		switch f.Action {
		case frame.ActionMove:
			ev := MoveRAxisRequested
			if isZ {
				ev = MoveZAxisRequested
			}
			return Mapped{Event: ev, Parameter: f.Parameter}
		case frame.ActionHome:
			ev := HomeRAxisRequested
			if isZ {
				ev = HomeZAxisRequested
			}
			return Mapped{Event: ev, Parameter: f.Parameter}
		default:
			return Mapped{}
		}

	default:
		return Mapped{}
	}
}
