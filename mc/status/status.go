/*
 * slaprint - Motion controller status codes
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

// Package status holds the exhaustive set of status codes the motion
// controller exposes over its one-byte status register.
package status

// Code is the motion controller's single-byte status register value.
type Code uint8

const (
	Success Code = iota
	Error
	EAgain
	Noop
	Complete
	SettingCommandUnknown
	MaxJerkInvalid
	SpeedInvalid
	MicrosteppingInvalid
	UnitsPerRevInvalid
	StepAngleInvalid
	PlannerBufferFull
	CommandBufferFull
	EventQueueFull
	CommandUnknown
	StateMachineError
	MoveLengthTooSmall
	MoveTimeTooSmall
	BlockSkipped
	InternalError
)

var names = [...]string{
	"success", "error", "eagain", "noop", "complete",
	"settingCommandUnknown", "maxJerkInvalid", "speedInvalid",
	"microsteppingInvalid", "unitsPerRevInvalid", "stepAngleInvalid",
	"plannerBufferFull", "commandBufferFull", "eventQueueFull",
	"commandUnknown", "stateMachineError", "moveLengthTooSmall",
	"moveTimeTooSmall", "blockSkipped", "internalError",
}

func (c Code) String() string {
	if int(c) < len(names) {
		return names[c]
	}
	return "unknown"
}

// Fatal reports whether c is a fatal kind that must promote to the
// state machine's ErrorEncountered event (spec.md §7).
func (c Code) Fatal() bool {
	return c == CommandBufferFull || c == StateMachineError || c == InternalError
}
