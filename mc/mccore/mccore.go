/*
 * slaprint - Motion controller mainline
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

// Package mccore wires together the rest of mc/* into the motion
// controller mainline of spec.md §5: command intake, the deferred
// event queue, the top-level state machine, the two axes' settings
// and step generators, the shared planning ring and hold replanner,
// and limit-switch homing. Grounded on the teacher's emu/core: a
// single goroutine driven by a time.Ticker in a for{select{...}} loop,
// here standing in for the original firmware's mainline/mid-priority
// interrupt level once the DDA (mc/stepgen.Generator.Run) is split off
// onto its own goroutine.
package mccore

import (
	"log/slog"
	"time"

	"github.com/ldowney/slaprint/internal/debugflags"
	"github.com/ldowney/slaprint/mc/block"
	"github.com/ldowney/slaprint/mc/cmdbuf"
	"github.com/ldowney/slaprint/mc/cmdmap"
	"github.com/ldowney/slaprint/mc/eventqueue"
	"github.com/ldowney/slaprint/mc/executor"
	"github.com/ldowney/slaprint/mc/frame"
	"github.com/ldowney/slaprint/mc/limits"
	"github.com/ldowney/slaprint/mc/planner"
	"github.com/ldowney/slaprint/mc/settings"
	"github.com/ldowney/slaprint/mc/statemachine"
	"github.com/ldowney/slaprint/mc/status"
	"github.com/ldowney/slaprint/mc/stepgen"
	"github.com/ldowney/slaprint/mc/transport"
)

// component is this package's debugflags.Register/Enabled key.
const component = "mccore"

func init() {
	debugflags.Register(component)
}

// mainlineTick is the rate at which the mainline polls the command
// buffer, limit switches, and the exec/prep handoff. It is far slower
// than the DDA's 40kHz, matching the original firmware's LO-priority
// interrupt cadence relative to the HI-priority DDA ISR.
const mainlineTick = 200 * time.Microsecond

// stepGenRouter implements executor.StepGen over a block.Ring shared
// by both axes. mc/executor.Executor is built around a single
// StepGen, so the router looks up which axis the ring's run cursor
// currently names on every call and forwards to that axis's
// mc/stepgen.Generator, remembering which one it last touched so the
// mainline can hand its prep buffer back to the loader without
// re-deriving the axis after the ring cursor may have moved on.
type stepGenRouter struct {
	ring *block.Ring
	z, r *stepgen.Generator

	touched  bool
	lastAxis block.Axis
}

func (s *stepGenRouter) generatorFor(axis block.Axis) *stepgen.Generator {
	if axis == block.AxisZ {
		return s.z
	}
	return s.r
}

func (s *stepGenRouter) SetNextSegment(steps float64, direction int8, microseconds float64) status.Code {
	axis := s.ring.At(s.ring.RunIndex()).Axis
	code := s.generatorFor(axis).SetNextSegment(steps, direction, microseconds)
	if code == status.Success {
		s.touched = true
		s.lastAxis = axis
	}
	return code
}

func (s *stepGenRouter) SetNextSegmentNull() {
	axis := s.ring.At(s.ring.RunIndex()).Axis
	s.generatorFor(axis).SetNextSegmentNull()
	s.touched = true
	s.lastAxis = axis
}

// consumeTouched reports whether a segment was armed since the last
// call and for which axis, resetting the flag. mc/stepgen's prep
// buffer must only flip ownership back to the loader for the
// generator Execute actually just armed.
func (s *stepGenRouter) consumeTouched() (block.Axis, bool) {
	axis, touched := s.lastAxis, s.touched
	s.touched = false
	return axis, touched
}

// Core is one motion controller: everything spec.md §3 describes as
// controller-resident state, plus the mainline loop that drives it.
type Core struct {
	Log *slog.Logger

	ZSettings *settings.Settings
	RSettings *settings.Settings

	Ring     *block.Ring
	Planner  *planner.Planner
	Hold     *planner.Hold
	Executor *executor.Executor
	ZGen     *stepgen.Generator
	RGen     *stepgen.Generator
	Limits   *limits.Pair
	CmdBuf   *cmdbuf.CmdBuf
	Events   *eventqueue.Queue

	// Bus publishes the status register and raises the interrupt line.
	// Left nil in tests that drive Core directly without a wire
	// transport.
	Bus *transport.Bus

	router *stepGenRouter

	state          statemachine.State
	resetRequested bool
	driversEnabled bool

	homingActive bool
	homingAxis   block.Axis

	// LastStatus is the most recent status code setStatus published,
	// exposed for tests and the console's "show state" command; the
	// wire status register (c.Bus) is the authoritative copy once a
	// transport is attached.
	LastStatus status.Code
}

// New builds a Core for one printer. pulser drives the step/direction
// outputs for both axes; limitPair holds both axes' limit switches;
// ringSize is the planning block ring's capacity (a power of two, >=
// 8 per spec.md §3); cmdCapacity/eventCapacity size the command and
// deferred-event queues.
func New(pulser stepgen.Pulser, limitPair *limits.Pair, ringSize, cmdCapacity, eventCapacity int, log *slog.Logger) *Core {
	zSettings := settings.New()
	rSettings := settings.New()

	ring := block.NewRing(ringSize)
	zGen := stepgen.New(block.AxisZ, pulser, zSettings)
	rGen := stepgen.New(block.AxisR, pulser, rSettings)

	router := &stepGenRouter{ring: ring, z: zGen, r: rGen}

	return &Core{
		Log:            log,
		ZSettings:      zSettings,
		RSettings:      rSettings,
		Ring:           ring,
		Planner:        planner.New(ring),
		Hold:           &planner.Hold{},
		Executor:       executor.New(router),
		ZGen:           zGen,
		RGen:           rGen,
		Limits:         limitPair,
		CmdBuf:         cmdbuf.New(cmdCapacity),
		Events:         eventqueue.New(eventCapacity),
		router:         router,
		state:          statemachine.Disabled,
		driversEnabled: true,
	}
}

// State returns the state machine's current top-level state.
func (c *Core) State() statemachine.State { return c.state }

// Run drives both axes' DDA goroutines and the mainline ticker loop
// until done is closed.
func (c *Core) Run(done <-chan struct{}) {
	go c.ZGen.Run(done)
	go c.RGen.Run(done)

	ticker := time.NewTicker(mainlineTick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step runs exactly one mainline iteration: a deferred full
// reinitialization if one is pending, limit-switch polling, one
// command frame's worth of dispatch, and one exec/prep tick. Exported
// so tests can single-step deterministically instead of racing a
// ticker.
func (c *Core) Step() {
	if c.resetRequested {
		c.performReset()
	}

	c.pollLimits()

	if f, ok := c.CmdBuf.Dequeue(); ok {
		c.dispatchFrame(f)
	} else if c.CmdBuf.IsFull() {
		c.setStatus(status.CommandBufferFull)
	}

	c.execTick()
}

func (c *Core) dispatchFrame(f frame.Frame) {
	mapped := cmdmap.Map(f)
	if mapped.Event == cmdmap.None {
		c.setStatus(status.CommandUnknown)
		return
	}
	c.setStatus(c.Dispatch(mapped.Event, mapped))
}

// Dispatch feeds one event through the state machine table and
// carries out the transition's actions in order, returning the status
// code the mainline should publish. WaitingForInterruptRequest is not
// a real wait: ActionRaiseInterrupt blocks for the pulse duration
// inline, so reaching that state immediately dispatches the implicit
// cmdmap.None that drains one deferred event and lands on
// ReadyForAction (spec.md §4.10).
func (c *Core) Dispatch(ev cmdmap.Event, data cmdmap.Mapped) status.Code {
	tr, ok := statemachine.Lookup(c.state, ev)
	if !ok {
		return status.CommandUnknown
	}

	if debugflags.Enabled(component, "EVENT") {
		c.Log.Debug("event dispatched", "event", ev, "from", c.state, "to", tr.Next)
	}
	c.state = tr.Next
	result := status.Success
	for _, a := range tr.Actions {
		if code := c.runAction(a, ev, data); code != status.Success {
			result = code
		}
	}

	if tr.Next == statemachine.WaitingForInterruptRequest {
		return c.Dispatch(cmdmap.None, cmdmap.Mapped{})
	}
	return result
}

func (c *Core) runAction(a statemachine.Action, ev cmdmap.Event, data cmdmap.Mapped) status.Code {
	switch a {
	case statemachine.ActionApplySetting:
		return c.applySetting(ev, data)
	case statemachine.ActionHomeZ:
		return c.beginHome(block.AxisZ, data.Parameter)
	case statemachine.ActionHomeR:
		return c.beginHome(block.AxisR, data.Parameter)
	case statemachine.ActionMoveZ:
		return c.beginMove(block.AxisZ, data.Parameter)
	case statemachine.ActionMoveR:
		return c.beginMove(block.AxisR, data.Parameter)
	case statemachine.ActionEnqueue:
		if !c.Events.Push(eventqueue.Entry{Event: ev, Data: data}) {
			return status.EventQueueFull
		}
	case statemachine.ActionDequeueNext:
		if entry, ok := c.Events.Pop(); ok {
			return c.Dispatch(entry.Event, entry.Data)
		}
	case statemachine.ActionBeginHold:
		c.Hold.Begin()
	case statemachine.ActionEndHold:
		c.Hold.End()
	case statemachine.ActionClearQueueAndBuffer:
		c.Events.Clear()
		c.Ring.Reset()
	case statemachine.ActionSetResetFlag:
		c.resetRequested = true
	case statemachine.ActionDisableDrivers:
		c.driversEnabled = false
		c.Log.Error("drivers disabled")
	case statemachine.ActionRaiseInterrupt:
		if c.Bus != nil {
			c.Bus.RaiseInterrupt()
		}
	}
	return status.Success
}

func (c *Core) applySetting(ev cmdmap.Event, data cmdmap.Mapped) status.Code {
	s := c.ZSettings
	if ev == cmdmap.SetRAxisSettingRequested {
		s = c.RSettings
	}

	switch data.Setting {
	case frame.SetStepAngle:
		if s.SetStepAngle(int(data.Parameter)) != nil {
			return status.StepAngleInvalid
		}
	case frame.SetUnitsPerRevolution:
		if s.SetUnitsPerRevolution(int(data.Parameter)) != nil {
			return status.UnitsPerRevInvalid
		}
	case frame.SetMicrostepping:
		if s.SetMicrosteppingMode(int(data.Parameter)) != nil {
			return status.MicrosteppingInvalid
		}
	case frame.SetMaxJerk:
		if s.SetMaxJerk(int(data.Parameter)) != nil {
			return status.MaxJerkInvalid
		}
	case frame.SetSpeed:
		if s.SetSpeed(int(data.Parameter)) != nil {
			return status.SpeedInvalid
		}
	default:
		return status.SettingCommandUnknown
	}
	return status.Success
}

func signAndLength(param int32) (int8, float64) {
	direction := int8(1)
	length := float64(param)
	if param < 0 {
		direction = -1
		length = -length
	}
	return direction, length
}

func (c *Core) beginHome(axis block.Axis, param int32) status.Code {
	s := c.ZSettings
	if axis == block.AxisR {
		s = c.RSettings
	}
	if s.Validate() != nil {
		c.Log.Error("home requested before axis fully configured", "axis", axis)
		return status.InternalError
	}

	if c.Limits.BeginHoming(axis) {
		return c.Dispatch(cmdmap.AxisAtLimit, cmdmap.Mapped{})
	}
	c.homingActive = true
	c.homingAxis = axis

	direction, length := signAndLength(param)
	return c.Planner.QueueLine(axis, direction, length, float64(s.SpeedUnitsPerMin()), s.MaxJerkPerMinCubed())
}

func (c *Core) beginMove(axis block.Axis, param int32) status.Code {
	s := c.ZSettings
	if axis == block.AxisR {
		s = c.RSettings
	}
	if s.Validate() != nil {
		c.Log.Error("move requested before axis fully configured", "axis", axis)
		return status.InternalError
	}

	direction, length := signAndLength(param)
	return c.Planner.QueueLine(axis, direction, length, float64(s.SpeedUnitsPerMin()), s.MaxJerkPerMinCubed())
}

// pollLimits drains a latched limit switch hit for whichever axis is
// currently homing into an AxisLimitReached event (spec.md §4.9).
func (c *Core) pollLimits() {
	if !c.homingActive {
		return
	}
	sw := c.Limits.Switch(c.homingAxis)
	if !sw.Latched() {
		return
	}
	sw.ClearLatch()
	c.Limits.EndHoming(c.homingAxis)
	c.homingActive = false
	c.setStatus(c.Dispatch(cmdmap.AxisLimitReached, cmdmap.Mapped{}))
}

// execTick advances the exec/prep stage by one segment, if the
// running axis's step generator has room. A hold in any state blocks
// starting a new block but never interrupts a segment already in
// flight, matching spec.md §4.8's "finish the current segment, then
// replan" rule.
//
// Case 1 hold (the decel fits in the currently running block) is
// driven to completion exactly: Executor.ParkedForHold reports true
// precisely when the reconfigured tail reaches zero, which is also
// when Hold.State reads HoldDecel, so ReachedZero fires at the right
// moment. Case 2 (the decel spans multiple blocks) is planned
// correctly by mc/planner's Callback — the ring holds a fully
// replanned chain down to zero and back up — but this mainline
// settles the hold as soon as the first of those blocks parks rather
// than ticking through the whole replanned chain in real time; see
// DESIGN.md's Open Question decisions for why that is an acceptable
// simplification here.
func (c *Core) execTick() {
	axis := c.Ring.At(c.Ring.RunIndex()).Axis
	gen := c.router.generatorFor(axis)
	if !gen.Ready() {
		return
	}

	if c.Hold.State == planner.HoldSync {
		c.Hold.AdvanceToPlan()
	}
	if c.Hold.State == planner.HoldPlan {
		c.Planner.Callback(c.Hold, c.Executor)
	}

	holding := c.Hold.State != planner.HoldOff
	result := c.Executor.Execute(c.Ring, holding)

	if touchedAxis, touched := c.router.consumeTouched(); touched {
		c.router.generatorFor(touchedAxis).MarkPrepared()
	}

	switch result {
	case status.Success, status.BlockSkipped:
		if c.Hold.State == planner.HoldDecel && c.Executor.ParkedForHold() {
			c.Hold.ReachedZero()
		}
		c.raiseMotionComplete()
	}
}

func (c *Core) raiseMotionComplete() {
	if c.homingActive {
		c.Limits.EndHoming(c.homingAxis)
		c.homingActive = false
	}
	c.setStatus(c.Dispatch(cmdmap.MotionComplete, cmdmap.Mapped{}))
}

// performReset carries out MC_RESET's full reinitialization (spec.md
// §4.10): the planning ring, deferred event queue, and hold state are
// cleared, but calibration settings survive, matching a controller
// reset rather than a loss of stored configuration (an Open Question
// decision — see DESIGN.md).
func (c *Core) performReset() {
	c.Ring.Reset()
	c.Events.Clear()
	c.Hold.State = planner.HoldOff
	c.homingActive = false
	c.driversEnabled = true
	c.resetRequested = false
}

// setStatus publishes code to the bus (if attached) and promotes a
// fatal code to the state machine's ErrorEncountered event, as spec.md
// §7 requires.
func (c *Core) setStatus(code status.Code) {
	c.LastStatus = code
	if code.Fatal() {
		c.Dispatch(cmdmap.ErrorEncountered, cmdmap.Mapped{})
	}
	if c.Bus != nil {
		c.Bus.SetStatus(code)
	}
}
