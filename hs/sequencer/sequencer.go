/*
 * slaprint - Host print-cycle sequencer
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

// Package sequencer implements the host print state machine (spec.md
// §4.11, §4.12): the hierarchical Initializing -> Home ->
// MovingToStartPosition -> PrintingLayer{...} -> completion flow,
// pause/resume at layer boundaries, door-open deep history, and the
// tray-jam detection/recovery loop. Grounded on
// original_source/gem/PrintEngine.cpp and
// original_source/gem/PrinterStateMachine.cpp's event-to-transition
// shape (a single-threaded event loop dispatching into a switch over
// the current state, rather than the MC's generated transition table
// — spec.md's design note §9 only mandates the table-driven approach
// for the MC's 101-row, code-generated table; the host side is small
// enough, and varied enough per state, to stay a direct port of
// PrintEngine.cpp's Callback/transition shape), and on
// original_source/C++/Motor.cpp/LayerSettings.cpp for what each phase
// sends and resolves. Deep history for DoorOpen is implemented
// explicitly per design note §9: preDoorState records the leaf the
// machine was in when the door opened, dispatched directly on close
// rather than through a generic history stack.
package sequencer

import (
	"log/slog"
	"time"

	"github.com/ldowney/slaprint/hs/builder"
	"github.com/ldowney/slaprint/hs/layersettings"
	"github.com/ldowney/slaprint/hs/status"
	"github.com/ldowney/slaprint/hs/timerqueue"
	"github.com/ldowney/slaprint/internal/debugflags"
	"github.com/ldowney/slaprint/mc/frame"
	mcstatus "github.com/ldowney/slaprint/mc/status"
)

// component is this package's debugflags.Register/Enabled key, the
// way the teacher's debugconfig names a target per device/channel.
const component = "sequencer"

func init() {
	debugflags.Register(component)
}

// State is one leaf of the host print state machine.
type State int

const (
	Idle State = iota
	Initializing
	Homing
	Home
	MovingToStartPosition
	Pressing
	PressDelay
	Unpressing
	PreExposureDelay
	Exposing
	Separating
	Approaching
	MovingToPause
	Paused
	MovingToResume
	Unjamming
	Jammed
	AwaitingCancelation
	ConfirmCancel
	GettingFeedback
	DoorOpen
	Complete
	Error
)

var stateNames = [...]string{
	"idle", "initializing", "homing", "home", "movingToStartPosition",
	"pressing", "pressDelay", "unpressing", "preExposureDelay", "exposing",
	"separating", "approaching", "movingToPause", "paused", "movingToResume",
	"unjamming", "jammed", "awaitingCancelation", "confirmCancel",
	"gettingFeedback", "doorOpen", "complete", "error",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ImageSink is the slice-image projector seam (spec.md §6): the core
// only ever asks it to show layer n's image or go black.
type ImageSink interface {
	SetImage(layer int)
	ShowBlack()
}

// Config carries the tunables SPEC_FULL.md's SUPPLEMENTED FEATURES
// names but spec.md leaves as external configuration: homing/start
// motion parameters, the inspect jerk/speed pair, the motor-timeout
// formula's margin, and jam-retry limits.
type Config struct {
	Calibration    builder.Calibration
	Home           builder.HomeParams
	Start          builder.StartPositionParams
	Inspect        builder.JerkSpeed
	HomeOnApproach bool

	// MinTimeout and TimeoutMarginFactor implement SUPPLEMENTED
	// FEATURES #2's guard-timer sizing: timeout = max(MinTimeout,
	// expectedSeconds * TimeoutMarginFactor).
	MinTimeout          time.Duration
	TimeoutMarginFactor float64

	// JamMaxRetries is how many consecutive unjam rotate-home attempts
	// are made before giving up and entering Jammed (spec.md §4.12).
	JamMaxRetries    int
	JamSearchDegrees float64
}

// Sequencer is one print job's host-side state machine. It owns no
// goroutines of its own besides Run; all external inputs arrive
// through its Notify* methods, which are safe to call from any
// goroutine (they push onto a channel the Run loop drains), keeping
// every state mutation on Run's single goroutine per spec.md §5's
// "state-machine transitions are atomic with respect to event
// dispatch."
type Sequencer struct {
	Log        *slog.Logger
	Conn       batchWriter
	IRQ        notifier
	Timers     *timerqueue.Queue
	Resolver   *layersettings.Resolver
	Images     ImageSink
	StatusSink status.Sink
	ClassFor   func(layer int) layersettings.LayerClass
	Cfg        Config

	TotalLayers int
	JobID       string

	state        State
	preDoorState State
	preCancel    State
	currentLayer int
	cls          layersettings.CurrentLayerSettings
	rotationSeen bool
	jamRetries   int
	pauseWanted  bool
	estimator    status.Estimator
	timeoutSeq   int

	events chan event
	done   chan struct{}
}

// batchWriter and notifier are the narrow seams to internal/bus.Conn
// and internal/bus.Line, so this package has no import-time
// dependency on the in-process wiring choice.
type batchWriter interface {
	WriteFrames(frames []frame.Frame) error
	ReadStatus() (mcstatus.Code, error)
}

type notifier interface {
	Notify() <-chan struct{}
}

type eventKind int

const (
	evMotionComplete eventKind = iota
	evTimerFired
	evDoorOpened
	evDoorClosed
	evPause
	evResume
	evCancel
	evConfirmCancel
	evDenyCancel
	evRotationPulse
	evStart
	evDismiss
)

type event struct {
	kind   eventKind
	timer  timerqueue.Fired
	status mcstatus.Code
}

// New returns a Sequencer in Idle, ready for StartPrint.
func New(conn batchWriter, irq notifier, timers *timerqueue.Queue, resolver *layersettings.Resolver, images ImageSink, sink status.Sink, classFor func(int) layersettings.LayerClass, cfg Config, log *slog.Logger) *Sequencer {
	return &Sequencer{
		Conn: conn, IRQ: irq, Timers: timers, Resolver: resolver,
		Images: images, StatusSink: sink, ClassFor: classFor, Cfg: cfg,
		Log: log, state: Idle, events: make(chan event, 16), done: make(chan struct{}),
	}
}

// Run drains IRQ/status and timer firings into the event channel and
// dispatches every event on one goroutine until Stop is called.
func (s *Sequencer) Run() {
	go s.pumpMotion()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.dispatch(ev)
		case fired := <-s.Timers.Fired():
			s.dispatch(event{kind: evTimerFired, timer: fired})
		}
	}
}

// Stop ends Run.
func (s *Sequencer) Stop() { close(s.done) }

func (s *Sequencer) pumpMotion() {
	for {
		select {
		case <-s.done:
			return
		case <-s.IRQ.Notify():
			code, err := s.Conn.ReadStatus()
			if err != nil {
				s.Log.Error("status read failed", "error", err)
				continue
			}
			select {
			case s.events <- event{kind: evMotionComplete, status: code}:
			case <-s.done:
				return
			}
		}
	}
}

// State returns the current leaf state (DoorOpen/AwaitingCancelation
// included) for a status snapshot or console "show state" command.
func (s *Sequencer) State() State { return s.state }

// setState records a state transition, logging it at Debug level when
// the console has turned on the "STATE" debug flag for this component
// (console "debug sequencer state").
func (s *Sequencer) setState(next State) {
	if debugflags.Enabled(component, "STATE") {
		s.Log.Debug("state transition", "from", s.state, "to", next)
	}
	s.state = next
}

// --- external notifications -------------------------------------------------

// StartPrint begins a job of totalLayers layers under jobID.
func (s *Sequencer) StartPrint(jobID string, totalLayers int) {
	s.JobID = jobID
	s.TotalLayers = totalLayers
	s.events <- event{kind: evStart}
}

func (s *Sequencer) NotifyDoorOpened()    { s.events <- event{kind: evDoorOpened} }
func (s *Sequencer) NotifyDoorClosed()    { s.events <- event{kind: evDoorClosed} }
func (s *Sequencer) RequestPause()        { s.events <- event{kind: evPause} }
func (s *Sequencer) RequestResume()       { s.events <- event{kind: evResume} }
func (s *Sequencer) RequestCancel()       { s.events <- event{kind: evCancel} }
func (s *Sequencer) ConfirmCancel()       { s.events <- event{kind: evConfirmCancel} }
func (s *Sequencer) DenyCancel()          { s.events <- event{kind: evDenyCancel} }
func (s *Sequencer) NotifyRotationPulse() { s.events <- event{kind: evRotationPulse} }

// Dismiss returns a terminal state (Complete, GettingFeedback, Error)
// to Idle so a new StartPrint may be issued.
func (s *Sequencer) Dismiss() { s.events <- event{kind: evDismiss} }

// --- dispatch ----------------------------------------------------------------

func (s *Sequencer) dispatch(ev event) {
	// Door and cancel requests pre-empt whatever the current leaf is
	// doing, matching spec.md §4.11's "Door-open at any time during a
	// print transitions to DoorOpen with deep history."
	switch ev.kind {
	case evDoorOpened:
		if s.state != DoorOpen && s.state != Idle {
			s.preDoorState = s.state
			s.setState(DoorOpen)
			s.publish()
		}
		return
	case evDoorClosed:
		if s.state == DoorOpen {
			s.setState(s.preDoorState)
			s.publish()
		}
		return
	case evCancel:
		if s.state != Idle && s.state != AwaitingCancelation && s.state != Complete {
			s.preCancel = s.state
			s.setState(AwaitingCancelation)
			s.publish()
		}
		return
	case evDenyCancel:
		if s.state == AwaitingCancelation {
			s.setState(s.preCancel)
			s.publish()
		}
		return
	case evDismiss:
		switch s.state {
		case Complete, GettingFeedback, Error:
			s.setState(Idle)
			s.publish()
		}
		return
	case evPause:
		// Honored at the next layer boundary (spec.md §4.11), not
		// acted on immediately: latched here, consumed by
		// onSeparatingEvent/completeLayer.
		s.pauseWanted = true
		return
	case evTimerFired:
		if ev.timer.Kind == timerqueue.MotorTimeout {
			s.Log.Error("motor timeout expired", "state", s.state)
			s.setState(Error)
			s.publish()
			return
		}
	case evMotionComplete:
		s.Timers.Stop(timerqueue.MotorTimeout)
		if ev.status.Fatal() {
			s.Log.Error("motion controller reported a fatal status", "code", ev.status)
			s.setState(Error)
			s.publish()
			return
		}
	case evConfirmCancel:
		if s.state == AwaitingCancelation {
			s.setState(ConfirmCancel)
			s.Timers.StopAll()
			s.send(builder.ClearPendingCommands(true), 0, 1)
			s.setState(GettingFeedback)
			s.publish()
		}
		return
	}

	switch s.state {
	case Idle:
		if ev.kind == evStart {
			s.beginInitializing()
		}
	case Homing:
		s.onHomingEvent(ev)
	case MovingToStartPosition:
		if ev.kind == evMotionComplete {
			s.beginLayer(1)
		}
	case Pressing:
		if ev.kind == evMotionComplete {
			s.setState(PressDelay)
			s.Timers.Start(timerqueue.PressWait, secs(s.cls.PressWaitSec))
		}
	case PressDelay:
		if ev.kind == evTimerFired && ev.timer.Kind == timerqueue.PressWait {
			s.setState(Unpressing)
			s.send(builder.Unpress(s.cls), s.cls.PressDepth, s.cls.UnpressSpeed)
		}
	case Unpressing:
		if ev.kind == evMotionComplete {
			s.setState(PreExposureDelay)
			s.Timers.Start(timerqueue.PreExposureDelay, secs(s.cls.PreExposureDelaySec))
		}
	case PreExposureDelay:
		if ev.kind == evTimerFired && ev.timer.Kind == timerqueue.PreExposureDelay {
			s.setState(Exposing)
			s.Images.SetImage(s.currentLayer)
			s.Timers.Start(timerqueue.Exposure, secs(s.cls.ExposureSec))
		}
	case Exposing:
		if ev.kind == evTimerFired && ev.timer.Kind == timerqueue.Exposure {
			s.Images.ShowBlack()
			s.rotationSeen = false
			s.setState(Separating)
			s.send(builder.Separate(s.cls), s.cls.SeparationRotation, s.cls.SeparationRRPM)
		}
	case Separating:
		s.onSeparatingEvent(ev)
	case Unjamming:
		switch ev.kind {
		case evRotationPulse:
			s.rotationSeen = true
		case evMotionComplete:
			s.afterUnjamAttempt()
		}
	case Jammed:
		if ev.kind == evResume {
			s.jamRetries = 0
			s.setState(Unjamming)
			s.send(builder.UnJam(s.cls, s.Cfg.JamSearchDegrees, true), s.Cfg.JamSearchDegrees, s.cls.SeparationRRPM)
		}
	case Approaching:
		if ev.kind == evMotionComplete {
			s.completeLayer()
		}
	case MovingToPause:
		if ev.kind == evMotionComplete {
			s.setState(Paused)
			s.publish()
		}
	case Paused:
		if ev.kind == evResume {
			s.setState(MovingToResume)
			s.send(builder.ResumeFromInspect(s.cls, s.Cfg.Inspect), 0, 1)
		}
	case MovingToResume:
		if ev.kind == evMotionComplete {
			s.setState(Approaching)
			s.sendApproach()
		}
	}
}

func (s *Sequencer) onHomingEvent(ev event) {
	if ev.kind == evMotionComplete {
		s.setState(Home)
		s.beginMoveToStart()
	}
}

func (s *Sequencer) onSeparatingEvent(ev event) {
	switch ev.kind {
	case evRotationPulse:
		s.rotationSeen = true
	case evMotionComplete:
		if s.pauseWanted {
			s.pauseWanted = false
			s.setState(MovingToPause)
			s.send(builder.PauseAndInspect(s.cls, s.Cfg.Inspect), 0, 1)
			return
		}
		if !s.rotationSeen {
			s.jamRetries = 0
			s.setState(Unjamming)
			s.send(builder.UnJam(s.cls, s.Cfg.JamSearchDegrees, true), s.Cfg.JamSearchDegrees, s.cls.SeparationRRPM)
			return
		}
		s.setState(Approaching)
		s.sendApproach()
	}
}

func (s *Sequencer) afterUnjamAttempt() {
	if s.rotationSeen {
		s.setState(Approaching)
		s.sendApproach()
		return
	}
	s.jamRetries++
	if s.jamRetries >= s.Cfg.JamMaxRetries {
		s.setState(Jammed)
		s.publish()
		return
	}
	s.send(builder.UnJam(s.cls, s.Cfg.JamSearchDegrees, true), s.Cfg.JamSearchDegrees, s.cls.SeparationRRPM)
}

func (s *Sequencer) sendApproach() {
	s.send(builder.Approach(s.cls, s.Cfg.HomeOnApproach), s.cls.SeparationRotation, s.cls.ApproachRRPM)
}

func (s *Sequencer) beginInitializing() {
	s.setState(Initializing)
	s.estimator.StartJob(time.Now())
	s.send(builder.Calibrate(s.Cfg.Calibration), 0, 1)
	s.setState(Homing)
	s.send(builder.GoHome(s.Cfg.Home, true), s.Cfg.Home.ZHomeMaxMicrons, s.Cfg.Home.ZSpeed)
}

func (s *Sequencer) beginMoveToStart() {
	s.setState(MovingToStartPosition)
	s.send(builder.GoToStartPosition(s.Cfg.Start), s.Cfg.Start.ZStartMicrons, s.Cfg.Start.ZSpeed)
}

func (s *Sequencer) beginLayer(layer int) {
	s.currentLayer = layer
	s.estimator.StartLayer(time.Now())
	s.cls = s.Resolver.Resolve(s.ClassFor(layer), layer)
	s.setState(Pressing)
	s.send(builder.Press(s.cls), s.cls.PressDepth, s.cls.PressSpeed)
}

func (s *Sequencer) completeLayer() {
	s.estimator.CompleteLayer(time.Now())
	s.publish()
	if s.pauseWanted {
		// A pause requested during Approaching is honored at this
		// layer boundary, same as one requested during Separating.
		s.pauseWanted = false
		s.setState(MovingToPause)
		s.send(builder.PauseAndInspect(s.cls, s.Cfg.Inspect), 0, 1)
		return
	}
	if s.currentLayer >= s.TotalLayers {
		s.setState(Complete)
		s.publish()
		return
	}
	s.beginLayer(s.currentLayer + 1)
}

// send writes batch to the MC and arms a motor-timeout timer sized
// from the dominant motion's distance and speed (SUPPLEMENTED
// FEATURES #2). A zero speed disarms sizing and uses MinTimeout
// alone, for batches with no blocking motion (settings-only, Clear).
func (s *Sequencer) send(batch builder.Batch, distance, speed float64) {
	frames := make([]frame.Frame, len(batch))
	copy(frames, batch)
	if err := s.Conn.WriteFrames(frames); err != nil {
		s.Log.Error("bus write failed", "error", err)
		s.setState(Error)
		s.publish()
		return
	}
	s.armTimeout(distance, speed)
}

func (s *Sequencer) armTimeout(distance, speed float64) {
	timeout := s.Cfg.MinTimeout
	if speed > 0 {
		expected := time.Duration(distance/speed*60) * time.Second
		scaled := time.Duration(float64(expected) * s.Cfg.TimeoutMarginFactor)
		if scaled > timeout {
			timeout = scaled
		}
	}
	s.Timers.Start(timerqueue.MotorTimeout, timeout)
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (s *Sequencer) publish() {
	if s.StatusSink == nil {
		return
	}
	remaining := s.estimator.SecondsRemaining(s.TotalLayers - s.currentLayer)
	s.StatusSink.Publish(status.Snapshot{
		State:        s.state.String(),
		IsError:      s.state == Error || s.state == Jammed,
		JobID:        s.JobID,
		CurrentLayer: s.currentLayer,
		TotalLayers:  s.TotalLayers,
		SecondsLeft:  remaining,
	})
}
