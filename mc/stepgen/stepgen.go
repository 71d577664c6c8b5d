/*
 * slaprint - DDA step pulse generator
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

// Package stepgen implements the DDA (digital differential analyzer)
// step pulse generator of spec.md §4.7: a phase-accumulator that
// turns a segment's (steps, direction, duration) into evenly spaced
// step pulses, plus the prep/run double buffer handoff that lets the
// segment executor prepare the next segment's parameters while the
// DDA is still running the current one.
//
// Ported from the original firmware's stepper.c (itself TinyG's
// stepper subsystem): st_prep_line -> SetNextSegment, the DDA ISR ->
// Generator.tick, _load_move -> Generator.loadMove. The three
// execution levels the original runs at (HI ISR for the DDA, MED ISR
// for load, LO ISR for exec/prep) become, per SPEC_FULL.md's
// concurrency model, a single DDA-rate goroutine (Run) that also
// performs the load-move handoff inline rather than through a second
// interrupt level, since Go has no interrupt priority levels to
// exploit there.
package stepgen

import (
	"sync/atomic"
	"time"

	"github.com/ldowney/slaprint/mc/block"
	"github.com/ldowney/slaprint/mc/settings"
	"github.com/ldowney/slaprint/mc/status"
)

// Substeps scales phase accumulator resolution above the DDA's tick
// rate so that phase error per step stays bounded (the original
// firmware's DDA_SUBSTEPS).
const substeps = 4

// accumulatorResetFactor triggers a phase accumulator reset when a
// segment's tick count falls below prevTicks by more than this
// factor, preventing a large velocity drop between segments from
// stalling the accumulator near its prior operating point (the
// original firmware's ACCUMULATOR_RESET_FACTOR anti-stall measure).
const accumulatorResetFactor = 2

// ddaFrequencyHz is the configured DDA tick rate. 40kHz matches the
// original AVR firmware's F_DDA for a single axis.
const ddaFrequencyHz = 40000.0

// Pulser is the hardware seam: one step edge and one direction
// latch per axis. This repository has no GPIO bus to drive (see
// SPEC_FULL.md's DOMAIN STACK section), so Pulser is implemented by a
// test double or by internal/simhw's Simulator; a real
// deployment would back it with a GPIO driver.
type Pulser interface {
	SetDirection(axis block.Axis, reverse bool)
	Pulse(axis block.Axis)
}

// execState mirrors the original firmware's prepBufferState enum: who
// currently owns the prep buffer.
type execState int32

const (
	ownedByLoader execState = iota
	ownedByExec
)

// prep holds the parameters for the next segment, written by
// SetNextSegment (running as the "exec" stage) and consumed by
// loadMove (running as the "load" stage) once the DDA signals it is
// ready by ticking its downcounter to zero.
type prep struct {
	moveType        moveType
	phaseIncrement  uint32
	reverse         bool
	ddaPeriod       time.Duration
	ddaTicks        uint32
	ddaTicksSubstep uint32
	resetFlag       bool
	prevTicks       uint32
}

type moveType int

const (
	moveNull moveType = iota
	moveLine
)

// run holds the DDA's own runtime state: phase accumulator, total
// remaining ticks for the segment in flight, and which axis/direction
// it is pulsing. Touched only from the Run goroutine.
type run struct {
	axis              block.Axis
	phaseAccumulator  int64
	phaseIncrement    int64
	ticksXSubstep     int64
	ticksDowncount    int64
}

// Generator is the DDA step generator for one axis.
type Generator struct {
	axis     block.Axis
	pulser   Pulser
	settings *settings.Settings

	state atomic.Int32 // execState, set by both SetNextSegment and loadMove

	prep prep
	run  run

	kick chan struct{} // wakes Run to retry loadMove without waiting a full tick
}

// New returns a Generator for axis, pulsing through pulser and
// converting user-unit distances to pulses via cal.
func New(axis block.Axis, pulser Pulser, cal *settings.Settings) *Generator {
	g := &Generator{
		axis:     axis,
		pulser:   pulser,
		settings: cal,
		kick:     make(chan struct{}, 1),
	}
	g.state.Store(int32(ownedByExec))
	return g
}

// SetNextSegment implements executor.StepGen: it is st_prep_line
// translated to Go. steps is a signed distance in user units;
// microseconds is the segment duration. It returns status.EAgain if
// the prep buffer is still owned by the loader (the executor must not
// have called this without first observing ownedByExec) or
// status.MoveTimeTooSmall if microseconds is too small to produce a
// usable DDA period.
func (g *Generator) SetNextSegment(steps float64, direction int8, microseconds float64) status.Code {
	if execState(g.state.Load()) != ownedByExec {
		return status.EAgain
	}
	if microseconds < 1 {
		return status.MoveTimeTooSmall
	}

	pulses := g.settings.PulsesPerUnit() * steps
	if pulses < 0 {
		pulses = -pulses
	}

	p := &g.prep
	p.moveType = moveLine
	p.reverse = direction < 0
	p.phaseIncrement = uint32(pulses * substeps)
	p.ddaPeriod = time.Duration(1e9 / ddaFrequencyHz)
	p.ddaTicks = uint32(microseconds / 1e6 * ddaFrequencyHz)
	p.ddaTicksSubstep = p.ddaTicks * substeps

	if p.ddaTicks*accumulatorResetFactor < p.prevTicks {
		p.resetFlag = true
	} else {
		p.resetFlag = false
	}
	p.prevTicks = p.ddaTicks

	return status.Success
}

// SetNextSegmentNull implements executor.StepGen: arms an empty
// segment so the loader has something to consume when a block turns
// out to be zero-length (st_prep_null).
func (g *Generator) SetNextSegmentNull() {
	if execState(g.state.Load()) != ownedByExec {
		return
	}
	g.prep.moveType = moveNull
}

// requestLoad wakes Run to attempt loadMove immediately rather than
// waiting for the next DDA tick, mirroring _request_load_move's
// software interrupt trick.
func (g *Generator) requestLoad() {
	select {
	case g.kick <- struct{}{}:
	default:
	}
}

// Busy reports whether the DDA is mid-segment.
func (g *Generator) Busy() bool {
	return g.run.ticksDowncount != 0
}

// Run drives the DDA at the configured tick rate until done is
// closed. Each tick advances the phase accumulator and emits a
// pulse when it overflows; when a segment's tick count is exhausted
// it loads the next one from the prep buffer.
func (g *Generator) Run(done <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(1e9 / ddaFrequencyHz))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-g.kick:
			g.loadMove()
		case <-ticker.C:
			g.tick()
		}
	}
}

// tick is one DDA clock edge: the phase_accumulator update and pulse
// emission from the original ISR, run inline rather than from a
// hardware timer interrupt.
func (g *Generator) tick() {
	r := &g.run
	if r.ticksDowncount == 0 {
		return
	}

	r.phaseAccumulator += r.phaseIncrement
	if r.phaseAccumulator > 0 {
		g.pulser.Pulse(g.axis)
		r.phaseAccumulator -= r.ticksXSubstep
	}

	r.ticksDowncount--
	if r.ticksDowncount == 0 {
		g.loadMove()
	}
}

// loadMove dequeues the prep buffer into the run struct (_load_move).
// It is a no-op if the DDA is still busy or the prep buffer has
// nothing new; MotionComplete is the caller's responsibility to
// observe via Busy() returning false with nothing pending.
func (g *Generator) loadMove() {
	r := &g.run
	if r.ticksDowncount != 0 {
		return
	}
	if execState(g.state.Load()) != ownedByLoader {
		return
	}

	p := &g.prep
	if p.moveType == moveLine {
		r.ticksDowncount = int64(p.ddaTicks)
		r.ticksXSubstep = int64(p.ddaTicksSubstep)
		r.phaseIncrement = int64(p.phaseIncrement)
		if p.resetFlag {
			r.phaseAccumulator = -r.ticksDowncount
		}
		if r.phaseIncrement != 0 {
			g.pulser.SetDirection(g.axis, p.reverse)
		}
	}

	g.state.Store(int32(ownedByExec))
	g.requestExec()
}

// requestExec signals the exec stage (the segment executor driving
// SetNextSegment) that the prep buffer is free again. In this port
// the executor polls Generator.Ready rather than being interrupted,
// so this does nothing: loadMove has already flipped the ownership
// flag that Ready reports; see mc/mccore for the main loop that polls
// it.
func (g *Generator) requestExec() {}

// Ready reports whether the prep buffer is free for the executor to
// fill via SetNextSegment.
func (g *Generator) Ready() bool {
	return execState(g.state.Load()) == ownedByExec
}

// MarkPrepared transitions the prep buffer from exec-owned to
// loader-owned once the executor has finished calling SetNextSegment
// (or SetNextSegmentNull) for this segment, and wakes the DDA to try
// loading it immediately if it is currently idle.
func (g *Generator) MarkPrepared() {
	g.state.Store(int32(ownedByLoader))
	if !g.Busy() {
		g.requestLoad()
	}
}
