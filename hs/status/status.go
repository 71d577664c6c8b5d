/*
 * slaprint - Printer status snapshot
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

// Package status builds the printer status snapshot spec.md §3 names
// ("state name, substate name, is-error/code, layer index, total
// layers, seconds remaining, temperature, job identity. Pure value
// type; never shared mutably") and the seconds-remaining
// estimator SPEC_FULL.md's SUPPLEMENTED FEATURES #4 recovers from
// original_source/C++/PrinterStatus.cpp.
package status

import "time"

// Snapshot is one point-in-time status value emitted to the host
// status sink. It carries no pointers or channels, matching spec.md's
// "never shared mutably" invariant: every field is copied by value.
type Snapshot struct {
	State        string
	Substate     string
	IsError      bool
	ErrorCode    string
	JobID        string
	CurrentLayer int
	TotalLayers  int
	SecondsLeft  int
	Temperature  float64
}

// Sink is the external collaborator spec.md §1 calls "host-side
// status broadcasting" — the core only emits snapshots to it.
type Sink interface {
	Publish(Snapshot)
}

// Estimator tracks per-layer completion times to project the
// remaining print duration, matching PrinterStatus.cpp's running
// estimate: seconds-remaining is the mean elapsed time over completed
// layers multiplied by the layers still to print.
type Estimator struct {
	jobStart     time.Time
	layerStart   time.Time
	completed    int
	totalElapsed time.Duration
}

// StartJob resets the estimator at the beginning of a print.
func (e *Estimator) StartJob(now time.Time) {
	e.jobStart = now
	e.layerStart = now
	e.completed = 0
	e.totalElapsed = 0
}

// StartLayer records when the current layer's cycle began, for
// CompleteLayer to measure against.
func (e *Estimator) StartLayer(now time.Time) {
	e.layerStart = now
}

// CompleteLayer folds the just-finished layer's elapsed time into the
// running mean.
func (e *Estimator) CompleteLayer(now time.Time) {
	e.totalElapsed += now.Sub(e.layerStart)
	e.completed++
}

// SecondsRemaining projects the time left to print layersRemaining
// more layers from the mean per-layer time observed so far. Before
// any layer has completed it falls back to 0 (no history to project
// from), matching the original firmware's zero-initialized estimate.
func (e *Estimator) SecondsRemaining(layersRemaining int) int {
	if e.completed == 0 || layersRemaining <= 0 {
		return 0
	}
	mean := e.totalElapsed / time.Duration(e.completed)
	return int((mean * time.Duration(layersRemaining)).Seconds())
}

// TemperatureReader is the seam to whatever samples the printer's
// thermistor; spec.md §1 excludes the sensor driver itself from the
// core.
type TemperatureReader interface {
	ReadCelsius() (float64, error)
}
