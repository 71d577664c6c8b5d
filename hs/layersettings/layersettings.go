/*
 * slaprint - Per-layer settings resolver
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

// Package layersettings resolves the effective per-layer settings the
// print sequencer needs for one layer (spec.md §3, §4.13): a base
// table of per-layer-class defaults folded with a per-layer CSV
// override sheet. See SUPPLEMENTED FEATURES #1 in SPEC_FULL.md.
package layersettings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// LayerClass selects which row of base defaults applies to a layer
// (spec.md's GLOSSARY: "Layer class").
type LayerClass int

const (
	First LayerClass = iota
	BurnIn
	Model

	numLayerClasses = 3
)

func (c LayerClass) String() string {
	switch c {
	case First:
		return "First"
	case BurnIn:
		return "BurnIn"
	case Model:
		return "Model"
	default:
		return "Unknown"
	}
}

// Named setting keys shared between Base rows and Overlay columns.
const (
	NamePressDepth          = "pressDepth"
	NamePressSpeed          = "pressSpeed"
	NamePressWaitSec        = "pressWaitSec"
	NameUnpressSpeed        = "unpressSpeed"
	NamePreExposureDelaySec = "preExposureDelaySec"
	NameSeparationRJerk     = "separationRJerk"
	NameSeparationRRPM      = "separationRRPM"
	NameSeparationRotation  = "separationRotation"
	NameSeparationZJerk     = "separationZJerk"
	NameSeparationZSpeed    = "separationZSpeed"
	NameSeparationZLift     = "separationZLift"
	NameApproachRJerk       = "approachRJerk"
	NameApproachRRPM        = "approachRRPM"
	NameApproachZJerk       = "approachZJerk"
	NameApproachZSpeed      = "approachZSpeed"
	NameLayerThickness      = "layerThickness"
	NameInspectionHeight    = "inspectionHeight"
	NameCanInspect          = "canInspect"
)

// exposureSettingName returns the per-class exposure setting name:
// first layers cure far longer than later ones, so unlike the rest of
// the table the exposure time is named per class rather than shared
// (original_source/C++/include/PrintEngine.h's First/BurnIn/Model
// distinction).
func exposureSettingName(class LayerClass) string {
	switch class {
	case First:
		return "firstExposure"
	case BurnIn:
		return "burnInExposure"
	default:
		return "modelExposure"
	}
}

// Base is the per-layer-class table of named default setting values,
// populated once at startup (e.g. from internal/config) and consulted
// by Resolver whenever the per-layer Overlay has no override.
type Base struct {
	mu   sync.RWMutex
	rows [numLayerClasses]map[string]float64
}

// NewBase returns an empty Base with all three class rows ready to
// populate via Set.
func NewBase() *Base {
	b := &Base{}
	for i := range b.rows {
		b.rows[i] = make(map[string]float64)
	}
	return b
}

// Set stores the default value of name for class.
func (b *Base) Set(class LayerClass, name string, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[class][name] = value
}

// GetDouble returns class's default value of name, or 0 if never set.
func (b *Base) GetDouble(class LayerClass, name string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rows[class][name]
}

// GetInt returns class's default value of name truncated to an int.
func (b *Base) GetInt(class LayerClass, name string) int {
	return int(b.GetDouble(class, name))
}

var (
	// ErrDuplicateColumn is returned by Load when the header row names
	// the same setting twice.
	ErrDuplicateColumn = errors.New("layersettings: duplicate overlay column")
	// ErrDuplicateLayer is returned by Load when two data rows name the
	// same layer number.
	ErrDuplicateLayer = errors.New("layersettings: duplicate overlay layer row")
)

// Overlay is the per-layer CSV override table (spec.md §4.13, §6's
// per-layer overlay file format), ported from
// original_source/C++/LayerSettings.cpp's column-index/row-vector
// maps.
type Overlay struct {
	mu      sync.RWMutex
	columns map[string]int
	rows    map[int][]float64
}

// NewOverlay returns an empty, unloaded Overlay.
func NewOverlay() *Overlay {
	return &Overlay{columns: make(map[string]int), rows: make(map[int][]float64)}
}

// Load parses a per-layer overlay document: comma-separated cells,
// '\r' as the line terminator (tolerating CSV files saved without a
// trailing '\n', per spec.md §6), whitespace trimmed from every cell.
// The first row is setting-name column headers; its first cell (the
// layer-number heading) is discarded. Each following row's first cell
// is a layer number — rows with a blank, unparsable, or non-positive
// layer number are skipped as comments. Empty data cells mean "no
// override" and resolve to NaN. Load fails closed: on a duplicate
// column or duplicate layer row it returns an error and leaves the
// overlay empty, exactly as the original firmware's loader does.
func (o *Overlay) Load(data string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.columns = make(map[string]int)
	o.rows = make(map[int][]float64)

	lines := strings.Split(data, "\r")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil
	}

	header := strings.Split(lines[0], ",")
	for i, cell := range header {
		if i == 0 {
			continue // the layer-number column heading
		}
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		if _, dup := o.columns[name]; dup {
			o.columns = make(map[string]int)
			o.rows = make(map[int][]float64)
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		o.columns[name] = i - 1
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ",")
		layer, err := strconv.Atoi(strings.TrimSpace(cells[0]))
		if err != nil || layer < 1 {
			continue
		}

		row := make([]float64, len(o.columns))
		for i := range row {
			row[i] = math.NaN()
		}
		for i, cell := range cells[1:] {
			if i >= len(row) {
				break
			}
			text := strings.TrimSpace(cell)
			if text == "" {
				continue
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				continue
			}
			row[i] = v
		}

		if _, dup := o.rows[layer]; dup {
			o.columns = make(map[string]int)
			o.rows = make(map[int][]float64)
			return fmt.Errorf("%w: %d", ErrDuplicateLayer, layer)
		}
		o.rows[layer] = row
	}

	return nil
}

// Loaded reports whether Load has produced at least one usable row.
func (o *Overlay) Loaded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.rows) > 0
}

// rawValue returns the raw overridden value for (layer, name), or NaN
// if there is no such column, no such row, or the cell was blank.
func (o *Overlay) rawValue(layer int, name string) float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	col, ok := o.columns[name]
	if !ok {
		return math.NaN()
	}
	row, ok := o.rows[layer]
	if !ok || col >= len(row) {
		return math.NaN()
	}
	return row[col]
}

// GetDouble returns the override for (layer, name) if present and
// non-NaN, else base.
func (o *Overlay) GetDouble(layer int, name string, base float64) float64 {
	v := o.rawValue(layer, name)
	if math.IsNaN(v) {
		return base
	}
	return v
}

// GetInt returns the override for (layer, name) if present and
// non-NaN, else base.
func (o *Overlay) GetInt(layer int, name string, base int) int {
	v := o.rawValue(layer, name)
	if math.IsNaN(v) {
		return base
	}
	return int(v)
}

// CurrentLayerSettings is the effective setting set for one layer
// (spec.md §3's "current-layer settings"): Base folded with any
// per-layer Overlay override for the layer's class.
type CurrentLayerSettings struct {
	PressDepth              float64
	PressSpeed              float64
	PressWaitSec            float64
	UnpressSpeed            float64
	PreExposureDelaySec     float64
	ExposureSec             float64
	SeparationRJerk         float64
	SeparationRRPM          float64
	SeparationRotation      float64
	SeparationZJerk         float64
	SeparationZSpeed        float64
	SeparationZLift         float64
	ApproachRJerk           float64
	ApproachRRPM            float64
	ApproachZJerk           float64
	ApproachZSpeed          float64
	LayerThicknessMicrons   int
	InspectionHeightMicrons float64
	CanInspect              bool
}

// Resolver merges a Base with an Overlay to produce
// CurrentLayerSettings for a given layer and layer class (spec.md
// §4.13, SPEC_FULL.md's SUPPLEMENTED FEATURES #1).
type Resolver struct {
	Base    *Base
	Overlay *Overlay
}

// NewResolver returns a Resolver over the given Base and Overlay.
// Either may be replaced later (e.g. after a fresh overlay Load) by
// assigning the Resolver's fields directly.
func NewResolver(base *Base, overlay *Overlay) *Resolver {
	return &Resolver{Base: base, Overlay: overlay}
}

// GetDouble returns the per-layer override for name if present, else
// class's base value.
func (r *Resolver) GetDouble(class LayerClass, layer int, name string) float64 {
	return r.Overlay.GetDouble(layer, name, r.Base.GetDouble(class, name))
}

// GetInt returns the per-layer override for name if present, else
// class's base value.
func (r *Resolver) GetInt(class LayerClass, layer int, name string) int {
	return r.Overlay.GetInt(layer, name, r.Base.GetInt(class, name))
}

// Resolve produces the full effective setting set for one layer.
func (r *Resolver) Resolve(class LayerClass, layer int) CurrentLayerSettings {
	return CurrentLayerSettings{
		PressDepth:              r.GetDouble(class, layer, NamePressDepth),
		PressSpeed:              r.GetDouble(class, layer, NamePressSpeed),
		PressWaitSec:            r.GetDouble(class, layer, NamePressWaitSec),
		UnpressSpeed:            r.GetDouble(class, layer, NameUnpressSpeed),
		PreExposureDelaySec:     r.GetDouble(class, layer, NamePreExposureDelaySec),
		ExposureSec:             r.GetDouble(class, layer, exposureSettingName(class)),
		SeparationRJerk:         r.GetDouble(class, layer, NameSeparationRJerk),
		SeparationRRPM:          r.GetDouble(class, layer, NameSeparationRRPM),
		SeparationRotation:      r.GetDouble(class, layer, NameSeparationRotation),
		SeparationZJerk:         r.GetDouble(class, layer, NameSeparationZJerk),
		SeparationZSpeed:        r.GetDouble(class, layer, NameSeparationZSpeed),
		SeparationZLift:         r.GetDouble(class, layer, NameSeparationZLift),
		ApproachRJerk:           r.GetDouble(class, layer, NameApproachRJerk),
		ApproachRRPM:            r.GetDouble(class, layer, NameApproachRRPM),
		ApproachZJerk:           r.GetDouble(class, layer, NameApproachZJerk),
		ApproachZSpeed:          r.GetDouble(class, layer, NameApproachZSpeed),
		LayerThicknessMicrons:   r.GetInt(class, layer, NameLayerThickness),
		InspectionHeightMicrons: r.GetDouble(class, layer, NameInspectionHeight),
		CanInspect:              r.GetInt(class, layer, NameCanInspect) != 0,
	}
}
