/*
 * slaprint - Main process
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

// Command slaprint wires the motion controller mainline (mc/mccore)
// to the host print sequencer (hs/sequencer) over an in-process
// internal/bus pairing and drops into the slaconsole operator prompt.
// Grounded on the teacher's root main.go: getopt for flags,
// internal/config for the configuration file, internal/logging in
// place of util/logger, and a signal-driven shutdown in place of
// telnet.Start/Stop.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/ldowney/slaprint/cmd/slaconsole"
	"github.com/ldowney/slaprint/hs/builder"
	"github.com/ldowney/slaprint/hs/layersettings"
	"github.com/ldowney/slaprint/hs/sequencer"
	"github.com/ldowney/slaprint/hs/status"
	"github.com/ldowney/slaprint/hs/timerqueue"
	"github.com/ldowney/slaprint/internal/bus"
	"github.com/ldowney/slaprint/internal/config"
	"github.com/ldowney/slaprint/internal/logging"
	"github.com/ldowney/slaprint/internal/simhw"
	"github.com/ldowney/slaprint/mc/limits"
	"github.com/ldowney/slaprint/mc/mccore"
	"github.com/ldowney/slaprint/mc/transport"
)

// consoleImages is a no-hardware ImageSink that logs instead of
// driving a real projector, for bring-up runs with no display
// attached.
type consoleImages struct{ log *slog.Logger }

func (c consoleImages) SetImage(layer int) { c.log.Info("projector: show layer image", "layer", layer) }
func (c consoleImages) ShowBlack()          { c.log.Info("projector: show black") }

// logSink publishes every status.Snapshot as a structured log line,
// standing in for whatever UI or network endpoint a full deployment
// would forward snapshots to.
type logSink struct{ log *slog.Logger }

func (s logSink) Publish(snap status.Snapshot) {
	s.log.Info("status", "state", snap.State, "job", snap.JobID, "layer", snap.CurrentLayer,
		"total", snap.TotalLayers, "secondsLeft", snap.SecondsLeft, "error", snap.IsError)
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "slaprint.cfg", "Configuration file")
	optOverlay := getopt.StringLong("overlay", 'o', "", "Per-layer settings overlay CSV")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror info/debug records to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var sink *os.File
	if *optLogFile != "" {
		var err error
		sink, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Println("cannot create log file:", err)
			os.Exit(1)
		}
	}
	handler := logging.NewHandler(sink, slog.LevelDebug, *optDebug)
	slog.SetDefault(slog.New(handler))
	log := logging.Component("main")

	store, err := config.LoadFile(*optConfig)
	if err != nil {
		log.Warn("configuration file not loaded, using defaults", "error", err)
		store, _ = config.Load(strings.NewReader(""))
	}

	sim := simhw.New()
	limitPair := &limits.Pair{Z: limits.New(sim.ZAtHome), R: limits.New(sim.RAtHome)}

	ringSize := store.Int("RING_SIZE", 16)
	cmdCapacity := store.Int("CMD_BUF_SIZE", 32)
	eventCapacity := store.Int("EVENT_QUEUE_SIZE", 8)
	core := mccore.New(sim, limitPair, ringSize, cmdCapacity, eventCapacity, logging.Component("mccore"))

	mcConn, hostConn, irqLine := bus.Pair()
	wire := transport.New(mcConn, core.CmdBuf, irqLine, logging.Component("transport"))
	core.Bus = wire
	wire.Start()

	base := layersettings.NewBase()
	loadLayerDefaults(store, base)
	overlay := layersettings.NewOverlay()
	if *optOverlay != "" {
		data, err := os.ReadFile(*optOverlay)
		if err != nil {
			log.Error("failed to read overlay file", "error", err)
		} else if err := overlay.Load(string(data)); err != nil {
			log.Error("failed to parse overlay file", "error", err)
		}
	}
	resolver := layersettings.NewResolver(base, overlay)

	cfg := sequencer.Config{
		Calibration: builder.Calibration{
			ZStepAngleMdeg:      int32(store.Int("Z_STEP_ANGLE_MDEG", 1800)),
			ZUnitsPerRevMicrons: int32(store.Int("Z_UNITS_PER_REV_MICRONS", 8000)),
			ZMicrostepping:      int32(store.Int("Z_MICROSTEPPING", 16)),
			RStepAngleMdeg:      int32(store.Int("R_STEP_ANGLE_MDEG", 1800)),
			RUnitsPerRevMdeg:    int32(store.Int("R_UNITS_PER_REV_MDEG", 360000)),
			RMicrostepping:      int32(store.Int("R_MICROSTEPPING", 16)),
		},
		Home: builder.HomeParams{
			RJerk: store.Float("HOME_R_JERK", 200), RSpeed: store.Float("HOME_R_SPEED", 30),
			RHomeMaxDegrees: store.Float("HOME_R_MAX_DEGREES", 400), RBackoffDegrees: store.Float("HOME_R_BACKOFF_DEGREES", 5),
			ZJerk: store.Float("HOME_Z_JERK", 200), ZSpeed: store.Float("HOME_Z_SPEED", 30),
			ZHomeMaxMicrons: store.Float("HOME_Z_MAX_MICRONS", 150000),
		},
		Start: builder.StartPositionParams{
			RJerk: store.Float("START_R_JERK", 200), RSpeed: store.Float("START_R_SPEED", 30), RStartDegrees: store.Float("START_R_DEGREES", 0),
			ZJerk: store.Float("START_Z_JERK", 200), ZSpeed: store.Float("START_Z_SPEED", 30), ZStartMicrons: store.Float("START_Z_MICRONS", 100),
		},
		Inspect: builder.JerkSpeed{
			RJerk: store.Float("INSPECT_R_JERK", 200), RSpeed: store.Float("INSPECT_R_SPEED", 30),
			ZJerk: store.Float("INSPECT_Z_JERK", 200), ZSpeed: store.Float("INSPECT_Z_SPEED", 30),
		},
		HomeOnApproach:      store.Int("HOME_ON_APPROACH", 1) != 0,
		MinTimeout:          time.Duration(store.Int("MIN_TIMEOUT_MS", 5000)) * time.Millisecond,
		TimeoutMarginFactor: store.Float("TIMEOUT_MARGIN_FACTOR", 1.5),
		JamMaxRetries:       store.Int("JAM_MAX_RETRIES", 3),
		JamSearchDegrees:    store.Float("JAM_SEARCH_DEGREES", 400),
	}

	timers := timerqueue.New(32)
	seq := sequencer.New(hostConn, irqLine, timers, resolver, consoleImages{log: logging.Component("projector")},
		logSink{log: logging.Component("status")},
		func(layer int) layersettings.LayerClass {
			switch {
			case layer == 1:
				return layersettings.First
			case layer <= store.Int("BURN_IN_LAYERS", 1)+1:
				return layersettings.BurnIn
			default:
				return layersettings.Model
			}
		}, cfg, logging.Component("sequencer"))

	done := make(chan struct{})
	go core.Run(done)
	go seq.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\ngot quit signal")
		close(done)
		seq.Stop()
		os.Exit(0)
	}()

	app := &slaconsole.App{Seq: seq, Core: core, Handler: handler, Log: log}
	slaconsole.ConsoleReader(app)

	log.Info("shutting down")
	close(done)
	seq.Stop()
	wire.Stop()
}

func loadLayerDefaults(store *config.Store, base *layersettings.Base) {
	for _, class := range []layersettings.LayerClass{layersettings.First, layersettings.BurnIn, layersettings.Model} {
		prefix := class.String()
		base.Set(class, layersettings.NamePressDepth, store.Float(prefix+"_PRESS_DEPTH", 1000))
		base.Set(class, layersettings.NamePressSpeed, store.Float(prefix+"_PRESS_SPEED", 10))
		base.Set(class, layersettings.NamePressWaitSec, store.Float(prefix+"_PRESS_WAIT_SEC", 2))
		base.Set(class, layersettings.NameUnpressSpeed, store.Float(prefix+"_UNPRESS_SPEED", 10))
		base.Set(class, layersettings.NamePreExposureDelaySec, store.Float(prefix+"_PRE_EXPOSURE_DELAY_SEC", 1))
		base.Set(class, layersettings.NameSeparationRJerk, store.Float(prefix+"_SEPARATION_R_JERK", 200))
		base.Set(class, layersettings.NameSeparationRRPM, store.Float(prefix+"_SEPARATION_R_RPM", 30))
		base.Set(class, layersettings.NameSeparationRotation, store.Float(prefix+"_SEPARATION_ROTATION", 60))
		base.Set(class, layersettings.NameSeparationZJerk, store.Float(prefix+"_SEPARATION_Z_JERK", 200))
		base.Set(class, layersettings.NameSeparationZSpeed, store.Float(prefix+"_SEPARATION_Z_SPEED", 30))
		base.Set(class, layersettings.NameSeparationZLift, store.Float(prefix+"_SEPARATION_Z_LIFT", 5000))
		base.Set(class, layersettings.NameApproachRJerk, store.Float(prefix+"_APPROACH_R_JERK", 200))
		base.Set(class, layersettings.NameApproachRRPM, store.Float(prefix+"_APPROACH_R_RPM", 30))
		base.Set(class, layersettings.NameApproachZJerk, store.Float(prefix+"_APPROACH_Z_JERK", 200))
		base.Set(class, layersettings.NameApproachZSpeed, store.Float(prefix+"_APPROACH_Z_SPEED", 30))
		base.Set(class, layersettings.NameLayerThickness, store.Float(prefix+"_LAYER_THICKNESS", 100))
		base.Set(class, layersettings.NameInspectionHeight, store.Float(prefix+"_INSPECTION_HEIGHT", 20000))
		base.Set(class, layersettings.NameCanInspect, store.Float(prefix+"_CAN_INSPECT", 1))
		base.Set(class, firstOrExposureName(class), defaultExposureSeconds(class, store))
	}
}

// firstOrExposureName mirrors layersettings' unexported
// exposureSettingName so the config loader populates the same
// per-class exposure keys Resolver.Resolve reads.
func firstOrExposureName(class layersettings.LayerClass) string {
	switch class {
	case layersettings.First:
		return "firstExposure"
	case layersettings.BurnIn:
		return "burnInExposure"
	default:
		return "modelExposure"
	}
}

func defaultExposureSeconds(class layersettings.LayerClass, store *config.Store) float64 {
	switch class {
	case layersettings.First:
		return store.Float("FIRST_EXPOSURE_SEC", 60)
	case layersettings.BurnIn:
		return store.Float("BURN_IN_EXPOSURE_SEC", 20)
	default:
		return store.Float("MODEL_EXPOSURE_SEC", 8)
	}
}
