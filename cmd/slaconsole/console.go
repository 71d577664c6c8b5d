/*
 * slaprint - Operator console
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

// Package slaconsole is the bring-up/operator console SPEC_FULL.md's
// AMBIENT STACK names: attach/detach the event-log mirror, show
// planner/queue/sequencer state, and inject start/pause/resume/cancel
// and other print commands into a running print. Grounded directly on
// command/parser.go's cmd/cmdLine/matchList prefix-dispatch shape and
// command/reader.ConsoleReader's liner-driven prompt loop, narrowed
// from S370's per-device command set to this module's fixed print job
// and motion-controller surface.
package slaconsole

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/peterh/liner"

	"github.com/ldowney/slaprint/hs/sequencer"
	"github.com/ldowney/slaprint/internal/debugflags"
	"github.com/ldowney/slaprint/internal/logging"
	"github.com/ldowney/slaprint/mc/mccore"
)

// App bundles the live objects the console commands act on.
type App struct {
	Seq     *sequencer.Sequencer
	Core    *mccore.Core
	Handler *logging.Handler
	Log     *slog.Logger
}

type cmdLine struct {
	line string
	pos  int
}

type cmd struct {
	name    string
	min     int
	process func(*cmdLine, *App) (bool, error)
}

var cmdList = []cmd{
	{name: "attach", min: 2, process: attachCmd},
	{name: "debug", min: 3, process: debugCmd},
	{name: "detach", min: 2, process: detachCmd},
	{name: "show", min: 2, process: showCmd},
	{name: "start", min: 3, process: startCmd},
	{name: "pause", min: 3, process: pauseCmd},
	{name: "resume", min: 3, process: resumeCmd},
	{name: "cancel", min: 3, process: cancelCmd},
	{name: "confirm", min: 3, process: confirmCmd},
	{name: "deny", min: 3, process: denyCmd},
	{name: "door", min: 2, process: doorCmd},
	{name: "rotate", min: 3, process: rotateCmd},
	{name: "dismiss", min: 3, process: dismissCmd},
	{name: "quit", min: 4, process: quitCmd},
}

// ProcessCommand parses and executes one command line. The returned
// bool is true when the console should exit.
func ProcessCommand(commandLine string, app *App) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}
	return match[0].process(&line, app)
}

func matchCommand(m cmd, name string) bool {
	if len(name) > len(m.name) {
		return false
	}
	for i := range name {
		if m.name[i] != name[i] {
			return false
		}
	}
	return len(name) >= m.min
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, name) {
			match = append(match, m)
		}
	}
	return match
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

// getWord returns the next whitespace-delimited lowercase token, or ""
// at end of line.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return strings.ToLower(l.line[start:l.pos])
}

func (l *cmdLine) getInt(def int) int {
	w := l.getWord()
	if w == "" {
		return def
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return def
	}
	return n
}

// ConsoleReader runs the interactive liner-backed prompt loop until
// the user quits or aborts (Ctrl-D/Ctrl-C), mirroring
// command/reader.ConsoleReader's shape exactly.
func ConsoleReader(app *App) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		matches := matchList(partial)
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.name + " "
		}
		return names
	})

	for {
		command, err := line.Prompt("slaprint> ")
		if err == nil {
			line.AppendHistory(command)
			quit, cmdErr := ProcessCommand(command, app)
			if cmdErr != nil {
				fmt.Println("Error: " + cmdErr.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		app.Log.Error("console read failed", "error", err)
		return
	}
}

func attachCmd(line *cmdLine, app *App) (bool, error) {
	target := line.getWord()
	if target != "log" {
		return false, errors.New("attach: only \"log\" is supported")
	}
	app.Handler.SetDebug(true)
	fmt.Println("event log mirrored to stderr")
	return false, nil
}

// debugCmd turns a named debug flag on (or, with a trailing "off",
// off) for one component: "debug sequencer state", "debug mccore
// event off". Mirrors the teacher's "set debug <device> <flag>"
// console command, narrowed to this module's fixed component set
// (mccore, transport, sequencer).
func debugCmd(line *cmdLine, _ *App) (bool, error) {
	component := line.getWord()
	flag := line.getWord()
	if component == "" || flag == "" {
		return false, errors.New("debug: usage: debug <component> <flag> [off]")
	}

	if line.getWord() == "off" {
		debugflags.Clear(component, flag)
		fmt.Printf("debug %s %s off\n", component, flag)
		return false, nil
	}

	if err := debugflags.Set(component, flag); err != nil {
		return false, err
	}
	fmt.Printf("debug %s %s on\n", component, flag)
	return false, nil
}

func detachCmd(line *cmdLine, app *App) (bool, error) {
	target := line.getWord()
	if target != "log" {
		return false, errors.New("detach: only \"log\" is supported")
	}
	app.Handler.SetDebug(false)
	fmt.Println("event log mirror stopped")
	return false, nil
}

func showCmd(line *cmdLine, app *App) (bool, error) {
	what := line.getWord()
	switch what {
	case "", "state":
		fmt.Printf("sequencer: %s   mc: %s   mc-status: %s\n",
			app.Seq.State(), app.Core.State(), app.Core.LastStatus)
	case "ring":
		fmt.Printf("ring: run=%d write=%d queue=%d available=%d\n",
			app.Core.Ring.RunIndex(), app.Core.Ring.WriteIndex(), app.Core.Ring.QueueIndex(), app.Core.Ring.Available())
	default:
		return false, errors.New("show: unknown target: " + what)
	}
	return false, nil
}

func startCmd(line *cmdLine, app *App) (bool, error) {
	job := line.getWord()
	if job == "" {
		return false, errors.New("start: usage: start <job-id> <layers>")
	}
	layers := line.getInt(0)
	if layers <= 0 {
		return false, errors.New("start: layers must be positive")
	}
	app.Seq.StartPrint(job, layers)
	fmt.Printf("started job %s, %d layers\n", job, layers)
	return false, nil
}

func pauseCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.RequestPause()
	return false, nil
}

func resumeCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.RequestResume()
	return false, nil
}

func cancelCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.RequestCancel()
	return false, nil
}

func confirmCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.ConfirmCancel()
	return false, nil
}

func denyCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.DenyCancel()
	return false, nil
}

func doorCmd(line *cmdLine, app *App) (bool, error) {
	switch line.getWord() {
	case "open":
		app.Seq.NotifyDoorOpened()
	case "closed", "close":
		app.Seq.NotifyDoorClosed()
	default:
		return false, errors.New("door: usage: door open|closed")
	}
	return false, nil
}

func rotateCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.NotifyRotationPulse()
	return false, nil
}

func dismissCmd(_ *cmdLine, app *App) (bool, error) {
	app.Seq.Dismiss()
	return false, nil
}

func quitCmd(_ *cmdLine, _ *App) (bool, error) {
	return true, nil
}
