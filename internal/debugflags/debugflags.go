/*
 * slaprint - Debug flag registry
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

// Package debugflags tracks which named debug flags are set per
// component (transport, mccore, sequencer), the way
// the teacher's config/debugconfig toggles per-channel/per-CPU debug
// masks from the console's "set debug" command.
package debugflags

import (
	"errors"
	"strings"
	"sync"
)

var (
	mu    sync.RWMutex
	flags = map[string]map[string]bool{}
)

// Set turns a named flag on for component. Returns an error if
// component has never been registered via Register.
func Set(component, flag string) error {
	mu.Lock()
	defer mu.Unlock()
	m, ok := flags[component]
	if !ok {
		return errors.New("debug: unknown component " + component)
	}
	m[strings.ToUpper(flag)] = true
	return nil
}

// Clear turns a named flag off for component.
func Clear(component, flag string) {
	mu.Lock()
	defer mu.Unlock()
	if m, ok := flags[component]; ok {
		delete(m, strings.ToUpper(flag))
	}
}

// Register declares component as a valid debug target with an empty
// flag set; subsystems call this from an init function.
func Register(component string) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := flags[component]; !ok {
		flags[component] = map[string]bool{}
	}
}

// Enabled reports whether flag is set for component.
func Enabled(component, flag string) bool {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := flags[component]
	if !ok {
		return false
	}
	return m[strings.ToUpper(flag)]
}
