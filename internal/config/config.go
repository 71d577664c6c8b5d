/*
 * slaprint - Configuration file parser
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

// Package config loads the printer bring-up configuration file: bus
// address, per-axis calibration defaults, and DDA/segment timing
// constants. Format:
//
//	# comment
//	<KEY> <value> [<value> ...]
//
// One key per line, whitespace separated, '#' starts a line comment.
// Any key is accepted; a repeated key is an error. This is deliberately a flat key/value
// format rather than the teacher's per-device model registration DSL
// (config/configparser.go) because this module configures two fixed
// axes and a handful of scalars, not an open-ended peripheral list.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Store holds parsed key/value pairs plus the line each came from,
// for error reporting.
type Store struct {
	values map[string][]string
	lines  map[string]int
}

func newStore() *Store {
	return &Store{values: make(map[string][]string), lines: make(map[string]int)}
}

// LoadFile parses a configuration file into a Store.
func LoadFile(name string) (*Store, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Load(file)
}

// Load parses configuration text from r into a Store.
func Load(r io.Reader) (*Store, error) {
	store := newStore()
	reader := bufio.NewReader(r)
	lineNumber := 0

	for {
		raw, err := reader.ReadString('\n')
		lineNumber++
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		line := strings.TrimSpace(raw)
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			if errors.Is(err, io.EOF) {
				break
			}
			continue
		}

		fields := strings.Fields(line)
		key := strings.ToUpper(fields[0])
		if _, dup := store.values[key]; dup {
			return nil, fmt.Errorf("config: duplicate key %q, line %d", key, lineNumber)
		}
		store.values[key] = fields[1:]
		store.lines[key] = lineNumber

		if errors.Is(err, io.EOF) {
			break
		}
	}
	return store, nil
}

// Has reports whether key was present.
func (s *Store) Has(key string) bool {
	_, ok := s.values[strings.ToUpper(key)]
	return ok
}

// String returns the first value for key, or def if absent.
func (s *Store) String(key, def string) string {
	v, ok := s.values[strings.ToUpper(key)]
	if !ok || len(v) == 0 {
		return def
	}
	return v[0]
}

// Int returns the first value for key parsed as an integer, or def if
// absent or unparsable.
func (s *Store) Int(key string, def int) int {
	v, ok := s.values[strings.ToUpper(key)]
	if !ok || len(v) == 0 {
		return def
	}
	n, err := strconv.Atoi(v[0])
	if err != nil {
		return def
	}
	return n
}

// Float returns the first value for key parsed as a float64, or def
// if absent or unparsable.
func (s *Store) Float(key string, def float64) float64 {
	v, ok := s.values[strings.ToUpper(key)]
	if !ok || len(v) == 0 {
		return def
	}
	f, err := strconv.ParseFloat(v[0], 64)
	if err != nil {
		return def
	}
	return f
}
