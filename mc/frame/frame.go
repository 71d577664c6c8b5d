/*
 * slaprint - Command frame wire format
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

// Package frame implements the 6-byte MC command frame (spec.md §3,
// §6): register, action, and a signed 32-bit little-endian parameter.
package frame

// Size is the fixed on-wire frame length in bytes.
const Size = 6

// Register space partitions (spec.md §3, §6).
const (
	GeneralReg uint8 = 0x00 // single-byte bus messages, synthesized locally
	RSettingReg uint8 = 0xA0
	RActionReg  uint8 = 0xA1
	ZSettingReg uint8 = 0xA4
	ZActionReg  uint8 = 0xA5

	// StatusReg is the address a host write-then-read targets to
	// retrieve the one-byte status register; it is never accepted as
	// a frame byte.
	StatusReg uint8 = 0xFF
)

// General commands (single-byte, accepted at any frame boundary).
const (
	CmdInterrupt uint8 = 0xC0
	CmdReset     uint8 = 0xC1
	CmdPause     uint8 = 0xC2
	CmdClear     uint8 = 0xC3
	CmdResume    uint8 = 0xC4
	CmdEnable    uint8 = 0xC5
	CmdDisable   uint8 = 0xC6
)

// generalLow/generalHigh bound the reserved range of single-byte
// general commands accepted at a frame boundary (spec.md §4.1).
const (
	generalLow  uint8 = 0xC0
	generalHigh uint8 = 0xC6
)

// IsGeneralCommand reports whether b falls in the reserved range of
// single-byte general commands.
func IsGeneralCommand(b uint8) bool {
	return b >= generalLow && b <= generalHigh
}

// Per-axis setting sub-codes, carried in a settings-register frame's
// action byte (spec.md §4.2).
const (
	SetStepAngle uint8 = iota
	SetUnitsPerRevolution
	SetMicrostepping
	SetMaxJerk
	SetSpeed
)

// Per-axis action sub-codes, carried in an action-register frame's
// action byte.
const (
	ActionMove uint8 = iota
	ActionHome
)

// Frame is a decoded 6-byte command frame.
type Frame struct {
	Register  uint8
	Action    uint8
	Parameter int32
}

// Encode writes f to a 6-byte buffer in wire order.
func Encode(f Frame) [Size]byte {
	var b [Size]byte
	b[0] = f.Register
	b[1] = f.Action
	p := uint32(f.Parameter)
	b[2] = byte(p)
	b[3] = byte(p >> 8)
	b[4] = byte(p >> 16)
	b[5] = byte(p >> 24)
	return b
}

// Decode parses exactly Size bytes of b into a Frame.
func Decode(b [Size]byte) Frame {
	p := uint32(b[2]) | uint32(b[3])<<8 | uint32(b[4])<<16 | uint32(b[5])<<24
	return Frame{Register: b[0], Action: b[1], Parameter: int32(p)}
}
