// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emulate

import (
	"encoding/binary"
	"fmt"

	"github.com/hazard-re/uedump/remote"
)

// Target describes where, in the running target, the engine's own
// FName-to-string conversion routine lives. comparisonIndex and number
// are passed as its first two arguments, matching every engine
// release's FName::ToString/GetDisplayNameEntry-style signature that
// takes the raw (comparison_index, number) pair.
type Target struct {
	// FunctionAddress is the decode routine's entry point.
	FunctionAddress uint64
	// MaxNameLength bounds the result read back out of the emulated
	// call; it has nothing to do with the routine itself.
	MaxNameLength int
}

// Decoder adapts an Emulator to walker.NameEmulator (DecodeName(raw
// []byte) (string, error)) so it can be plugged into a walker.Config
// without walker importing this package.
type Decoder struct {
	emu    *Emulator
	target Target
}

// NewDecoder builds a Decoder over mem using target as the call site.
// It validates target's prologue once up front so a misconfigured
// --name-fn address is reported immediately rather than on first use.
func NewDecoder(mem remote.Mem, target Target) (*Decoder, error) {
	emu, err := New(mem)
	if err != nil {
		return nil, err
	}
	if err := emu.ValidatePrologue(target.FunctionAddress); err != nil {
		emu.Close()
		return nil, err
	}
	return &Decoder{emu: emu, target: target}, nil
}

// Close releases the underlying emulator.
func (d *Decoder) Close() error { return d.emu.Close() }

// DecodeName runs the target's own FName decode routine over raw (the
// 8-byte little-endian comparison_index/number pair read off the
// wire) and returns the string it produces.
func (d *Decoder) DecodeName(raw []byte) (string, error) {
	if len(raw) != 8 {
		return "", fmt.Errorf("emulate: DecodeName expects an 8-byte (comparison_index, number) pair, got %d bytes", len(raw))
	}
	comparisonIndex := binary.LittleEndian.Uint32(raw[0:4])
	number := binary.LittleEndian.Uint32(raw[4:8])

	maxLen := d.target.MaxNameLength
	if maxLen == 0 {
		maxLen = 1024
	}
	return d.emu.CallString(d.target.FunctionAddress, []uint64{uint64(comparisonIndex), uint64(number)}, maxLen)
}
