// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package fname

import (
	"encoding/binary"
	"testing"

	"github.com/hazard-re/uedump/remote"
)

// buildModernPool lays out a single block containing one ANSI entry
// ("Actor") and one wide entry ("Hi") back to back, and a
// Blocks array pointing at it.
func buildModernPool(t *testing.T) (*Pool, remote.Mem) {
	t.Helper()
	const blockBase = 0x2000
	const blocksArrayBase = 0x1000

	data := make([]byte, 0x4000)

	// Blocks[0] = blockBase.
	binary.LittleEndian.PutUint64(data[blocksArrayBase:blocksArrayBase+8], blockBase)

	// Entry 0: ANSI "Actor", length 5, not wide.
	off := blockBase
	header := uint16(5)
	binary.LittleEndian.PutUint16(data[off:], header)
	copy(data[off+2:], "Actor")
	off += 2 + 5
	if off%2 != 0 {
		off++
	}

	// Second entry, at byte offset 8 (index 4): wide "Hi" (2 chars),
	// bit 0x400 set.
	wideHeader := uint16(2) | 0x400
	binary.LittleEndian.PutUint16(data[off:], wideHeader)
	binary.LittleEndian.PutUint16(data[off+2:], uint16('H'))
	binary.LittleEndian.PutUint16(data[off+4:], uint16('i'))

	mem := remote.NewFlatMem(0, data)
	pool := NewModernPool(mem, remote.Address(blocksArrayBase))
	return pool, mem
}

func TestDecodeModernAnsiEntry(t *testing.T) {
	pool, _ := buildModernPool(t)
	got, err := pool.Decode(Index{ComparisonIndex: 0, Number: 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "Actor" {
		t.Fatalf("Decode = %q, want %q", got, "Actor")
	}
}

func TestDecodeModernNumberSuffix(t *testing.T) {
	pool, _ := buildModernPool(t)
	got, err := pool.Decode(Index{ComparisonIndex: 0, Number: 3})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "Actor_2" {
		t.Fatalf("Decode = %q, want %q", got, "Actor_2")
	}
}

func TestDecodeModernWideEntry(t *testing.T) {
	pool, _ := buildModernPool(t)
	got, err := pool.Decode(Index{ComparisonIndex: 4})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "Hi" {
		t.Fatalf("Decode = %q, want %q", got, "Hi")
	}
}

func TestDecodeLegacyEntry(t *testing.T) {
	const entryStride = 0x20
	const chunkBase = 0x2000
	const chunksArrayBase = 0x1000

	data := make([]byte, 0x4000)
	binary.LittleEndian.PutUint64(data[chunksArrayBase:], chunkBase)

	entryAddr := chunkBase
	data[entryAddr] = 0 // not wide
	copy(data[entryAddr+0x10:], "Pawn\x00garbage leftover in the unused tail")

	mem := remote.NewFlatMem(0, data)
	pool := NewLegacyPool(mem, remote.Address(chunksArrayBase), entryStride)

	got, err := pool.Decode(Index{ComparisonIndex: 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "Pawn" {
		t.Fatalf("Decode = %q, want %q (payload is null-terminated, not length-prefixed by the stride)", got, "Pawn")
	}
}

func TestDecodeLegacyWideEntry(t *testing.T) {
	const entryStride = 0x30
	const chunkBase = 0x2000
	const chunksArrayBase = 0x1000

	data := make([]byte, 0x4000)
	binary.LittleEndian.PutUint64(data[chunksArrayBase:], chunkBase)

	entryAddr := chunkBase
	data[entryAddr] = 1 // is_wide

	payload := entryAddr + 0x10
	binary.LittleEndian.PutUint16(data[payload:], uint16('H'))
	binary.LittleEndian.PutUint16(data[payload+2:], uint16('i'))
	// NUL terminator already present from the zeroed backing array.

	mem := remote.NewFlatMem(0, data)
	pool := NewLegacyPool(mem, remote.Address(chunksArrayBase), entryStride)

	got, err := pool.Decode(Index{ComparisonIndex: 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "Hi" {
		t.Fatalf("Decode = %q, want %q", got, "Hi")
	}
}
