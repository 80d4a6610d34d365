// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package fname is component D: it turns an FName (comparison_index,
// number) pair sampled from the target process into a Go string, per
// spec.md §4.4. Two historical pool layouts are supported: the
// block-indexed allocator introduced around engine 4.23, and the
// chunked pool used before it. Both decode through the same Mem the
// rest of the walker reads through, so a name-pool read is exactly as
// page-cached as any other remote read (remote.Cache, component A).
package fname

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/hazard-re/uedump/remote"
)

// Index is the (comparison_index, number) pair the engine stores
// inline wherever an FName appears; number is the "_N" instance
// suffix, decoded as number-1 per UE's own convention (spec.md §4.4).
type Index struct {
	ComparisonIndex uint32
	Number          uint32
}

// Pool decodes Index values against one name pool layout. Exactly one
// of the two constructors below should be used depending on the
// detected engine version.
type Pool struct {
	mem    remote.Mem
	base   remote.Address
	legacy bool
	// legacyEntryStride is the fixed byte span FNameEntryLegacy uses
	// per slot prior to the block allocator; it is provided by the
	// caller (normally sourced from the layout catalogue) since it
	// varies across pre-4.23 releases.
	legacyEntryStride uint32
}

// NewModernPool builds a Pool for the ≥4.23 block-indexed allocator.
// base is the address of the allocator's Blocks array.
func NewModernPool(mem remote.Mem, base remote.Address) *Pool {
	return &Pool{mem: mem, base: base}
}

// NewLegacyPool builds a Pool for the pre-4.23 chunked name table.
// base is the address of the NameTableChunks pointer array, and
// entryStride is the fixed per-entry byte span for this engine
// version, supplied by the caller (the CLI takes it from
// --legacy-entry-stride; the built-in catalogue has no struct for it).
func NewLegacyPool(mem remote.Mem, base remote.Address, entryStride uint32) *Pool {
	return &Pool{mem: mem, base: base, legacy: true, legacyEntryStride: entryStride}
}

const (
	blockBits  = 16
	blockSize  = 1 << blockBits // entries per block in the modern allocator
	blockAlign = 2              // modern entries are 2-byte aligned

	legacyChunkSize = 0x4000 // entries per chunk in the legacy table
)

// Decode resolves idx to its string form, applying the "_{number-1}"
// instance suffix when number is non-zero.
func (p *Pool) Decode(idx Index) (string, error) {
	base, err := p.decodeComparisonName(idx.ComparisonIndex)
	if err != nil {
		return "", err
	}
	if idx.Number == 0 {
		return base, nil
	}
	return fmt.Sprintf("%s_%d", base, idx.Number-1), nil
}

func (p *Pool) decodeComparisonName(comparisonIndex uint32) (string, error) {
	if p.legacy {
		return p.decodeLegacy(comparisonIndex)
	}
	return p.decodeModern(comparisonIndex)
}

// decodeModern implements the block-indexed allocator: the top 16 bits
// of the index select a block, the low 16 bits select a 2-byte-aligned
// slot within it. Each slot starts with a 16-bit header (low 6 bits:
// length in characters, bit 6: is_wide) followed by the unterminated
// character payload.
func (p *Pool) decodeModern(comparisonIndex uint32) (string, error) {
	blockIndex := comparisonIndex >> blockBits
	slot := (comparisonIndex & (blockSize - 1)) * blockAlign

	blockPtrAddr := p.base + remote.Address(blockIndex)*8
	var ptrBuf [8]byte
	if err := p.mem.ReadBuf(blockPtrAddr, ptrBuf[:]); err != nil {
		return "", fmt.Errorf("fname: read block pointer %d: %w", blockIndex, err)
	}
	blockBase := remote.Address(leUint64(ptrBuf[:]))
	if blockBase == 0 {
		return "", fmt.Errorf("fname: block %d is not allocated", blockIndex)
	}

	entryAddr := blockBase + remote.Address(slot)
	var hdrBuf [2]byte
	if err := p.mem.ReadBuf(entryAddr, hdrBuf[:]); err != nil {
		return "", fmt.Errorf("fname: read entry header at %s: %w", entryAddr, err)
	}
	header := uint16(hdrBuf[0]) | uint16(hdrBuf[1])<<8
	length := int(header & 0x3ff)
	isWide := header&0x400 != 0

	return readPayload(p.mem, entryAddr+2, length, isWide)
}

// decodeLegacy implements the chunked pool: index/0x4000 selects a
// chunk pointer, index%0x4000 its offset within the chunk. The first 4
// bytes of the entry hold an index word whose low bit is is_wide; the
// character payload begins at +0x10 and is null-terminated in the
// chosen width rather than length-prefixed, per spec.md §4.4 — the
// fixed entry stride only bounds how far the terminator search looks,
// it is not the string's length.
func (p *Pool) decodeLegacy(comparisonIndex uint32) (string, error) {
	chunkIndex := comparisonIndex / legacyChunkSize
	chunkOffset := comparisonIndex % legacyChunkSize

	chunkPtrAddr := p.base + remote.Address(chunkIndex)*8
	var ptrBuf [8]byte
	if err := p.mem.ReadBuf(chunkPtrAddr, ptrBuf[:]); err != nil {
		return "", fmt.Errorf("fname: read chunk pointer %d: %w", chunkIndex, err)
	}
	chunkBase := remote.Address(leUint64(ptrBuf[:]))
	if chunkBase == 0 {
		return "", fmt.Errorf("fname: chunk %d is not allocated", chunkIndex)
	}

	entryAddr := chunkBase + remote.Address(chunkOffset)*remote.Address(p.legacyEntryStride)
	var idxBuf [4]byte
	if err := p.mem.ReadBuf(entryAddr, idxBuf[:]); err != nil {
		return "", fmt.Errorf("fname: read entry index at %s: %w", entryAddr, err)
	}
	isWide := idxBuf[0]&1 != 0

	maxChars := int(p.legacyEntryStride) - 0x10
	if maxChars < 0 {
		maxChars = 0
	}
	if isWide {
		maxChars /= 2
	}

	return readPayloadNulTerminated(p.mem, entryAddr+0x10, maxChars, isWide)
}

// readPayload reads length characters (ANSI or UTF-16) starting at
// addr and decodes them to a Go string. Wide strings are decoded with
// golang.org/x/text/encoding/unicode the same way the teacher decodes
// UTF-16 resource strings in version.go/icon.go.
func readPayload(mem remote.Mem, addr remote.Address, length int, isWide bool) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("fname: negative payload length %d", length)
	}
	if length == 0 {
		return "", nil
	}
	if !isWide {
		buf := make([]byte, length)
		if err := mem.ReadBuf(addr, buf); err != nil {
			return "", fmt.Errorf("fname: read ansi payload at %s: %w", addr, err)
		}
		return string(buf), nil
	}

	buf := make([]byte, length*2)
	if err := mem.ReadBuf(addr, buf); err != nil {
		return "", fmt.Errorf("fname: read wide payload at %s: %w", addr, err)
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("fname: decode utf16 payload at %s: %w", addr, err)
	}
	return string(out), nil
}

// readPayloadNulTerminated reads up to maxChars characters (ANSI or
// UTF-16) starting at addr, stopping at the first NUL character (or
// wide NUL code unit), and decodes the result to a Go string. Used for
// the legacy pool, where the stride bounds the read but the string
// itself ends at its terminator rather than at a stored length.
func readPayloadNulTerminated(mem remote.Mem, addr remote.Address, maxChars int, isWide bool) (string, error) {
	if maxChars <= 0 {
		return "", nil
	}
	if !isWide {
		buf := make([]byte, maxChars)
		if err := mem.ReadBuf(addr, buf); err != nil {
			return "", fmt.Errorf("fname: read ansi payload at %s: %w", addr, err)
		}
		n := 0
		for n < len(buf) && buf[n] != 0 {
			n++
		}
		return string(buf[:n]), nil
	}

	buf := make([]byte, maxChars*2)
	if err := mem.ReadBuf(addr, buf); err != nil {
		return "", fmt.Errorf("fname: read wide payload at %s: %w", addr, err)
	}
	n := 0
	for n+1 < len(buf) {
		if buf[n] == 0 && buf[n+1] == 0 {
			break
		}
		n += 2
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(buf[:n])
	if err != nil {
		return "", fmt.Errorf("fname: decode utf16 payload at %s: %w", addr, err)
	}
	return string(out), nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
