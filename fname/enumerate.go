// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package fname

import "github.com/hazard-re/uedump/remote"

// EnumerateNames is the supplemented jmap-style name index feature
// (SPEC_FULL.md §4.9): rather than resolving one Index at a time on
// demand, walk every allocated block/chunk up front and decode every
// entry it holds. This gives callers a complete name → index[] map
// useful for searching a dump by substring without re-walking memory,
// at the cost of touching every page the pool occupies.
//
// maxBlocks bounds the scan so a corrupted or not-yet-allocated pool
// cannot run away reading unmapped block pointers forever; it should
// be set comfortably above any real project's expected name count
// (e.g. (name count / blockSize) + 1).
func (p *Pool) EnumerateNames(maxBlocks uint32) (map[string][]uint32, error) {
	if p.legacy {
		return p.enumerateLegacy(maxBlocks)
	}
	return p.enumerateModern(maxBlocks)
}

func (p *Pool) enumerateModern(maxBlocks uint32) (map[string][]uint32, error) {
	out := make(map[string][]uint32)
	for block := uint32(0); block < maxBlocks; block++ {
		blockPtrAddr := p.base + remote.Address(block)*8
		var ptrBuf [8]byte
		if err := p.mem.ReadBuf(blockPtrAddr, ptrBuf[:]); err != nil {
			break
		}
		blockBase := remote.Address(leUint64(ptrBuf[:]))
		if blockBase == 0 {
			continue
		}
		slot := remote.Address(0)
		for slotIdx := uint32(0); slotIdx < blockSize; slotIdx++ {
			entryAddr := blockBase + slot
			var hdrBuf [2]byte
			if err := p.mem.ReadBuf(entryAddr, hdrBuf[:]); err != nil {
				break
			}
			header := uint16(hdrBuf[0]) | uint16(hdrBuf[1])<<8
			length := int(header & 0x3ff)
			if length == 0 {
				break
			}
			isWide := header&0x400 != 0
			name, err := readPayload(p.mem, entryAddr+2, length, isWide)
			if err != nil {
				return nil, err
			}
			idx := block<<blockBits | uint32(slot)/blockAlign
			out[name] = append(out[name], idx)

			advance := 2 + length
			if isWide {
				advance = 2 + length*2
			}
			advance = (advance + blockAlign - 1) &^ (blockAlign - 1)
			slot += remote.Address(advance)
		}
	}
	return out, nil
}

func (p *Pool) enumerateLegacy(maxChunks uint32) (map[string][]uint32, error) {
	out := make(map[string][]uint32)
	for chunk := uint32(0); chunk < maxChunks; chunk++ {
		chunkPtrAddr := p.base + remote.Address(chunk)*8
		var ptrBuf [8]byte
		if err := p.mem.ReadBuf(chunkPtrAddr, ptrBuf[:]); err != nil {
			break
		}
		chunkBase := remote.Address(leUint64(ptrBuf[:]))
		if chunkBase == 0 {
			continue
		}
		for slotIdx := uint32(0); slotIdx < legacyChunkSize; slotIdx++ {
			idx := chunk*legacyChunkSize + slotIdx
			name, err := p.decodeLegacy(idx)
			if err != nil {
				break
			}
			if name == "" {
				continue
			}
			out[name] = append(out[name], idx)
		}
	}
	return out, nil
}
