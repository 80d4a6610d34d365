// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"fmt"

	"github.com/hazard-re/uedump/rptr"
	"github.com/hazard-re/uedump/remote"
)

// internalObjectFlagsInvalid is EInternalObjectFlags::Unreachable |
// EInternalObjectFlags::PendingKill: the bits GUObjectArray sets on an
// item once it's been condemned by GC, at which point its FUObjectItem
// can retain a stale, non-freed Object pointer even though the slot no
// longer names a live object.
const internalObjectFlagsInvalid = 0x10000000 | 0x20000000

// itemLayout bundles the FUObjectItem field offsets enumeration needs.
// flagsOff/hasFlags are split out because some catalogue entries (the
// pre-GUObjectArray-chunking engine releases) never defined a Flags
// field at all; enumeration falls back to a null-pointer-only check
// for those rather than failing outright.
type itemLayout struct {
	objOff   uint32
	flagsOff uint32
	hasFlags bool
	size     uint32
}

// enumerateObjects reads every live UObjectBase* out of GUObjectArray.
// The table has taken four historical shapes across engine releases
// (flat TArray, and three chunked-allocator revisions that added
// ClusterRootIndex/SerialNumber to FUObjectItem over time); this
// walker covers all four through the catalogue rather than four code
// paths: cfg.Chunked distinguishes the flat/chunked split, and the
// catalogue simply omits fields a given engine version's FUObjectItem
// didn't yet have.
func (w *Walker) enumerateObjects() ([]remote.Address, error) {
	ctx := w.ctx
	numOff, err := ctx.MemberOffset("FUObjectArray", "NumElements")
	if err != nil {
		return nil, err
	}
	objOff, err := ctx.MemberOffset("FUObjectArray", "Objects")
	if err != nil {
		return nil, err
	}
	itemObjOff, err := ctx.MemberOffset("FUObjectItem", "Object")
	if err != nil {
		return nil, err
	}
	itemSize, err := ctx.StructSize("FUObjectItem")
	if err != nil {
		return nil, err
	}
	item := itemLayout{objOff: itemObjOff, size: itemSize}
	if flagsOff, err := ctx.MemberOffset("FUObjectItem", "Flags"); err == nil {
		item.flagsOff = flagsOff
		item.hasFlags = true
	}

	numPtr := rptr.New[uint32](ctx, w.cfg.ObjectArray+remote.Address(numOff))
	num, err := numPtr.Read()
	if err != nil {
		return nil, fmt.Errorf("walker: read GUObjectArray.NumElements: %w", err)
	}

	tablePtr := rptr.New[uint64](ctx, w.cfg.ObjectArray+remote.Address(objOff))

	if !w.cfg.Chunked {
		base, err := tablePtr.Read()
		if err != nil {
			return nil, fmt.Errorf("walker: read GUObjectArray.Objects: %w", err)
		}
		return w.scanFlatTable(remote.Address(base), int(num), item)
	}

	chunksBase, err := tablePtr.Read()
	if err != nil {
		return nil, fmt.Errorf("walker: read GUObjectArray.Objects (chunked): %w", err)
	}
	return w.scanChunkedTable(remote.Address(chunksBase), int(num), item)
}

// itemValid reports whether the FUObjectItem at itemAddr names a live
// object: the Object pointer must be non-null and, where the engine
// version's FUObjectItem carries a Flags word at all, free of the
// Unreachable/PendingKill bits a freed or condemned slot is marked
// with.
func (w *Walker) itemValid(itemAddr remote.Address, item itemLayout) (remote.Address, bool, error) {
	objPtr := rptr.New[uint64](w.ctx, itemAddr+remote.Address(item.objOff))
	v, err := objPtr.Read()
	if err != nil {
		return 0, false, err
	}
	if v == 0 {
		return 0, false, nil
	}
	if item.hasFlags {
		flagsPtr := rptr.New[uint32](w.ctx, itemAddr+remote.Address(item.flagsOff))
		flags, err := flagsPtr.Read()
		if err != nil {
			return 0, false, err
		}
		if flags&internalObjectFlagsInvalid != 0 {
			return 0, false, nil
		}
	}
	return remote.Address(v), true, nil
}

func (w *Walker) scanFlatTable(base remote.Address, num int, item itemLayout) ([]remote.Address, error) {
	var out []remote.Address
	for i := 0; i < num; i++ {
		itemAddr := base + remote.Address(i)*remote.Address(item.size)
		addr, ok, err := w.itemValid(itemAddr, item)
		if err != nil {
			return nil, fmt.Errorf("walker: read object table entry %d: %w", i, err)
		}
		if ok {
			out = append(out, addr)
		}
	}
	return out, nil
}

func (w *Walker) scanChunkedTable(chunksBase remote.Address, num int, item itemLayout) ([]remote.Address, error) {
	perChunk := int(w.cfg.objectsPerChunk())
	numChunks := (num + perChunk - 1) / perChunk

	var out []remote.Address
	for c := 0; c < numChunks; c++ {
		chunkPtrAddr := chunksBase + remote.Address(c)*8
		chunkPtr := rptr.New[uint64](w.ctx, chunkPtrAddr)
		chunkBase, err := chunkPtr.Read()
		if err != nil {
			return nil, fmt.Errorf("walker: read chunk pointer %d: %w", c, err)
		}
		if chunkBase == 0 {
			continue
		}
		remaining := num - c*perChunk
		n := perChunk
		if remaining < n {
			n = remaining
		}
		for i := 0; i < n; i++ {
			itemAddr := remote.Address(chunkBase) + remote.Address(i)*remote.Address(item.size)
			addr, ok, err := w.itemValid(itemAddr, item)
			if err != nil {
				return nil, fmt.Errorf("walker: read chunk %d entry %d: %w", c, i, err)
			}
			if ok {
				out = append(out, addr)
			}
		}
	}
	return out, nil
}
