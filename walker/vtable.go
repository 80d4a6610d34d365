// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"sort"

	"github.com/hazard-re/uedump/remote"
	"github.com/hazard-re/uedump/rptr"
)

// scanVTables is the vtable analysis pass of spec.md §4.5.7: every
// distinct vtable address observed on a decoded object is scanned
// forward as an array of function pointers until either a read fails
// or the next known vtable's address is reached (vtables are laid out
// back to back in the image's read-only data section, so the next
// table's address is a hard upper bound on the current one's slot
// count). A derived class's vtable can never be shorter than its
// base's — if scanning found otherwise, the base was over-read into
// its own body by the first pass's "read until next table" heuristic,
// so a second pass trims every base table down to the minimum slot
// count observed among any class derived from it.
func (w *Walker) scanVTables(_ []remote.Address) error {
	vtableOwners := make(map[uint64][]string)
	superOf := make(map[string]string)

	for _, path := range w.data.Objects.Keys() {
		obj, _ := w.data.Objects.Get(path)
		if obj.Struct != nil && obj.Struct.SuperStruct != "" {
			superOf[path] = obj.Struct.SuperStruct
		}
		if obj.ObservedInstanceVTable != 0 {
			vtableOwners[obj.ObservedInstanceVTable] = append(vtableOwners[obj.ObservedInstanceVTable], path)
		}
	}

	addrs := make([]uint64, 0, len(vtableOwners))
	for addr := range vtableOwners {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	slots := make(map[uint64][]uint64, len(addrs))
	for i, addr := range addrs {
		var bound remote.Address
		if i+1 < len(addrs) {
			bound = remote.Address(addrs[i+1])
		}
		s, err := w.scanOneVTable(remote.Address(addr), bound)
		if err != nil {
			return err
		}
		slots[addr] = s
	}

	// Trim pass: a base class's table may never exceed the slot count
	// of any class derived from it. Iterate to a fixed point since
	// hierarchies can be several levels deep.
	for pass := 0; pass < len(addrs)+1; pass++ {
		changed := false
		for path, super := range superOf {
			childObj, _ := w.data.Objects.Get(path)
			superObj, ok := w.data.Objects.Get(super)
			if !ok || childObj.ObservedInstanceVTable == 0 || superObj.ObservedInstanceVTable == 0 {
				continue
			}
			childAddr := childObj.ObservedInstanceVTable
			superAddr := superObj.ObservedInstanceVTable
			if childAddr == superAddr {
				continue
			}
			if len(slots[superAddr]) > len(slots[childAddr]) {
				slots[superAddr] = slots[superAddr][:len(slots[childAddr])]
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for addr, s := range slots {
		w.data.VTables.Set(addr, s)
	}
	return nil
}

func (w *Walker) scanOneVTable(addr remote.Address, bound remote.Address) ([]uint64, error) {
	var slots []uint64
	for {
		cur := addr + remote.Address(len(slots))*8
		if bound != 0 && cur >= bound {
			break
		}
		v, err := rptr.New[uint64](w.ctx, cur).Read()
		if err != nil {
			break
		}
		if v == 0 {
			break
		}
		slots = append(slots, v)
		if bound == 0 && len(slots) > 4096 {
			// Unbounded tail table (no known successor): cap the scan
			// so a misidentified vtable address cannot read forever.
			break
		}
	}
	return slots, nil
}
