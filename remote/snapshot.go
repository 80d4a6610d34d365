// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package remote

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// Snapshot is a Mem backing for a minidump-style memory snapshot file:
// a flat capture of one or more address ranges, memory-mapped instead
// of read whole into RAM, the same way the teacher memory-maps the PE
// image in file.New.
type Snapshot struct {
	*Cache
}

// snapshotRaw adapts a memory-mapped snapshot file plus its range table
// to rawReader.
type snapshotRaw struct {
	f      *os.File
	data   mmap.MMap
	ranges []Range
}

// Range describes one captured region: target addresses
// [Base, Base+Size) are stored at snapshot file offset FileOffset.
type Range struct {
	Base       Address
	Size       uint64
	FileOffset uint64
}

// OpenSnapshot memory-maps name and uses ranges to translate target
// addresses to file offsets.
func OpenSnapshot(name string, ranges []Range) (*Snapshot, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	raw := &snapshotRaw{f: f, data: data, ranges: ranges}
	return &Snapshot{Cache: newCache(raw)}, nil
}

func (s *snapshotRaw) readRaw(addr Address, buf []byte) error {
	n := len(buf)
	filled := 0
	for filled < n {
		cur := addr + Address(filled)
		rng, ok := s.findRange(cur)
		if !ok {
			return fmt.Errorf("address 0x%x not covered by any snapshot range", uint64(cur))
		}
		avail := uint64(rng.Base+Address(rng.Size)) - uint64(cur)
		want := uint64(n - filled)
		take := want
		if avail < take {
			take = avail
		}
		fileOff := rng.FileOffset + (uint64(cur) - uint64(rng.Base))
		if fileOff+take > uint64(len(s.data)) {
			return fmt.Errorf("snapshot file truncated at offset %d", fileOff)
		}
		copy(buf[filled:filled+int(take)], s.data[fileOff:fileOff+take])
		filled += int(take)
	}
	return nil
}

func (s *snapshotRaw) findRange(addr Address) (Range, bool) {
	for _, r := range s.ranges {
		if addr >= r.Base && addr < r.Base+Address(r.Size) {
			return r, true
		}
	}
	return Range{}, false
}

func (s *snapshotRaw) close() error {
	_ = s.data.Unmap()
	return s.f.Close()
}
