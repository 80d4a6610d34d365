// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package remote

import "fmt"

// FlatMem is a Mem backed directly by a single in-memory byte slice
// starting at Base. It is used by fixtures across every package's test
// suite, and doubles as the backing for the "prebuilt-json" input mode
// mentioned in spec.md §6 where no live/snapshot target exists at all.
type FlatMem struct {
	Base Address
	Data []byte
}

// NewFlatMem wraps data as a Mem whose lowest addressable byte is base.
func NewFlatMem(base Address, data []byte) *FlatMem {
	return &FlatMem{Base: base, Data: data}
}

// ReadBuf implements Mem.
func (m *FlatMem) ReadBuf(addr Address, buf []byte) error {
	if addr < m.Base {
		return &IOError{Op: "ReadBuf", Addr: addr, Size: len(buf), Err: fmt.Errorf("%w: below base 0x%x", ErrUnreadable, uint64(m.Base))}
	}
	off := uint64(addr - m.Base)
	end := off + uint64(len(buf))
	if end > uint64(len(m.Data)) {
		return &IOError{Op: "ReadBuf", Addr: addr, Size: len(buf), Err: ErrUnreadable}
	}
	copy(buf, m.Data[off:end])
	return nil
}

// Close is a no-op for FlatMem.
func (m *FlatMem) Close() error { return nil }
