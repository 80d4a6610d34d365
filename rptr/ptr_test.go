// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rptr

import (
	"encoding/binary"
	"testing"

	"github.com/hazard-re/uedump/layout"
	"github.com/hazard-re/uedump/remote"
)

func testContext(t *testing.T, data []byte) *Context {
	t.Helper()
	cat, err := layout.Default()
	if err != nil {
		t.Fatalf("layout.Default: %v", err)
	}
	mem := remote.NewFlatMem(0, data)
	return NewContext(mem, cat, layout.Version{Major: 4, Minor: 27}, false)
}

func TestReadUint32(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[8:], 0xdeadbeef)
	ctx := testContext(t, buf)

	p := New[uint32](ctx, 8)
	v, err := p.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != 0xdeadbeef {
		t.Fatalf("Read = %#x, want 0xdeadbeef", v)
	}
}

func TestReadVec(t *testing.T) {
	buf := make([]byte, 16)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(i+1))
	}
	ctx := testContext(t, buf)

	p := New[uint32](ctx, 0)
	vs, err := p.ReadVec(4)
	if err != nil {
		t.Fatalf("ReadVec: %v", err)
	}
	for i, v := range vs {
		if v != uint32(i+1) {
			t.Fatalf("vs[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestDerefOptionalPointerNull(t *testing.T) {
	buf := make([]byte, 8) // zeroed: a null pointer field
	ctx := testContext(t, buf)

	raw := New[uint64](ctx, 0)
	_, ok, err := DerefOptionalPointer[uint32](raw)
	if err != nil {
		t.Fatalf("DerefOptionalPointer: %v", err)
	}
	if ok {
		t.Fatalf("expected null pointer to report absent")
	}
}

func TestDerefOptionalPointerPresent(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x1000)
	ctx := testContext(t, buf)

	raw := New[uint64](ctx, 0)
	p, ok, err := DerefOptionalPointer[uint32](raw)
	if err != nil {
		t.Fatalf("DerefOptionalPointer: %v", err)
	}
	if !ok {
		t.Fatalf("expected non-null pointer to report present")
	}
	if p.Addr() != 0x1000 {
		t.Fatalf("Addr = %#x, want 0x1000", p.Addr())
	}
}

func TestDecodeFlagsRejectsUnknownBits(t *testing.T) {
	_, err := DecodeFlags(0x7, 0x3)
	if err == nil {
		t.Fatalf("expected error for unknown bit 0x4")
	}
	got, err := DecodeFlags(0x3, 0x3)
	if err != nil {
		t.Fatalf("DecodeFlags: %v", err)
	}
	if got != 0x3 {
		t.Fatalf("DecodeFlags = %#x, want 0x3", got)
	}
}
