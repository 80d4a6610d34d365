// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package remote

import (
	"bytes"
	"sync"
	"testing"
)

// countingRaw counts how many distinct pages were fetched, so tests can
// assert the cache actually avoids re-fetching.
type countingRaw struct {
	mu     sync.Mutex
	data   []byte
	fetched map[Address]int
}

func (r *countingRaw) readRaw(addr Address, buf []byte) error {
	r.mu.Lock()
	r.fetched[addr]++
	r.mu.Unlock()
	end := uint64(addr) + uint64(len(buf))
	if end > uint64(len(r.data)) {
		return ErrUnreadable
	}
	copy(buf, r.data[addr:Address(end)])
	return nil
}

func (r *countingRaw) close() error { return nil }

func TestCacheServesFromResidentPage(t *testing.T) {
	data := make([]byte, PageSize*3)
	for i := range data {
		data[i] = byte(i)
	}
	raw := &countingRaw{data: data, fetched: make(map[Address]int)}
	c := newCache(raw)

	buf := make([]byte, 16)
	if err := c.ReadBuf(10, buf); err != nil {
		t.Fatalf("ReadBuf: %v", err)
	}
	if !bytes.Equal(buf, data[10:26]) {
		t.Fatalf("got %v want %v", buf, data[10:26])
	}

	// Re-read the same page; must not trigger another fetch.
	if err := c.ReadBuf(20, buf); err != nil {
		t.Fatalf("ReadBuf: %v", err)
	}
	if raw.fetched[0] != 1 {
		t.Fatalf("page 0 fetched %d times, want 1", raw.fetched[0])
	}
}

func TestCacheReadSpansPages(t *testing.T) {
	data := make([]byte, PageSize*2)
	for i := range data {
		data[i] = byte(i)
	}
	raw := &countingRaw{data: data, fetched: make(map[Address]int)}
	c := newCache(raw)

	buf := make([]byte, 32)
	addr := Address(PageSize - 16)
	if err := c.ReadBuf(addr, buf); err != nil {
		t.Fatalf("ReadBuf: %v", err)
	}
	want := data[PageSize-16 : PageSize+16]
	if !bytes.Equal(buf, want) {
		t.Fatalf("got %v want %v", buf, want)
	}
	if len(raw.fetched) != 2 {
		t.Fatalf("expected 2 pages fetched, got %d", len(raw.fetched))
	}
}

func TestCacheUnreadable(t *testing.T) {
	raw := &countingRaw{data: make([]byte, PageSize), fetched: make(map[Address]int)}
	c := newCache(raw)
	buf := make([]byte, 8)
	if err := c.ReadBuf(PageSize*10, buf); err == nil {
		t.Fatal("expected error reading unmapped page")
	}
}

func TestFlatMem(t *testing.T) {
	m := NewFlatMem(0x1000, []byte{1, 2, 3, 4, 5})
	buf := make([]byte, 2)
	if err := m.ReadBuf(0x1001, buf); err != nil {
		t.Fatalf("ReadBuf: %v", err)
	}
	if buf[0] != 2 || buf[1] != 3 {
		t.Fatalf("got %v", buf)
	}
	if err := m.ReadBuf(0x1010, buf); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
