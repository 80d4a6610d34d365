// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build linux

package remote

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LiveProcess is a Mem backing for a running process, read through
// /proc/<pid>/mem via pread64 — the OS-specific copy-address primitive
// named in spec.md §4.1.
type LiveProcess struct {
	*Cache
}

type liveProcessRaw struct {
	pid int
	f   *os.File
}

// OpenProcess attaches read-only to pid's memory.
func OpenProcess(pid int) (*LiveProcess, error) {
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("remote: open process %d: %w", pid, err)
	}
	raw := &liveProcessRaw{pid: pid, f: f}
	return &LiveProcess{Cache: newCache(raw)}, nil
}

func (p *liveProcessRaw) readRaw(addr Address, buf []byte) error {
	n, err := unix.Pread(int(p.f.Fd()), buf, int64(addr))
	if err != nil {
		return fmt.Errorf("pread at 0x%x: %w", uint64(addr), err)
	}
	if n != len(buf) {
		return fmt.Errorf("short pread at 0x%x: got %d want %d", uint64(addr), n, len(buf))
	}
	return nil
}

func (p *liveProcessRaw) close() error {
	return p.f.Close()
}
