// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package emulate is component F (spec.md §4.6): a single-function
// x86-64 sandbox used as a last-resort FName decoder when the name
// pool's block/chunk layout for the running engine version cannot be
// recognized directly. It maps the target image read-through from a
// remote.Mem backing, runs one call into the supplied decode routine
// on a private scratch stack/heap, and reads the result back out.
//
// The memory-proxy hook and scratch region layout are adapted from the
// ARM64 sandbox other_examples' zboralski-galago emulator builds for
// its own mock-C++-object hooking: map fixed regions up front, then
// fault in target bytes lazily through a HOOK_MEM_UNMAPPED handler
// rather than pre-copying the whole image.
package emulate

import (
	"encoding/binary"
	"fmt"
	"sync"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
	"golang.org/x/arch/x86/x86asm"

	"github.com/hazard-re/uedump/remote"
)

// Scratch memory layout. The target image itself is never mapped
// wholesale: pages are faulted in on demand by the HOOK_MEM_UNMAPPED
// handler, keyed to whatever address range the decode routine
// actually touches.
const (
	stackBase = 0x7fff00000000
	stackSize = 0x00100000 // 1MiB
	heapBase  = 0x7ffe00000000
	heapSize  = 0x00100000 // 1MiB
	// returnSentinel is an address that is never a legitimate
	// instruction fetch; CallString pushes it as the return address and
	// passes it to Start as the end address, so emulation stops when the
	// called function returns.
	returnSentinel = 0x1
)

// Emulator runs one function at a time out of a remote.Mem-backed
// image, proxying unmapped reads straight through to the target.
type Emulator struct {
	mu  uc.Unicorn
	mem remote.Mem

	mappedMu sync.Mutex
	mapped   map[uint64]bool // page-aligned addresses already mapped from mem

	heapPtr uint64
}

// New creates an x86-64 emulator backed by mem. All addressing is
// absolute, matching the addresses rptr already works with.
func New(mem remote.Mem) (*Emulator, error) {
	vm, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return nil, fmt.Errorf("emulate: create unicorn: %w", err)
	}

	e := &Emulator{mu: vm, mem: mem, mapped: make(map[uint64]bool), heapPtr: heapBase}

	if err := vm.MemMap(stackBase, stackSize); err != nil {
		vm.Close()
		return nil, fmt.Errorf("emulate: map stack: %w", err)
	}
	if err := vm.MemMap(heapBase, heapSize); err != nil {
		vm.Close()
		return nil, fmt.Errorf("emulate: map heap: %w", err)
	}

	sp := uint64(stackBase + stackSize - 0x1000)
	if err := vm.RegWrite(uc.X86_REG_RSP, sp); err != nil {
		vm.Close()
		return nil, fmt.Errorf("emulate: set RSP: %w", err)
	}

	if _, err := vm.HookAdd(uc.HOOK_MEM_UNMAPPED, e.faultIn, 1, 0); err != nil {
		vm.Close()
		return nil, fmt.Errorf("emulate: install memory hook: %w", err)
	}

	return e, nil
}

// Close releases the underlying Unicorn instance.
func (e *Emulator) Close() error { return e.mu.Close() }

const emulatePageSize = 4096

func emulatePageBase(addr uint64) uint64 { return addr &^ (emulatePageSize - 1) }

// faultIn services HOOK_MEM_UNMAPPED by mapping the faulting page
// straight out of the target's address space. A page that the target
// itself cannot supply is left unmapped, which Unicorn reports back as
// the same invalid-memory stop condition it would for a genuinely bad
// pointer in the real engine.
func (e *Emulator) faultIn(mu uc.Unicorn, access int, addr64 uint64, size int, value int64) bool {
	base := emulatePageBase(addr64)

	e.mappedMu.Lock()
	already := e.mapped[base]
	e.mappedMu.Unlock()
	if already {
		return true
	}

	buf := make([]byte, emulatePageSize)
	if err := e.mem.ReadBuf(remote.Address(base), buf); err != nil {
		return false
	}
	if err := mu.MemMap(base, emulatePageSize); err != nil {
		return false
	}
	if err := mu.MemWrite(base, buf); err != nil {
		return false
	}

	e.mappedMu.Lock()
	e.mapped[base] = true
	e.mappedMu.Unlock()
	return true
}

// malloc bump-allocates size bytes from the scratch heap.
func (e *Emulator) malloc(size uint64) (uint64, error) {
	size = (size + 15) &^ 15
	addr := e.heapPtr
	if addr+size >= heapBase+heapSize {
		return 0, fmt.Errorf("emulate: scratch heap exhausted")
	}
	e.heapPtr += size
	return addr, nil
}

// ValidatePrologue decodes the first instruction at entry and rejects
// addresses that plainly aren't a function start, so a bad --name-fn
// flag fails fast with a decode error instead of Unicorn spinning on
// garbage code. It is a best-effort sanity check, not a security
// boundary: a handful of valid prologues are deliberately accepted
// besides the classic "push rbp".
func (e *Emulator) ValidatePrologue(entry uint64) error {
	buf := make([]byte, 16)
	base := emulatePageBase(entry)
	if !e.mapped[base] {
		page := make([]byte, emulatePageSize)
		if err := e.mem.ReadBuf(remote.Address(base), page); err != nil {
			return fmt.Errorf("emulate: read prologue bytes: %w", err)
		}
		copy(buf, page[entry-base:])
	} else {
		if err := e.mem.ReadBuf(remote.Address(entry), buf); err != nil {
			return fmt.Errorf("emulate: read prologue bytes: %w", err)
		}
	}

	inst, err := x86asm.Decode(buf, 64)
	if err != nil {
		return fmt.Errorf("emulate: decode entry point %#x: %w", entry, err)
	}
	switch inst.Op {
	case x86asm.PUSH, x86asm.SUB, x86asm.MOV, x86asm.JMP, x86asm.LEA, x86asm.TEST, x86asm.CMP:
		return nil
	default:
		return fmt.Errorf("emulate: entry point %#x does not look like a function start (first opcode %v)", entry, inst.Op)
	}
}

// CallString runs entry(args...) to completion using the System V
// AMD64 calling convention and reads back a NUL-terminated string from
// the pointer entry returns in RAX. It is the shape every engine
// release's FName-to-string helper takes: an index/number pair in, a
// TCHAR* out. The result is decoded as UTF-16; a char* result is not
// decoded.
func (e *Emulator) CallString(entry uint64, args []uint64, maxLen int) (string, error) {
	argRegs := []int{uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX, uc.X86_REG_RCX, uc.X86_REG_R8, uc.X86_REG_R9}
	if len(args) > len(argRegs) {
		return "", fmt.Errorf("emulate: too many arguments (%d, max %d)", len(args), len(argRegs))
	}
	for i, v := range args {
		if err := e.mu.RegWrite(argRegs[i], v); err != nil {
			return "", fmt.Errorf("emulate: set argument %d: %w", i, err)
		}
	}

	sp, err := e.mu.RegRead(uc.X86_REG_RSP)
	if err != nil {
		return "", err
	}
	sp -= 8
	retAddrBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(retAddrBuf, returnSentinel)
	if err := e.mu.MemWrite(sp, retAddrBuf); err != nil {
		return "", fmt.Errorf("emulate: push return address: %w", err)
	}
	if err := e.mu.RegWrite(uc.X86_REG_RSP, sp); err != nil {
		return "", err
	}

	if err := e.mu.Start(entry, returnSentinel); err != nil {
		return "", fmt.Errorf("emulate: run %#x: %w", entry, err)
	}

	rax, err := e.mu.RegRead(uc.X86_REG_RAX)
	if err != nil {
		return "", err
	}
	if rax == 0 {
		return "", fmt.Errorf("emulate: %#x returned a null string pointer", entry)
	}
	return e.readCString(rax, maxLen)
}

func (e *Emulator) readCString(addr uint64, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 1024
	}
	buf, err := e.mu.MemRead(addr, uint64(maxLen))
	if err != nil {
		return "", fmt.Errorf("emulate: read result string at %#x: %w", addr, err)
	}
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0 && buf[i+1] == 0 {
			return utf16ToString(buf[:i]), nil
		}
	}
	return utf16ToString(buf), nil
}

func utf16ToString(b []byte) string {
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u16 = append(u16, binary.LittleEndian.Uint16(b[i:]))
	}
	runes := make([]rune, 0, len(u16))
	for _, v := range u16 {
		runes = append(runes, rune(v))
	}
	return string(runes)
}
