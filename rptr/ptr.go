// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rptr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/hazard-re/uedump/remote"
)

// Ptr is a typed remote pointer: an address plus the context needed to
// resolve it, with T carried only as a compile-time phantom type. Ptr
// values are cheap and comparable; Cast and the Offset helpers only
// compute new pointers, and no read happens until Read is called.
type Ptr[T any] struct {
	addr remote.Address
	ctx  *Context
}

// New constructs a Ptr[T] at addr within ctx.
func New[T any](ctx *Context, addr remote.Address) Ptr[T] {
	return Ptr[T]{addr: addr, ctx: ctx}
}

// Addr returns the pointer's raw remote address.
func (p Ptr[T]) Addr() remote.Address { return p.addr }

// Context returns the pointer's context.
func (p Ptr[T]) Context() *Context { return p.ctx }

// IsNull reports whether the pointer's address is zero, the engine's
// own convention for "no object" (spec.md §4.2).
func (p Ptr[T]) IsNull() bool { return p.addr == 0 }

// Read decodes T from the pointer's address using the same
// binary.Read-over-bytes.Reader struct unpacking the teacher's PE
// parser uses throughout file.go. T must be a fixed-size type
// (the fixed-width integer/float/bool kinds, arrays, and structs
// built only from those) for binary.Read to succeed.
func (p Ptr[T]) Read() (T, error) {
	var v T
	size := int(unsafe.Sizeof(v))
	buf := make([]byte, size)
	if err := p.ctx.Mem.ReadBuf(p.addr, buf); err != nil {
		var zero T
		return zero, fmt.Errorf("rptr: read %T at %s: %w", v, p.addr, err)
	}
	r := bytes.NewReader(buf)
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("rptr: decode %T at %s: %w", v, p.addr, err)
	}
	return v, nil
}

// ReadVec decodes n consecutive T elements starting at the pointer's
// address, as produced by a TArray's inline storage.
func (p Ptr[T]) ReadVec(n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("rptr: ReadVec: negative count %d", n)
	}
	out := make([]T, n)
	var zero T
	elemSize := remote.Address(unsafe.Sizeof(zero))
	for i := 0; i < n; i++ {
		v, err := Ptr[T]{addr: p.addr + remote.Address(i)*elemSize, ctx: p.ctx}.Read()
		if err != nil {
			return nil, fmt.Errorf("rptr: ReadVec[%d/%d]: %w", i, n, err)
		}
		out[i] = v
	}
	return out, nil
}

// ByteOffset returns a new pointer n raw bytes past p, regardless of
// T's size — used when an offset has already been resolved through
// the layout catalogue (e.g. a property's Offset_Internal).
func (p Ptr[T]) ByteOffset(n int64) Ptr[T] {
	return Ptr[T]{addr: remote.Address(int64(p.addr) + n), ctx: p.ctx}
}

// CatalogTyped is implemented by phantom types that correspond to a
// named engine struct, so Offset can scale by the catalogue's size for
// that struct (which may differ by engine version) instead of Go's
// compile-time sizeof.
type CatalogTyped interface {
	CatalogStructName() string
}

// Offset returns a new pointer n elements past p. If T implements
// CatalogTyped, the element size comes from the context's layout
// catalogue (so stride tracks the target's engine version); otherwise
// it falls back to unsafe.Sizeof(T), appropriate for the fixed-width
// primitive Ts used when walking raw arrays.
func (p Ptr[T]) Offset(n int64) (Ptr[T], error) {
	var zero T
	var elemSize int64
	if ct, ok := any(zero).(CatalogTyped); ok {
		size, err := p.ctx.StructSize(ct.CatalogStructName())
		if err != nil {
			return Ptr[T]{}, err
		}
		elemSize = int64(size)
	} else {
		elemSize = int64(unsafe.Sizeof(zero))
	}
	return p.ByteOffset(n * elemSize), nil
}

// Cast reinterprets p's address as pointing at a U instead of a T. It
// is a free function rather than a method because Go methods cannot
// introduce additional type parameters.
func Cast[U any, T any](p Ptr[T]) Ptr[U] {
	return Ptr[U]{addr: p.addr, ctx: p.ctx}
}

// DerefPointer reads an 8-byte pointer field through raw and wraps the
// value it points at as a Ptr[U]. It is the rptr-level building block
// the walker uses for every "this struct has a pointer field" case
// (OuterPrivate, ClassPrivate, Next, ...).
func DerefPointer[U any](raw Ptr[uint64]) (Ptr[U], error) {
	v, err := raw.Read()
	if err != nil {
		return Ptr[U]{}, err
	}
	return New[U](raw.ctx, remote.Address(v)), nil
}

// DerefOptionalPointer is DerefPointer but treats a zero interior
// value as "absent" rather than a valid zero address, per spec.md
// §4.2's pointer-to-optional-pointer case (e.g. UClass::ClassWithin
// before it has been resolved, or a null SuperStruct at the root of a
// hierarchy).
func DerefOptionalPointer[U any](raw Ptr[uint64]) (Ptr[U], bool, error) {
	v, err := raw.Read()
	if err != nil {
		return Ptr[U]{}, false, err
	}
	if v == 0 {
		return Ptr[U]{}, false, nil
	}
	return New[U](raw.ctx, remote.Address(v)), true, nil
}
