// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"encoding/binary"
	"testing"

	"github.com/hazard-re/uedump/fname"
	"github.com/hazard-re/uedump/layout"
	"github.com/hazard-re/uedump/model"
	"github.com/hazard-re/uedump/remote"
)

const (
	addrBlocksArray = 0x5000
	addrBlockBase   = 0x5100

	addrPkg         = 0x1000
	addrActor       = 0x1200
	addrMeta        = 0x1400
	addrPkgMeta     = 0x1500
	addrMyIntField  = 0x1600
	addrIntFFClass  = 0x1700
)

func writeName(buf []byte, offset int, s string) int {
	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(s)))
	copy(buf[offset+2:], s)
	next := offset + 2 + len(s)
	if next%2 != 0 {
		next++
	}
	return next
}

// buildFixture lays out a package ("Demo") containing a class
// ("Actor") with one Int32 property ("MyInt"), entirely by hand, using
// the offsets layout.Default() resolves for engine 4.27. It returns a
// ready-to-use Walker.
func buildFixture(t *testing.T) (*Walker, []byte) {
	t.Helper()
	buf := make([]byte, 0x8000)

	// Name pool: a single modern block holding every name this
	// fixture needs.
	binary.LittleEndian.PutUint64(buf[addrBlocksArray:], addrBlockBase)
	names := []string{"Demo", "Actor", "MyInt", "Class"}
	idx := make(map[string]uint32, len(names))
	off := 0
	for _, n := range names {
		idx[n] = uint32(off / 2)
		off = writeName(buf, off, n)
	}
	// writeName operates on an offset relative to addrBlockBase; shift
	// the written bytes there since we computed idx against offset 0.
	copy(buf[addrBlockBase:addrBlockBase+off], buf[0:off])
	for i := 0; i < off; i++ {
		buf[i] = 0
	}

	mem := remote.NewFlatMem(0, buf)
	pool := fname.NewModernPool(mem, remote.Address(addrBlocksArray))

	putName := func(addr int, s string) {
		i := idx[s]
		binary.LittleEndian.PutUint32(buf[addr:], i)
		binary.LittleEndian.PutUint32(buf[addr+4:], 0)
	}
	putU64 := func(addr int, v uint64) { binary.LittleEndian.PutUint64(buf[addr:], v) }
	putU32 := func(addr int, v uint32) { binary.LittleEndian.PutUint32(buf[addr:], v) }

	// META ("Class"): the metaclass describing UClass instances.
	putU64(addrMeta+0x10, addrMeta) // ClassPrivate: self-referential
	putName(addrMeta+0x18, "Class")
	putU64(addrMeta+0x20, 0) // OuterPrivate
	putU64(addrMeta+0x78, uint64(CastUClass))

	// PKGMETA ("Class" too, for simplicity): describes UPackage
	// instances.
	putU64(addrPkgMeta+0x10, addrMeta)
	putName(addrPkgMeta+0x18, "Class")
	putU64(addrPkgMeta+0x20, 0)
	putU64(addrPkgMeta+0x78, uint64(CastUPackage))

	// PKG ("Demo"): a package object, root of the outer chain.
	putU64(addrPkg+0x10, addrPkgMeta)
	putName(addrPkg+0x18, "Demo")
	putU64(addrPkg+0x20, 0)

	// ACTOR ("Actor"): a UClass instance, child of PKG, with one
	// Int32 property.
	putU64(addrActor+0x10, addrMeta)
	putName(addrActor+0x18, "Actor")
	putU64(addrActor+0x20, addrPkg)
	putU64(addrActor+0x30, 0)             // SuperStruct
	putU64(addrActor+0x38, 0)             // Children (legacy, unused)
	putU64(addrActor+0x40, addrMyIntField) // ChildProperties
	putU32(addrActor+0x48, 4)             // PropertiesSize
	putU32(addrActor+0x4c, 4)             // MinAlignment
	putU32(addrActor+0x70, 0)             // ClassFlags
	putU64(addrActor+0x78, 0)             // ClassCastFlags (of Actor's own instances)
	putU64(addrActor+0xd8, 0)             // ClassDefaultObject

	// FFieldClass for FIntProperty.
	putU64(addrIntFFClass+0x10, uint64(CastFIntProperty))

	// FField/FProperty "MyInt".
	putU64(addrMyIntField+0x8, addrIntFFClass) // ClassPtr
	putU64(addrMyIntField+0x20, 0)             // Next
	putName(addrMyIntField+0x28, "MyInt")
	putU32(addrMyIntField+0x38, 1) // ArrayDim
	putU32(addrMyIntField+0x3c, 4) // ElementSize
	putU64(addrMyIntField+0x40, 0) // PropertyFlags
	putU32(addrMyIntField+0x4c, 0) // Offset_Internal

	cat, err := layout.Default()
	if err != nil {
		t.Fatalf("layout.Default: %v", err)
	}
	cfg := &Config{
		Mem:            mem,
		Catalogue:      cat,
		EngineVersion:  layout.Version{Major: 4, Minor: 27},
		CasePreserving: false,
		Names:          pool,
	}
	return New(cfg), buf
}

func TestResolvePathPackageAndClass(t *testing.T) {
	w, _ := buildFixture(t)

	pkgPath, err := w.resolvePath(remote.Address(addrPkg))
	if err != nil {
		t.Fatalf("resolvePath(pkg): %v", err)
	}
	if pkgPath != "Demo" {
		t.Fatalf("pkgPath = %q, want %q", pkgPath, "Demo")
	}

	actorPath, err := w.resolvePath(remote.Address(addrActor))
	if err != nil {
		t.Fatalf("resolvePath(actor): %v", err)
	}
	if actorPath != "Demo.Actor" {
		t.Fatalf("actorPath = %q, want %q", actorPath, "Demo.Actor")
	}
}

func TestDecodeClassWithIntProperty(t *testing.T) {
	w, _ := buildFixture(t)

	obj, err := w.decodeObject(remote.Address(addrActor))
	if err != nil {
		t.Fatalf("decodeObject(actor): %v", err)
	}
	if obj.Kind != model.KindClass {
		t.Fatalf("Kind = %v, want Class", obj.Kind)
	}
	if obj.Object.Outer != "Demo" {
		t.Fatalf("Outer = %q, want %q", obj.Object.Outer, "Demo")
	}
	if obj.Struct == nil || len(obj.Struct.Properties) != 1 {
		t.Fatalf("expected exactly one property, got %+v", obj.Struct)
	}
	prop := obj.Struct.Properties[0]
	if prop.Name != "MyInt" {
		t.Fatalf("property name = %q, want %q", prop.Name, "MyInt")
	}
	if _, ok := prop.Type.(model.Int32Prop); !ok {
		t.Fatalf("property type = %T, want Int32Prop", prop.Type)
	}
}

func TestDecodePackage(t *testing.T) {
	w, _ := buildFixture(t)

	obj, err := w.decodeObject(remote.Address(addrPkg))
	if err != nil {
		t.Fatalf("decodeObject(pkg): %v", err)
	}
	if obj.Kind != model.KindPackage {
		t.Fatalf("Kind = %v, want Package", obj.Kind)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// A flags word that (hypothetically) sets both the UClass and
	// UFunction bits must still classify as a class: UClass has
	// higher priority (spec.md invariant 2).
	flags := CastUClass | CastUFunction
	if got := Classify(flags); got != ClassifyClass {
		t.Fatalf("Classify = %v, want ClassifyClass", got)
	}
}

func TestClassifyPropertyKindFirstMatchWins(t *testing.T) {
	// FClassProperty also sets the FObjectProperty bit in the real
	// engine; Class must still win since it is tested first.
	flags := CastFClassProperty | CastFObjectProperty
	kind, ok := classifyPropertyKind(flags)
	if !ok {
		t.Fatalf("classifyPropertyKind: no match")
	}
	if kind != model.KindClassProp {
		t.Fatalf("kind = %v, want Class", kind)
	}
}
